package cli

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/spf13/afero"

	"github.com/blackdropbox/blackdropbox/internal/api"
	"github.com/blackdropbox/blackdropbox/internal/cloud/providers"
	"github.com/blackdropbox/blackdropbox/internal/cloud/storage"
	"github.com/blackdropbox/blackdropbox/internal/config"
	"github.com/blackdropbox/blackdropbox/internal/core"
	"github.com/blackdropbox/blackdropbox/internal/events"
	inthttp "github.com/blackdropbox/blackdropbox/internal/http"
	"github.com/blackdropbox/blackdropbox/internal/identity"
	"github.com/blackdropbox/blackdropbox/internal/logging"
	"github.com/blackdropbox/blackdropbox/internal/services"
)

// errNotSignedIn is returned by commands that need a session.
var errNotSignedIn = errors.New("not signed in: run 'blackdropbox auth signin' first")

// Collaborator constructors, replaced in tests.
var (
	appFS afero.Fs = afero.NewOsFs()

	newIdentityProvider = func(ctx context.Context, cfg *config.Config, httpClient *nethttp.Client, store identity.TokenStore, logger *logging.Logger) (identity.Provider, error) {
		if err := cfg.ValidateIdentity(); err != nil {
			return nil, err
		}
		return identity.NewCognitoProvider(ctx, identity.CognitoConfig{
			Region:       cfg.CognitoRegion,
			UserPoolID:   cfg.CognitoUserPoolID,
			ClientID:     cfg.CognitoClientID,
			ClientSecret: cfg.CognitoClientSecret,
			HTTPClient:   httpClient,
		}, store, logger)
	}

	newStorage = func(ctx context.Context, cfg *config.Config, httpClient *nethttp.Client) (storage.Storage, error) {
		return providers.NewFactory(httpClient).New(ctx, cfg)
	}
)

// app holds the collaborators of one command invocation.
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	bus        *events.EventBus
	fs         afero.Fs
	httpClient *nethttp.Client
	provider   identity.Provider
	gate       *identity.Gate
	store      storage.Storage
	versions   services.VersionLister
}

// loadConfig resolves the effective configuration including global flags.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	cfg, err := config.Load(path, config.GetDefaultDotEnvPaths()...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.MergeWithFlags(apiURL, backendFlag, outputFormat)
	return cfg, nil
}

// newApp builds the identity collaborator and, when withStorage is set,
// the storage backend and version API client.
func newApp(ctx context.Context, withStorage bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if withStorage {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	log := GetLogger()
	httpClient, err := inthttp.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	tokens := identity.NewFileStore(appFS, config.GetDefaultSessionPath())
	provider, err := newIdentityProvider(ctx, cfg, httpClient, tokens, log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up sign-in: %w", err)
	}

	a := &app{
		cfg:        cfg,
		logger:     log,
		bus:        events.NewEventBus(0),
		fs:         appFS,
		httpClient: httpClient,
		provider:   provider,
	}
	a.gate = identity.NewGate(provider, a.bus, log)

	if !withStorage {
		return a, nil
	}

	a.store, err = newStorage(ctx, cfg, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s storage: %w", cfg.StorageBackend, err)
	}

	if cfg.VersionAPIConfigured() {
		client, err := api.NewClient(api.Options{
			BaseURL:     cfg.APIEndpoint,
			HTTPClient:  httpClient,
			Logger:      log,
			TokenSource: a.tokenSource(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create version API client: %w", err)
		}
		a.versions = client
	}
	return a, nil
}

// tokenSource returns the ID token of the current session. A signed-out
// user calls the version API without a token.
func (a *app) tokenSource() api.TokenSource {
	tp, ok := a.provider.(identity.TokenProvider)
	if !ok {
		return nil
	}
	return func(ctx context.Context) (string, error) {
		token, err := tp.IDToken(ctx)
		if errors.Is(err, identity.ErrNoSession) {
			return "", nil
		}
		return token, err
	}
}

// dashboard creates the shell over the app's collaborators.
func (a *app) dashboard() *core.Dashboard {
	opts := core.Options{
		Gate:      a.gate,
		Store:     a.store,
		FS:        a.fs,
		Bus:       a.bus,
		Logger:    a.logger,
		Tier:      storage.AccessTier(a.cfg.AccessTier),
		MaxUpload: a.cfg.MaxConcurrentUploads,
		Versions:  a.versions,
	}
	return core.NewDashboard(opts)
}

// startDashboard mounts a dashboard for a signed-in user.
func (a *app) startDashboard(ctx context.Context) (*core.Dashboard, error) {
	d := a.dashboard()
	if state := d.Start(ctx); state != identity.StateAuthenticated {
		d.Close()
		return nil, errNotSignedIn
	}
	return d, nil
}

func (a *app) close() {
	a.bus.Close()
}
