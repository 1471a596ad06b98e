package cli

import (
	"bytes"
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/blackdropbox/blackdropbox/internal/cloud/providers/memory"
	"github.com/blackdropbox/blackdropbox/internal/cloud/storage"
	"github.com/blackdropbox/blackdropbox/internal/config"
	"github.com/blackdropbox/blackdropbox/internal/identity"
	"github.com/blackdropbox/blackdropbox/internal/logging"
)

// stubProvider is an identity provider with a fixed session.
type stubProvider struct {
	session  *identity.Session
	signedIn bool
}

func (p *stubProvider) CurrentSession(ctx context.Context) (*identity.Session, error) {
	if !p.signedIn {
		return nil, identity.ErrNoSession
	}
	return p.session, nil
}

func (p *stubProvider) SignIn(ctx context.Context, creds identity.Credentials) (*identity.Session, error) {
	if creds.Password != "secret" {
		return nil, errors.New("incorrect username or password")
	}
	p.signedIn = true
	p.session = &identity.Session{Username: creds.Username, LoginID: creds.Username + "@example.com"}
	return p.session, nil
}

func (p *stubProvider) SignUp(ctx context.Context, params identity.SignUpParams) (identity.SignUpResult, error) {
	return identity.SignUpResult{Destination: "j***@e***"}, nil
}

func (p *stubProvider) ConfirmSignUp(ctx context.Context, username, code string) error {
	return nil
}

func (p *stubProvider) SignOut(ctx context.Context) error {
	p.signedIn = false
	return nil
}

type testEnv struct {
	cfgPath  string
	fs       afero.Fs
	store    *memory.Provider
	provider *stubProvider
}

// setupCLI points every collaborator at in-memory fakes and resets the
// global flags.
func setupCLI(t *testing.T, signedIn bool) *testEnv {
	t.Helper()

	env := &testEnv{
		fs:    afero.NewMemMapFs(),
		store: memory.NewProvider(),
		provider: &stubProvider{
			signedIn: signedIn,
			session:  &identity.Session{Username: "jane", LoginID: "jane@example.com"},
		},
	}

	origFS, origProvider, origStorage := appFS, newIdentityProvider, newStorage
	t.Cleanup(func() {
		appFS, newIdentityProvider, newStorage = origFS, origProvider, origStorage
		cfgFile, apiURL, backendFlag, outputFormat = "", "", "", ""
	})

	appFS = env.fs
	newIdentityProvider = func(ctx context.Context, cfg *config.Config, httpClient *nethttp.Client, store identity.TokenStore, logger *logging.Logger) (identity.Provider, error) {
		return env.provider, nil
	}
	newStorage = func(ctx context.Context, cfg *config.Config, httpClient *nethttp.Client) (storage.Storage, error) {
		return env.store, nil
	}

	env.cfgPath = filepath.Join(t.TempDir(), "config.csv")
	logger = logging.NewNopLogger()
	return env
}

// run executes the command line against the memory backend with stdin
// and returns stdout.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	// PersistentPreRun replaces the logger; keep the quiet one.
	rootCmd.PersistentPreRun = nil

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append(args, "--config", e.cfgPath, "--backend", config.BackendMemory))

	err := rootCmd.Execute()
	return stdout.String(), err
}

func (e *testEnv) seed(t *testing.T, key, content string) {
	t.Helper()
	if err := e.store.Put(storage.TierGuest, key, []byte(content), time.Now()); err != nil {
		t.Fatalf("seeding %s: %v", key, err)
	}
}

func TestCommandsRequireSession(t *testing.T) {
	env := setupCLI(t, false)

	for _, args := range [][]string{
		{"files", "list"},
		{"ls"},
		{"files", "stats"},
		{"dashboard"},
	} {
		_, err := env.run(t, "", args...)
		if !errors.Is(err, errNotSignedIn) {
			t.Errorf("%v: expected errNotSignedIn, got %v", args, err)
		}
	}
}

func TestSignInAndWhoAmI(t *testing.T) {
	env := setupCLI(t, false)

	out, err := env.run(t, "", "auth", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, "Not signed in") {
		t.Errorf("expected 'Not signed in', got %q", out)
	}

	if _, err := env.run(t, "wrong\n", "auth", "signin", "-u", "jane"); err == nil {
		t.Error("expected sign-in with a wrong password to fail")
	}
	if env.provider.signedIn {
		t.Fatal("provider should still be signed out")
	}

	if _, err := env.run(t, "secret\n", "auth", "signin", "-u", "jane"); err != nil {
		t.Fatalf("signin: %v", err)
	}

	out, err = env.run(t, "", "auth", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, "jane@example.com (J)") {
		t.Errorf("expected display name with initials, got %q", out)
	}

	if _, err := env.run(t, "", "auth", "signout"); err != nil {
		t.Fatalf("signout: %v", err)
	}
	if env.provider.signedIn {
		t.Error("expected provider to be signed out")
	}
}

func TestUploadThenList(t *testing.T) {
	env := setupCLI(t, true)
	if err := afero.WriteFile(env.fs, "/data/report.pdf", []byte("pdf bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(env.fs, "/data/photo.png", []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "", "upload", "/data/report.pdf", "/data/photo.png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(out, "2 of 2 uploaded") {
		t.Errorf("unexpected upload output %q", out)
	}

	data, err := env.store.Get(storage.TierGuest, "report.pdf")
	if err != nil {
		t.Fatalf("report.pdf not stored: %v", err)
	}
	if string(data) != "pdf bytes" {
		t.Errorf("stored %q", data)
	}

	out, err = env.run(t, "", "files", "list", "--type", "image")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "photo.png") || strings.Contains(out, "report.pdf") {
		t.Errorf("expected only the image, got %q", out)
	}
}

func TestUploadFailureReturnsError(t *testing.T) {
	env := setupCLI(t, true)
	if err := afero.WriteFile(env.fs, "/data/ok.txt", []byte("ok"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "", "files", "upload", "/data/ok.txt", "/data/missing.txt")
	if err == nil {
		t.Fatal("expected an error for the missing file")
	}
	if !strings.Contains(err.Error(), "missing.txt") {
		t.Errorf("error should name the failed file: %v", err)
	}
	if !strings.Contains(out, "1 of 2 uploaded") {
		t.Errorf("unexpected output %q", out)
	}
	if env.store.Len() != 1 {
		t.Errorf("expected the good file to be stored, have %d objects", env.store.Len())
	}
}

func TestSearchAndJSONOutput(t *testing.T) {
	env := setupCLI(t, true)
	env.seed(t, "Quarterly-Report.pdf", "a")
	env.seed(t, "notes.txt", "b")

	out, err := env.run(t, "", "files", "search", "report", "-o", "json")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, `"key": "Quarterly-Report.pdf"`) {
		t.Errorf("expected json row, got %q", out)
	}
	if strings.Contains(out, "notes.txt") {
		t.Errorf("notes.txt should not match, got %q", out)
	}
}

func TestDeleteConfirmation(t *testing.T) {
	env := setupCLI(t, true)
	env.seed(t, "old.txt", "x")

	out, err := env.run(t, "n\n", "files", "delete", "old.txt")
	if err != nil {
		t.Fatalf("delete (cancel): %v", err)
	}
	if !strings.Contains(out, `Delete "old.txt"? This cannot be undone.`) || !strings.Contains(out, "Cancelled") {
		t.Errorf("unexpected output %q", out)
	}
	if env.store.Len() != 1 {
		t.Fatal("file should survive a cancelled delete")
	}

	if _, err := env.run(t, "y\n", "files", "delete", "old.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if env.store.Len() != 0 {
		t.Error("file should be removed")
	}

	if _, err := env.run(t, "", "files", "delete", "old.txt", "--yes"); err == nil {
		t.Error("expected not found for a deleted file")
	}
}

func TestDownloadURLOnly(t *testing.T) {
	env := setupCLI(t, true)
	env.seed(t, "a.txt", "x")

	out, err := env.run(t, "", "download", "a.txt", "--url-only")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !strings.HasPrefix(out, "memory://local/public/a.txt?") {
		t.Errorf("unexpected signed URL %q", out)
	}

	if _, err := env.run(t, "", "download", "a.txt"); err == nil {
		t.Error("memory URLs cannot be fetched and should be reported")
	}
}

func TestVersionsWithoutAPI(t *testing.T) {
	env := setupCLI(t, true)
	env.seed(t, "a.txt", "x")

	out, err := env.run(t, "", "files", "versions", "a.txt")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if !strings.Contains(out, "v1") || !strings.Contains(out, "current") {
		t.Errorf("expected the current version, got %q", out)
	}
	if !strings.Contains(out, "Version download: disabled") {
		t.Errorf("expected download disabled notice, got %q", out)
	}

	if _, err := env.run(t, "", "files", "download-version", "a.txt", "abc"); err == nil {
		t.Error("expected download-version to fail without an API endpoint")
	}
}

func TestStats(t *testing.T) {
	env := setupCLI(t, true)
	env.seed(t, "a.txt", strings.Repeat("x", 1536))

	out, err := env.run(t, "", "files", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Total files:  1", "Total size:   1.5 KB", "Uploads today:  1"} {
		if !strings.Contains(strings.Join(strings.Fields(out), " "), strings.Join(strings.Fields(want), " ")) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestDashboardShell(t *testing.T) {
	env := setupCLI(t, true)
	env.seed(t, "report.pdf", "x")

	script := strings.Join([]string{
		"ls",
		"select report.pdf",
		"versions",
		"bogus",
		"delete report.pdf",
		"y",
		"ls",
		"quit",
	}, "\n") + "\n"

	out, err := env.run(t, script, "dashboard")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	for _, want := range []string{
		"BlackDropbox  |  jane@example.com (J)",
		"Selected report.pdf",
		"Version download: disabled",
		"Unknown command: bogus",
		`✓ "report.pdf" deleted`,
		"No files yet.",
		"Bye!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
	if env.store.Len() != 0 {
		t.Error("expected the file to be deleted")
	}
}

func TestDashboardSignOut(t *testing.T) {
	env := setupCLI(t, true)

	out, err := env.run(t, "signout\nls\n", "dashboard")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !strings.Contains(out, "Signed out") {
		t.Errorf("expected sign-out message, got %q", out)
	}
	if strings.Contains(out, "No files yet") {
		t.Error("shell should exit after sign-out")
	}
	if env.provider.signedIn {
		t.Error("provider should be signed out")
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	env := setupCLI(t, false)
	t.Setenv("BLACKDROPBOX_S3_SECRET_ACCESS_KEY", "supersecretvalue")
	t.Setenv("BLACKDROPBOX_API_ENDPOINT", "versions.example.com")

	out, err := env.run(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "supersecretvalue") {
		t.Errorf("secret leaked: %q", out)
	}
	if !strings.Contains(out, "https://versions.example.com") {
		t.Errorf("expected normalized endpoint, got %q", out)
	}
}

func TestConfigInitWritesFile(t *testing.T) {
	env := setupCLI(t, false)
	answers := strings.Join([]string{
		"memory", // backend
		"",       // cognito region (default)
		"",       // user pool id
		"client123",
		"",
		"",
		"",
	}, "\n") + "\n"

	out, err := env.run(t, answers, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Configuration saved to:") {
		t.Errorf("unexpected output %q", out)
	}

	data, err := os.ReadFile(env.cfgPath)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(data), "cognito_client_id,client123") {
		t.Errorf("unexpected config file:\n%s", data)
	}

	out, err = env.run(t, "", "config", "init")
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Errorf("expected existing config notice, got %q", out)
	}
}

func TestWatchRequiresFolder(t *testing.T) {
	env := setupCLI(t, true)

	_, err := env.run(t, "", "watch")
	if err == nil || !strings.Contains(err.Error(), "drop_folder") {
		t.Errorf("expected missing drop folder error, got %v", err)
	}
}
