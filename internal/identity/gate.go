package identity

import (
	"context"
	"sync"

	"github.com/blackdropbox/blackdropbox/internal/events"
	"github.com/blackdropbox/blackdropbox/internal/logging"
	bdstrings "github.com/blackdropbox/blackdropbox/internal/util/strings"
)

// State is the gate's view of authentication.
type State string

// Gate states
const (
	StatePending         State = "pending"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// Gate decides whether the dashboard may mount.
//
// Thread-safe: All methods are safe for concurrent use.
type Gate struct {
	provider Provider
	bus      *events.EventBus
	logger   *logging.Logger

	mu      sync.RWMutex
	state   State
	session *Session
}

// NewGate creates a gate in the pending state. bus may be nil.
func NewGate(provider Provider, bus *events.EventBus, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Gate{
		provider: provider,
		bus:      bus,
		logger:   logger.Component("session-gate"),
		state:    StatePending,
	}
}

// Resolve queries the provider for the current session. Any error, including
// ErrNoSession, collapses to StateUnauthenticated. There is no retry.
func (g *Gate) Resolve(ctx context.Context) State {
	session, err := g.provider.CurrentSession(ctx)
	if err != nil {
		g.logger.Debug().Err(err).Msg("No current session")
		g.set(StateUnauthenticated, nil)
		return StateUnauthenticated
	}
	g.set(StateAuthenticated, session)
	return StateAuthenticated
}

// SignIn authenticates and then re-queries the current session.
func (g *Gate) SignIn(ctx context.Context, creds Credentials) error {
	if _, err := g.provider.SignIn(ctx, creds); err != nil {
		g.set(StateUnauthenticated, nil)
		return err
	}
	g.Resolve(ctx)
	return nil
}

// SignUp registers a new account. It does not change the gate state.
func (g *Gate) SignUp(ctx context.Context, params SignUpParams) (SignUpResult, error) {
	return g.provider.SignUp(ctx, params)
}

// ConfirmSignUp confirms an account. When password is non-empty the user
// is signed in afterwards.
func (g *Gate) ConfirmSignUp(ctx context.Context, username, code, password string) error {
	if err := g.provider.ConfirmSignUp(ctx, username, code); err != nil {
		return err
	}
	if password == "" {
		return nil
	}
	return g.SignIn(ctx, Credentials{Username: username, Password: password})
}

// SignOut signs out with the provider and resets local state. The gate
// ends unauthenticated even when the provider call fails.
func (g *Gate) SignOut(ctx context.Context) error {
	err := g.provider.SignOut(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Sign out did not complete cleanly")
	}
	g.SignOutAndReset()
	return err
}

// SignOutAndReset clears local user state without re-querying the provider.
func (g *Gate) SignOutAndReset() {
	g.set(StateUnauthenticated, nil)
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Session returns a copy of the current session, or nil.
func (g *Gate) Session() *Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return nil
	}
	s := *g.session
	return &s
}

// DisplayName returns the user label shown in the header.
func (g *Gate) DisplayName() string {
	return g.Session().DisplayName()
}

// Initials returns the avatar initials for the display name.
func (g *Gate) Initials() string {
	return bdstrings.Initials(g.DisplayName())
}

func (g *Gate) set(state State, session *Session) {
	g.mu.Lock()
	changed := g.state != state || !sameSession(g.session, session)
	g.state = state
	g.session = session
	g.mu.Unlock()

	if changed {
		name := ""
		if session != nil {
			name = session.DisplayName()
		}
		g.bus.PublishSession(string(state), name)
	}
}

func sameSession(a, b *Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Username == b.Username && a.LoginID == b.LoginID && a.Subject == b.Subject
}
