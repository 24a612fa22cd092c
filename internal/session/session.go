// Package session holds the application context: who is signed in, the
// per-user scan pipeline and chat, and which view a request resolves to.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nutritrack/internal/platform/auth"
	"nutritrack/internal/scan"
)

var (
	// ErrNotSignedIn is returned when a request carries no usable session.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrPasswordMismatch is returned by SignUp before any network call.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrMissingCredentials is returned when email or password is blank.
	ErrMissingCredentials = errors.New("email and password are required")
	// ErrNotInitialized is returned when the app is used before Initialize or
	// after Teardown.
	ErrNotInitialized = errors.New("application context is not initialized")
	// ErrNoRenderer is returned when a view has no entry in the table.
	ErrNoRenderer = errors.New("no renderer for view")
	// ErrProfileRequired is returned for gated operations before the profile
	// is complete.
	ErrProfileRequired = errors.New("please complete your profile first")
)

// Session is a signed-in user.
type Session struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	AccessToken string    `json:"accessToken,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Authenticator is the auth provider.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignUp(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// TokenVerifier checks access tokens locally.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// UserLookup asks the auth provider who owns a token. It backs Restore
// when no TokenVerifier is configured.
type UserLookup interface {
	User(ctx context.Context, accessToken string) (*auth.User, error)
}

// ProfileChecker answers the profile-completeness question.
type ProfileChecker interface {
	HasProfile(ctx context.Context, email string) (bool, error)
}

// Chat is a conversation with the assistant that keeps its own history.
type Chat interface {
	Send(ctx context.Context, message string, onChunk func(string)) (string, error)
}

// PipelineFactory builds a scan pipeline for a user.
type PipelineFactory func(ctx context.Context, email string) (*scan.Pipeline, error)

// ChatFactory starts a chat for a user.
type ChatFactory func(ctx context.Context, email string) (Chat, error)

// Config holds the collaborators of an App.
type Config struct {
	Auth        Authenticator
	Verifier    TokenVerifier
	Users       UserLookup
	Profiles    ProfileChecker
	NewPipeline PipelineFactory
	NewChat     ChatFactory
	Logger      logrus.FieldLogger
}

type userState struct {
	// gen moves on whenever the pipeline or chat must be rebuilt.
	gen      uint64
	pipeline *scan.Pipeline
	chat     Chat
}

// App is the application context shared by all handlers. It must be
// initialized before use and torn down on shutdown.
type App struct {
	cfg Config
	log logrus.FieldLogger

	mu          sync.Mutex
	initialized bool
	users       map[string]*userState
}

// NewApp returns an App that is not yet initialized.
func NewApp(cfg Config) *App {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &App{cfg: cfg, log: log}
}

// Initialize prepares the per-user state. Calling it twice is harmless.
func (a *App) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return nil
	}
	if a.cfg.Auth == nil || a.cfg.Profiles == nil {
		return errors.New("application context needs an authenticator and a profile checker")
	}
	if a.cfg.Verifier == nil && a.cfg.Users == nil {
		return errors.New("application context needs a token verifier or a user lookup")
	}
	a.users = make(map[string]*userState)
	a.initialized = true
	a.log.Info("application context initialized")
	return nil
}

// Teardown drops every user's pipeline and chat.
func (a *App) Teardown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users = nil
	a.initialized = false
	a.log.Info("application context torn down")
}

func fromProvider(s *auth.Session) *Session {
	return &Session{
		UserID:      s.User.ID,
		Email:       s.User.Email,
		AccessToken: s.AccessToken,
		ExpiresAt:   s.ExpiresAt,
	}
}

func credentials(email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", ErrMissingCredentials
	}
	return email, nil
}

// SignIn signs a user in with email and password.
func (a *App) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := credentials(email, password)
	if err != nil {
		return nil, err
	}
	s, err := a.cfg.Auth.SignIn(ctx, email, password)
	if err != nil {
		a.log.WithError(err).WithField("email", email).Warn("sign in failed")
		return nil, err
	}
	a.log.WithField("email", email).Info("signed in")
	return fromProvider(s), nil
}

// SignUp registers a user. confirm must equal password; this is checked
// before the provider is called. The session has no access token when the
// provider wants the email confirmed first.
func (a *App) SignUp(ctx context.Context, email, password, confirm string) (*Session, error) {
	email, err := credentials(email, password)
	if err != nil {
		return nil, err
	}
	if password != confirm {
		return nil, ErrPasswordMismatch
	}
	s, err := a.cfg.Auth.SignUp(ctx, email, password)
	if err != nil {
		a.log.WithError(err).WithField("email", email).Warn("sign up failed")
		return nil, err
	}
	out := fromProvider(s)
	if out.Email == "" {
		out.Email = email
	}
	return out, nil
}

// SignOut drops the user's pipeline and chat and revokes the token. Local
// state is dropped even when the provider call fails.
func (a *App) SignOut(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrNotSignedIn
	}
	a.mu.Lock()
	if u, ok := a.users[s.Email]; ok {
		u.gen++
		delete(a.users, s.Email)
	}
	a.mu.Unlock()

	if err := a.cfg.Auth.SignOut(ctx, s.AccessToken); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	a.log.WithField("email", s.Email).Info("signed out")
	return nil
}

// Restore rebuilds a session from a bearer token. Tokens are checked locally
// when a verifier is configured and by the auth provider otherwise.
func (a *App) Restore(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNotSignedIn
	}
	if a.cfg.Verifier == nil {
		return a.lookup(ctx, token)
	}
	claims, err := a.cfg.Verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSignedIn, err)
	}
	s := &Session{UserID: claims.Subject, Email: claims.Email, AccessToken: token}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

func (a *App) lookup(ctx context.Context, token string) (*Session, error) {
	if a.cfg.Users == nil {
		return nil, ErrNotInitialized
	}
	u, err := a.cfg.Users.User(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSignedIn, err)
	}
	if u.Email == "" {
		return nil, fmt.Errorf("%w: token has no email", ErrNotSignedIn)
	}
	return &Session{UserID: u.ID, Email: u.Email, AccessToken: token}, nil
}

// HasProfile reports whether the user has completed their profile.
func (a *App) HasProfile(ctx context.Context, email string) (bool, error) {
	return a.cfg.Profiles.HasProfile(ctx, email)
}

func (a *App) user(email string) (*userState, error) {
	if !a.initialized {
		return nil, ErrNotInitialized
	}
	u, ok := a.users[email]
	if !ok {
		u = &userState{}
		a.users[email] = u
	}
	return u, nil
}

// lazily returns the value in the user's slot, building it with build when
// the slot is empty. build runs without the lock held. When the user's state
// moves on while build runs, the stale value is dropped and built once more;
// a second stale value is returned without being kept.
func lazily[T any](a *App, email string, get func(*userState) (T, bool), set func(*userState, T), build func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		a.mu.Lock()
		u, err := a.user(email)
		if err != nil {
			a.mu.Unlock()
			return zero, err
		}
		if v, ok := get(u); ok {
			a.mu.Unlock()
			return v, nil
		}
		gen := u.gen
		a.mu.Unlock()

		v, err := build()
		if err != nil {
			return zero, err
		}

		a.mu.Lock()
		if !a.initialized {
			a.mu.Unlock()
			return zero, ErrNotInitialized
		}
		if a.users[email] == u && u.gen == gen {
			if cur, ok := get(u); ok {
				v = cur
			} else {
				set(u, v)
			}
			a.mu.Unlock()
			return v, nil
		}
		a.mu.Unlock()
		if attempt > 0 {
			return v, nil
		}
		a.log.WithField("email", email).Debug("user state changed during build, rebuilding")
	}
}

// Pipeline returns the user's scan pipeline, creating it on first use.
func (a *App) Pipeline(ctx context.Context, email string) (*scan.Pipeline, error) {
	if a.cfg.NewPipeline == nil {
		return nil, errors.New("scanning is not configured")
	}
	return lazily(a, email,
		func(u *userState) (*scan.Pipeline, bool) { return u.pipeline, u.pipeline != nil },
		func(u *userState, p *scan.Pipeline) { u.pipeline = p },
		func() (*scan.Pipeline, error) { return a.cfg.NewPipeline(ctx, email) },
	)
}

// AllergensChanged discards the user's pipeline and chat so the next scan
// and chat see the new allergen list. A running scan finishes on the old
// pipeline, and one still being built is not kept.
func (a *App) AllergensChanged(email string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if u, ok := a.users[email]; ok {
		u.gen++
		u.pipeline = nil
		u.chat = nil
	}
}

// Chat returns the user's chat, starting one on first use.
func (a *App) Chat(ctx context.Context, email string) (Chat, error) {
	if a.cfg.NewChat == nil {
		return nil, errors.New("chat is not configured")
	}
	return lazily(a, email,
		func(u *userState) (Chat, bool) { return u.chat, u.chat != nil },
		func(u *userState, c Chat) { u.chat = c },
		func() (Chat, error) { return a.cfg.NewChat(ctx, email) },
	)
}

// ResetChat forgets the user's conversation.
func (a *App) ResetChat(email string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if u, ok := a.users[email]; ok {
		u.gen++
		u.chat = nil
	}
}

// Resolve decides which view a request for the tab id lands on: login
// without a session, profile when a gated view is asked for before the
// profile is complete, otherwise the requested view.
func (a *App) Resolve(ctx context.Context, s *Session, id string) (View, error) {
	if s == nil {
		return ViewLogin, nil
	}
	v := ParseView(id)
	if !v.gated() {
		return v, nil
	}
	ok, err := a.HasProfile(ctx, s.Email)
	if err != nil {
		return ViewDashboard, err
	}
	if !ok {
		return ViewProfile, nil
	}
	return v, nil
}

// Render resolves the view and runs its renderer from table.
func (a *App) Render(ctx context.Context, s *Session, id string, table Table) (View, any, error) {
	v, err := a.Resolve(ctx, s, id)
	if err != nil {
		return v, nil, err
	}
	render, ok := table[v]
	if !ok {
		return v, nil, fmt.Errorf("%w: %s", ErrNoRenderer, v)
	}
	data, err := render(ctx, s)
	return v, data, err
}
