// internal/auth/manager.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cvscout/cvscout/internal/driver"
	"github.com/cvscout/cvscout/internal/ratelimit"
)

// Endpoints are the portal URLs the manager drives.
type Endpoints struct {
	Base      string
	Login     string
	Dashboard string
	Search    string
}

// DefaultEndpoints derives the standard portal paths from a base URL.
func DefaultEndpoints(base string) Endpoints {
	return Endpoints{
		Base:      base,
		Login:     base + "/recruiter/login",
		Dashboard: base + "/recruiter/dashboard",
		Search:    base + "/recruiter/cv-search",
	}
}

// Login form selector fallbacks, tried in order. The portal has shipped at
// least three variants of this form.
var (
	usernameSelectors = []string{
		"input[name='email']", "input[type='email']", "#email", "#username",
	}
	passwordSelectors = []string{
		"input[name='password']", "input[type='password']", "#password",
	}
	submitSelectors = []string{
		"button[type='submit']", "input[type='submit']", ".login-button", ".btn-login",
	}
	logoutSelectors = []string{
		"a[href*='logout']", ".logout", "#logout", ".user-menu a[href*='logout']",
	}
)

// ErrMissingCredentials is returned when Login is called without an identity
// or secret. It is the only precondition Login enforces up front.
var ErrMissingCredentials = errors.New("auth: identity and secret are required")

// ErrLoginFailed wraps a definitive or inconclusive login rejection.
var ErrLoginFailed = errors.New("auth: login failed")

// Manager runs the login, verification and logout flows for one portal
// identity on one driver. It is safe for concurrent use, though callers
// normally serialize on the owning session.
type Manager struct {
	drv       driver.Driver
	pacer     ratelimit.Pacer
	store     *ProfileStore
	endpoints Endpoints
	staleness time.Duration

	mu         sync.Mutex
	state      State
	identity   string
	profileKey string
	reason     string
}

// ManagerOptions configure a Manager. Zero values fall back to defaults.
type ManagerOptions struct {
	Endpoints Endpoints
	Staleness time.Duration
}

func NewManager(drv driver.Driver, pacer ratelimit.Pacer, store *ProfileStore, opts ManagerOptions) *Manager {
	if opts.Staleness <= 0 {
		opts.Staleness = DefaultStaleness
	}
	return &Manager{
		drv:       drv,
		pacer:     pacer,
		store:     store,
		endpoints: opts.Endpoints,
		staleness: opts.Staleness,
		state:     Unauthenticated,
	}
}

// State reports the current authentication state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reason reports the human-readable cause of the last Failed transition.
func (m *Manager) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// Identity reports the identity of the last Login call.
func (m *Manager) Identity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

func (m *Manager) setState(s State, reason string) {
	m.mu.Lock()
	m.state = s
	m.reason = reason
	m.mu.Unlock()
}

// Login authenticates the driver as identity. A fresh persisted profile for
// the same identity is restored first; credential submission only happens
// when restoration is unavailable or rejected by the portal.
func (m *Manager) Login(ctx context.Context, identity, secret string) error {
	if identity == "" || secret == "" {
		return ErrMissingCredentials
	}

	key := ProfileKey(identity)
	m.mu.Lock()
	m.identity = identity
	m.profileKey = key
	m.state = Authenticating
	m.reason = ""
	m.mu.Unlock()

	if m.restore(ctx, identity, key) {
		m.setState(Authenticated, "")
		return nil
	}

	if err := m.freshLogin(ctx, identity, secret, key); err != nil {
		m.setState(Failed, err.Error())
		return err
	}
	m.setState(Authenticated, "")
	return nil
}

// restore replays a persisted profile. Any failure is non-fatal; the caller
// simply falls through to a fresh credential login.
func (m *Manager) restore(ctx context.Context, identity, key string) bool {
	if m.store == nil {
		return false
	}
	record, err := m.store.Load(key)
	if err != nil {
		return false
	}
	if record.Identity != identity || record.Stale(m.staleness) {
		log.Debug().
			Str("profile", key).
			Time("last_login", record.LastLoginAt).
			Msg("Persisted profile stale, falling back to credential login")
		return false
	}

	if err := m.pacer.WaitIfNeeded(ctx); err != nil {
		return false
	}
	if err := m.drv.Navigate(ctx, m.endpoints.Base); err != nil {
		m.pacer.OnError()
		return false
	}
	if len(record.Cookies) > 0 {
		if err := m.drv.SetCookies(ctx, record.Cookies); err != nil {
			return false
		}
	}
	if err := m.drv.Navigate(ctx, m.endpoints.Dashboard); err != nil {
		m.pacer.OnError()
		return false
	}
	if detectLogin(ctx, m.drv) != detectSuccess {
		log.Debug().Str("profile", key).Msg("Restored profile rejected by portal")
		return false
	}
	m.pacer.OnSuccess()
	log.Info().Str("profile", key).Msg("Session restored from persisted profile")
	return true
}

func (m *Manager) freshLogin(ctx context.Context, identity, secret, key string) error {
	if err := m.pacer.WaitIfNeeded(ctx); err != nil {
		return err
	}
	if err := m.drv.Navigate(ctx, m.endpoints.Login); err != nil {
		m.pacer.OnError()
		return fmt.Errorf("auth: open login page: %w", err)
	}

	userField, err := m.findFirst(ctx, usernameSelectors)
	if err != nil {
		return fmt.Errorf("auth: locate username field: %w", err)
	}
	passField, err := m.findFirst(ctx, passwordSelectors)
	if err != nil {
		return fmt.Errorf("auth: locate password field: %w", err)
	}
	if err := userField.Fill(ctx, identity); err != nil {
		m.pacer.OnError()
		return fmt.Errorf("auth: fill username: %w", err)
	}
	if err := passField.Fill(ctx, secret); err != nil {
		m.pacer.OnError()
		return fmt.Errorf("auth: fill password: %w", err)
	}

	submit, err := m.findFirst(ctx, submitSelectors)
	if err != nil {
		return fmt.Errorf("auth: locate submit button: %w", err)
	}
	if err := submit.Click(ctx); err != nil {
		m.pacer.OnError()
		return fmt.Errorf("auth: submit login form: %w", err)
	}

	result := detectLogin(ctx, m.drv)
	if result == detectUnknown {
		// One settle-and-retry covers slow post-login redirects.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
		result = detectLogin(ctx, m.drv)
	}
	if result != detectSuccess {
		m.pacer.OnError()
		return fmt.Errorf("%w: detection reported %s", ErrLoginFailed, result)
	}

	m.pacer.OnSuccess()
	m.persist(ctx, identity, key)
	log.Info().Str("identity", identity).Msg("Logged in with credentials")
	return nil
}

func (m *Manager) persist(ctx context.Context, identity, key string) {
	if m.store == nil {
		return
	}
	cookies, err := m.drv.Cookies(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Could not read cookies for profile persistence")
		cookies = nil
	}
	record := &ProfileRecord{
		ProfileKey:  key,
		Identity:    identity,
		LastLoginAt: time.Now(),
		Preserved:   true,
		Cookies:     cookies,
	}
	if err := m.store.Save(record); err != nil {
		log.Warn().Err(err).Str("profile", key).Msg("Could not persist login profile")
	}
}

// Verify re-checks that the portal still honours the session. It never
// mutates the stored profile; an authenticated session that the portal now
// rejects transitions to Expired.
func (m *Manager) Verify(ctx context.Context) State {
	m.mu.Lock()
	current := m.state
	m.mu.Unlock()
	if current != Authenticated && current != Expired {
		return current
	}

	if err := m.pacer.WaitIfNeeded(ctx); err != nil {
		return current
	}
	if err := m.drv.Navigate(ctx, m.endpoints.Dashboard); err != nil {
		m.pacer.OnError()
		m.setState(Expired, "dashboard unreachable")
		return Expired
	}
	if detectLogin(ctx, m.drv) == detectSuccess {
		m.pacer.OnSuccess()
		m.setState(Authenticated, "")
		return Authenticated
	}
	m.setState(Expired, "portal no longer recognises session")
	return Expired
}

// Logout ends the portal session on a best-effort basis. Local state always
// transitions to LoggedOut, even when no logout control can be found; the
// persisted browser profile directory is left in place.
func (m *Manager) Logout(ctx context.Context) {
	clicked := false
	for _, sel := range logoutSelectors {
		el, err := m.drv.Find(ctx, sel)
		if err != nil {
			continue
		}
		if err := el.Click(ctx); err == nil {
			clicked = true
			break
		}
	}
	if !clicked {
		log.Debug().Msg("No logout control found, clearing local state only")
	}

	m.mu.Lock()
	key := m.profileKey
	m.mu.Unlock()
	if m.store != nil && key != "" {
		if err := m.store.Delete(key); err != nil {
			log.Debug().Err(err).Str("profile", key).Msg("Could not delete profile record")
		}
	}
	m.setState(LoggedOut, "")
}

func (m *Manager) findFirst(ctx context.Context, selectors []string) (driver.Element, error) {
	for _, sel := range selectors {
		if el, err := m.drv.Find(ctx, sel); err == nil {
			return el, nil
		}
	}
	return nil, fmt.Errorf("%w: tried %d selectors", driver.ErrElementNotFound, len(selectors))
}
