package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cvscout/cvscout/internal/driver"
	"github.com/cvscout/cvscout/internal/ratelimit"
)

const portalBase = "https://portal.example.com"

const loginPage = `<html><head><title>Recruiter Login</title></head><body>
<form id="login">
  <input name="email" type="email">
  <input name="password" type="password">
  <button type="submit">Sign in</button>
</form>
</body></html>`

const dashboardPage = `<html><head><title>Recruiter Dashboard</title></head><body>
<div class="dashboard">Welcome back</div>
<nav class="user-menu"><a href="/recruiter/logout">Logout</a></nav>
<p>CV Search &middot; My Account</p>
</body></html>`

const rejectedPage = `<html><head><title>Recruiter Login</title></head><body>
<div class="alert-danger">Invalid credentials</div>
<form id="login">
  <input name="email" type="email">
  <input name="password" type="password">
  <button type="submit">Sign in</button>
</form>
</body></html>`

func testPacer() ratelimit.Pacer {
	return ratelimit.New(ratelimit.Options{
		RequestsPerMinute: 600,
		MinDelay:          time.Millisecond,
		MaxDelay:          time.Millisecond,
	})
}

func testStore(t *testing.T) *ProfileStore {
	t.Helper()
	t.Setenv("CVSCOUT_NO_KEYRING", "1")
	store, err := NewProfileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewProfileStore: %v", err)
	}
	return store
}

func newPortalDriver(t *testing.T) *driver.Static {
	t.Helper()
	drv := driver.NewStatic()
	ep := DefaultEndpoints(portalBase)
	drv.RegisterPage(portalBase, loginPage)
	drv.RegisterPage(ep.Login, loginPage)
	drv.RegisterPage(ep.Dashboard, dashboardPage)
	drv.OnSubmit(func(fields map[string]string) string {
		if fields["email"] == "recruiter@example.com" && fields["password"] == "hunter2" {
			return ep.Dashboard
		}
		drv.RegisterPage(ep.Login, rejectedPage)
		return ep.Login
	})
	return drv
}

func newTestManager(t *testing.T, drv driver.Driver, store *ProfileStore) *Manager {
	t.Helper()
	return NewManager(drv, testPacer(), store, ManagerOptions{
		Endpoints: DefaultEndpoints(portalBase),
	})
}

func TestManager_LoginWithCredentials(t *testing.T) {
	drv := newPortalDriver(t)
	store := testStore(t)
	m := newTestManager(t, drv, store)

	if err := m.Login(context.Background(), "recruiter@example.com", "hunter2"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := m.State(); got != Authenticated {
		t.Fatalf("state = %s, want authenticated", got)
	}
	if drv.FillCount() != 2 {
		t.Errorf("FillCount = %d, want 2", drv.FillCount())
	}

	record, err := store.Load(ProfileKey("recruiter@example.com"))
	if err != nil {
		t.Fatalf("profile was not persisted: %v", err)
	}
	if record.Identity != "recruiter@example.com" {
		t.Errorf("record identity = %q", record.Identity)
	}
	if !record.Preserved {
		t.Error("record.Preserved = false, want true")
	}
}

func TestManager_LoginRejected(t *testing.T) {
	drv := newPortalDriver(t)
	m := newTestManager(t, drv, testStore(t))

	err := m.Login(context.Background(), "recruiter@example.com", "wrong")
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("err = %v, want ErrLoginFailed", err)
	}
	if got := m.State(); got != Failed {
		t.Fatalf("state = %s, want failed", got)
	}
	if m.Reason() == "" {
		t.Error("Reason is empty after failed login")
	}
}

func TestManager_LoginMissingCredentials(t *testing.T) {
	m := newTestManager(t, driver.NewStatic(), testStore(t))

	if err := m.Login(context.Background(), "", ""); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
	if got := m.State(); got != Unauthenticated {
		t.Fatalf("state = %s, want unauthenticated", got)
	}
}

func TestManager_RestoreSkipsCredentialForm(t *testing.T) {
	drv := newPortalDriver(t)
	store := testStore(t)

	record := &ProfileRecord{
		ProfileKey:  ProfileKey("recruiter@example.com"),
		Identity:    "recruiter@example.com",
		LastLoginAt: time.Now().Add(-time.Hour),
		Preserved:   true,
		Cookies:     []driver.Cookie{{Name: "portal_session", Value: "abc123", Domain: "portal.example.com"}},
	}
	if err := store.Save(record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m := newTestManager(t, drv, store)
	if err := m.Login(context.Background(), "recruiter@example.com", "hunter2"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := m.State(); got != Authenticated {
		t.Fatalf("state = %s, want authenticated", got)
	}
	if drv.FillCount() != 0 {
		t.Errorf("FillCount = %d, want 0 on restore path", drv.FillCount())
	}
}

func TestManager_StaleProfileFallsBackToCredentials(t *testing.T) {
	drv := newPortalDriver(t)
	store := testStore(t)

	record := &ProfileRecord{
		ProfileKey:  ProfileKey("recruiter@example.com"),
		Identity:    "recruiter@example.com",
		LastLoginAt: time.Now().Add(-48 * time.Hour),
		Preserved:   true,
	}
	if err := store.Save(record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m := newTestManager(t, drv, store)
	if err := m.Login(context.Background(), "recruiter@example.com", "hunter2"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if drv.FillCount() != 2 {
		t.Errorf("FillCount = %d, want 2 after stale profile fallback", drv.FillCount())
	}
}

func TestManager_VerifyDetectsExpiry(t *testing.T) {
	drv := newPortalDriver(t)
	m := newTestManager(t, drv, testStore(t))

	if err := m.Login(context.Background(), "recruiter@example.com", "hunter2"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := m.Verify(context.Background()); got != Authenticated {
		t.Fatalf("Verify = %s, want authenticated", got)
	}

	// Portal starts bouncing the dashboard back to the login form.
	drv.RegisterPage(DefaultEndpoints(portalBase).Dashboard, rejectedPage)
	if got := m.Verify(context.Background()); got != Expired {
		t.Fatalf("Verify = %s, want expired", got)
	}
}

func TestManager_VerifyIsIdempotent(t *testing.T) {
	drv := newPortalDriver(t)
	store := testStore(t)
	m := newTestManager(t, drv, store)

	if err := m.Login(context.Background(), "recruiter@example.com", "hunter2"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	before, err := store.Load(ProfileKey("recruiter@example.com"))
	if err != nil {
		t.Fatalf("profile was not persisted: %v", err)
	}

	for i := 0; i < 2; i++ {
		if got := m.Verify(context.Background()); got != Authenticated {
			t.Fatalf("Verify #%d = %s, want authenticated", i+1, got)
		}
	}

	after, err := store.Load(ProfileKey("recruiter@example.com"))
	if err != nil {
		t.Fatalf("profile disappeared after Verify: %v", err)
	}
	if !after.LastLoginAt.Equal(before.LastLoginAt) {
		t.Error("Verify mutated the persisted profile record")
	}
}

func TestManager_LogoutAlwaysClearsState(t *testing.T) {
	drv := newPortalDriver(t)
	store := testStore(t)
	m := newTestManager(t, drv, store)

	if err := m.Login(context.Background(), "recruiter@example.com", "hunter2"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	m.Logout(context.Background())
	if got := m.State(); got != LoggedOut {
		t.Fatalf("state = %s, want logged_out", got)
	}
	if _, err := store.Load(ProfileKey("recruiter@example.com")); err == nil {
		t.Error("profile record still loadable after logout")
	}

	// Logout with no session and no logout control is still terminal.
	m2 := newTestManager(t, driver.NewStatic(), store)
	m2.Logout(context.Background())
	if got := m2.State(); got != LoggedOut {
		t.Fatalf("state = %s, want logged_out", got)
	}
}

func TestProfileKey(t *testing.T) {
	if got := ProfileKey("Recruiter@Example.com"); got != ProfileKey("recruiter@example.com") {
		t.Errorf("ProfileKey is case sensitive: %q", got)
	}
	long := ProfileKey("a.very.long.recruiter.identity@example-corporation.co.uk")
	if len(long) > len("user_")+21 {
		t.Errorf("long identity key not truncated: %q", long)
	}
}
