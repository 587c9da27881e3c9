package session

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvscout/cvscout/internal/auth"
	"github.com/cvscout/cvscout/internal/driver"
	"github.com/cvscout/cvscout/pkg/models"
)

const testBase = "https://portal.example.com"

const testLoginPage = `<html><head><title>Recruiter Login</title></head><body>
<form><input name="email" type="email"><input name="password" type="password">
<button type="submit">Sign in</button></form></body></html>`

const testDashboardPage = `<html><head><title>Recruiter Dashboard</title></head><body>
<div class="dashboard">Welcome</div>
<nav class="user-menu"><a href="/recruiter/logout">Logout</a></nav>
<p>CV Search &middot; My Account</p></body></html>`

const testSearchPage = `<html><head><title>CV Search</title></head><body>
<form><input name="keywords" type="text"><input type="submit" value="View results"></form>
</body></html>`

func candidatePage(firstID, count int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < count; i++ {
		id := firstID + i
		fmt.Fprintf(&b, `<div class="search-result"><h2><a href="/cv/%d">Candidate %d</a></h2></div>`, id, id)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// newPortalStatic builds a Static driver pre-loaded with the portal fixture
// pages and a first results page of yield candidates.
func newPortalStatic(yield int) *driver.Static {
	drv := driver.NewStatic()
	ep := auth.DefaultEndpoints(testBase)
	drv.RegisterPage(testBase, testLoginPage)
	drv.RegisterPage(ep.Login, testLoginPage)
	drv.RegisterPage(ep.Dashboard, testDashboardPage)
	drv.RegisterPage(ep.Search, testSearchPage)
	drv.RegisterPage(testBase+"/cv-search/results", candidatePage(1000, yield))
	drv.OnSubmit(func(fields map[string]string) string {
		if fields["keywords"] != "" {
			return testBase + "/cv-search/results"
		}
		return ep.Dashboard
	})
	return drv
}

type registryFixture struct {
	reg     *Registry
	drivers []*driver.Static
}

func newRegistryFixture(t *testing.T, yield int, mutate func(*Config)) *registryFixture {
	t.Helper()
	t.Setenv("CVSCOUT_NO_KEYRING", "1")

	store, err := auth.NewProfileStore(t.TempDir())
	require.NoError(t, err)

	f := &registryFixture{}
	cfg := Config{
		BaseURL:           testBase,
		RequestsPerMinute: 600,
		MinDelay:          time.Millisecond,
		MaxDelay:          time.Millisecond,
		WorkerPoolSize:    4,
		Profiles:          store,
		Drivers: func(string) (driver.Driver, error) {
			drv := newPortalStatic(yield)
			f.drivers = append(f.drivers, drv)
			return drv, nil
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.reg, err = NewRegistry(cfg)
	require.NoError(t, err)
	t.Cleanup(f.reg.Close)
	return f
}

func (f *registryFixture) authedSession(t *testing.T) string {
	t.Helper()
	id, err := f.reg.CreateSession("recruiter@example.com")
	require.NoError(t, err)
	ok, err := f.reg.Authenticate(context.Background(), id, "hunter2")
	require.NoError(t, err)
	require.True(t, ok)
	return id
}

func waitForTerminal(t *testing.T, reg *Registry, crawlID string) *models.CrawlStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if status, ok := reg.GetCrawl(crawlID); ok && status.Terminal() {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("crawl did not reach a terminal phase")
	return nil
}

func TestRegistry_CrawlLifecycle(t *testing.T) {
	f := newRegistryFixture(t, 8, nil)
	sid := f.authedSession(t)

	crawlID, err := f.reg.StartCrawl(sid, models.SearchQuery{
		Keywords:    []string{"golang"},
		TargetCount: 5,
	})
	require.NoError(t, err)

	status := waitForTerminal(t, f.reg, crawlID)
	assert.Equal(t, models.PhaseCompleted, status.Phase)
	assert.Len(t, status.Records, 5, "records truncated to target")
	assert.False(t, status.Partial)
	assert.Empty(t, status.Error)
	require.NotNil(t, status.FinishedAt)
	assert.False(t, status.FinishedAt.Before(status.StartedAt))

	// Outcome stays pollable after completion.
	again, ok := f.reg.GetCrawl(crawlID)
	require.True(t, ok)
	assert.Equal(t, models.PhaseCompleted, again.Phase)
}

func TestRegistry_ConfiguredMaxPagesCapsCrawl(t *testing.T) {
	// Five result pages exist, but the registry-level default cap allows two.
	f := newRegistryFixture(t, 20, func(cfg *Config) {
		cfg.MaxPages = 2
		cfg.Drivers = func(string) (driver.Driver, error) {
			drv := newPortalStatic(20)
			for page := 2; page <= 5; page++ {
				drv.RegisterPage(fmt.Sprintf("%s/cv-search/results?page=%d", testBase, page),
					candidatePage(1000+20*(page-1), 20))
			}
			return drv, nil
		}
	})
	sid := f.authedSession(t)

	crawlID, err := f.reg.StartCrawl(sid, models.SearchQuery{
		Keywords:    []string{"golang"},
		TargetCount: 100,
	})
	require.NoError(t, err)

	status := waitForTerminal(t, f.reg, crawlID)
	assert.Equal(t, models.PhaseCompleted, status.Phase)
	assert.Len(t, status.Records, 40, "configured page cap bounds the crawl")
	assert.True(t, status.Partial)
	for _, rec := range status.Records {
		assert.True(t, strings.HasPrefix(rec.ProfileURL, testBase+"/cv/"),
			"profile url not absolute: %s", rec.ProfileURL)
	}
}

func TestRegistry_SecondCrawlRejectedNotQueued(t *testing.T) {
	f := newRegistryFixture(t, 8, func(cfg *Config) {
		// Slow the pacing so the first crawl is still in flight.
		cfg.MinDelay = 300 * time.Millisecond
		cfg.MaxDelay = 300 * time.Millisecond
	})
	sid := f.authedSession(t)

	first, err := f.reg.StartCrawl(sid, models.SearchQuery{Keywords: []string{"golang"}, TargetCount: 5})
	require.NoError(t, err)

	_, err = f.reg.StartCrawl(sid, models.SearchQuery{Keywords: []string{"golang"}, TargetCount: 5})
	assert.ErrorIs(t, err, ErrCrawlActive)

	waitForTerminal(t, f.reg, first)
}

func TestRegistry_StartCrawlRequiresAuthentication(t *testing.T) {
	f := newRegistryFixture(t, 8, nil)
	sid, err := f.reg.CreateSession("recruiter@example.com")
	require.NoError(t, err)

	_, err = f.reg.StartCrawl(sid, models.SearchQuery{Keywords: []string{"golang"}, TargetCount: 5})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestRegistry_ExpiredSessionRefusesNewCrawls(t *testing.T) {
	f := newRegistryFixture(t, 8, func(cfg *Config) {
		cfg.SessionTTL = 20 * time.Millisecond
	})
	sid := f.authedSession(t)
	time.Sleep(40 * time.Millisecond)

	_, err := f.reg.StartCrawl(sid, models.SearchQuery{Keywords: []string{"golang"}, TargetCount: 5})
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestRegistry_CloseSessionRefusedWhileActive(t *testing.T) {
	f := newRegistryFixture(t, 8, func(cfg *Config) {
		cfg.MinDelay = 300 * time.Millisecond
		cfg.MaxDelay = 300 * time.Millisecond
	})
	sid := f.authedSession(t)

	crawlID, err := f.reg.StartCrawl(sid, models.SearchQuery{Keywords: []string{"golang"}, TargetCount: 5})
	require.NoError(t, err)

	_, err = f.reg.CloseSession(sid, false)
	assert.ErrorIs(t, err, ErrCrawlActive)

	ok, err := f.reg.CloseSession(sid, true)
	require.NoError(t, err)
	assert.True(t, ok)

	status := waitForTerminal(t, f.reg, crawlID)
	_ = status // terminal either way: completed if past the last checkpoint, failed if cancelled

	_, found := f.reg.GetSession(sid)
	assert.False(t, found)
	require.Len(t, f.drivers, 1)
	assert.True(t, f.drivers[0].Closed())
}

func TestRegistry_SweepClosesExpiredIdleSessions(t *testing.T) {
	f := newRegistryFixture(t, 8, func(cfg *Config) {
		cfg.SessionTTL = 10 * time.Millisecond
	})
	sid, err := f.reg.CreateSession("recruiter@example.com")
	require.NoError(t, err)
	time.Sleep(25 * time.Millisecond)

	f.reg.SweepExpired()

	_, found := f.reg.GetSession(sid)
	assert.False(t, found)
	require.Len(t, f.drivers, 1)
	assert.True(t, f.drivers[0].Closed())
}

func TestRegistry_UnknownIDs(t *testing.T) {
	f := newRegistryFixture(t, 8, nil)

	_, err := f.reg.StartCrawl("missing", models.SearchQuery{Keywords: []string{"golang"}, TargetCount: 1})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.reg.CloseSession("missing", false)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, ok := f.reg.GetCrawl("missing")
	assert.False(t, ok)
}

func TestRegistry_ListSessionsAndStats(t *testing.T) {
	f := newRegistryFixture(t, 8, nil)
	sid := f.authedSession(t)

	infos := f.reg.ListSessions()
	require.Len(t, infos, 1)
	assert.Equal(t, sid, infos[0].ID)
	assert.Equal(t, "recruiter@example.com", infos[0].Identity)
	assert.Equal(t, "authenticated", infos[0].AuthState)

	stats := f.reg.Stats()
	assert.Equal(t, 1, stats["sessions"])
	assert.Equal(t, 4, stats["worker_slots"])
}
