// internal/session/session.go
package session

import (
	"time"

	"github.com/cvscout/cvscout/internal/auth"
	"github.com/cvscout/cvscout/internal/driver"
	"github.com/cvscout/cvscout/internal/ratelimit"
)

// CrawlSession is one authenticated automation context. It exclusively owns
// its driver and rate limiter; neither is shared across sessions, keeping
// pacing independent per identity. All fields are guarded by the registry's
// mutex except during a crawl, when the single driving worker owns them.
type CrawlSession struct {
	ID         string
	Identity   string
	ProfileKey string

	CreatedAt      time.Time
	LastActivityAt time.Time

	// ExpiresAt nil means the session lives until explicitly closed.
	ExpiresAt *time.Time

	drv     driver.Driver
	pacer   *ratelimit.Limiter
	authMgr *auth.Manager

	// activeCrawlCount is capped at 1: the driver is not safe for
	// concurrent use, so a second crawl on the same session is rejected,
	// not queued.
	activeCrawlCount int

	// cancelCrawl aborts the in-flight crawl between page fetches.
	cancelCrawl func()
}

// AuthState reports the session's current authentication state.
func (s *CrawlSession) AuthState() auth.State {
	if s.authMgr == nil {
		return auth.Unauthenticated
	}
	return s.authMgr.State()
}

// Expired reports whether the session has passed its expiry. An expired
// session refuses new crawls but never cancels an in-flight one.
func (s *CrawlSession) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

func (s *CrawlSession) touch() {
	s.LastActivityAt = time.Now()
}
