// internal/session/store.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cvscout/cvscout/pkg/models"
)

// resultEntry is one retained crawl outcome.
type resultEntry struct {
	status    *models.CrawlStatus
	expiresAt time.Time
}

// ResultStore retains finished crawl statuses for a bounded time so callers
// can poll an outcome after the crawl goroutine has exited. In-flight
// statuses never live here; the registry owns those.
type ResultStore struct {
	mu      sync.Mutex
	entries map[string]*resultEntry
	ttl     time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	hits    uint64
	misses  uint64
}

// NewResultStore creates a store retaining entries for ttl. A background
// routine drops expired entries once a minute.
func NewResultStore(ttl time.Duration) *ResultStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &ResultStore{
		entries: make(map[string]*resultEntry),
		ttl:     ttl,
		ctx:     ctx,
		cancel:  cancel,
	}
	go s.cleanupExpired()
	return s
}

// Put retains a terminal crawl status.
func (s *ResultStore) Put(crawlID string, status *models.CrawlStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[crawlID] = &resultEntry{
		status:    status,
		expiresAt: time.Now().Add(s.ttl),
	}
	log.Debug().
		Str("crawl_id", crawlID).
		Dur("ttl", s.ttl).
		Msg("Retained crawl result")
}

// Get retrieves a retained status.
func (s *ResultStore) Get(crawlID string) (*models.CrawlStatus, bool) {
	s.mu.Lock()
	entry, exists := s.entries[crawlID]
	if !exists {
		s.misses++
		s.mu.Unlock()
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		s.misses++
		delete(s.entries, crawlID)
		s.mu.Unlock()
		return nil, false
	}
	s.hits++
	s.mu.Unlock()
	return entry.status, true
}

// Close stops the background cleanup goroutine.
func (s *ResultStore) Close() {
	s.cancel()
}

func (s *ResultStore) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for id, entry := range s.entries {
				if now.After(entry.expiresAt) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		case <-s.ctx.Done():
			log.Debug().Msg("Result store cleanup routine stopped")
			return
		}
	}
}

// Stats returns retention statistics.
func (s *ResultStore) Stats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"entries": len(s.entries),
		"hits":    s.hits,
		"misses":  s.misses,
	}
}
