// Package session owns every CrawlSession in the process: creation,
// authentication, crawl dispatch, expiry sweeping and teardown. The registry
// is the only structure mutated by multiple workers concurrently; every
// mutation happens under its single mutex.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/cvscout/cvscout/internal/auth"
	"github.com/cvscout/cvscout/internal/crawler"
	"github.com/cvscout/cvscout/internal/driver"
	"github.com/cvscout/cvscout/internal/extract"
	"github.com/cvscout/cvscout/internal/ratelimit"
	"github.com/cvscout/cvscout/internal/retry"
	urlutil "github.com/cvscout/cvscout/internal/utils/url"
	"github.com/cvscout/cvscout/pkg/models"
)

var (
	ErrSessionNotFound = errors.New("session: not found")
	ErrSessionExpired  = errors.New("session: expired")
	ErrCrawlActive     = errors.New("session: a crawl is already running on this session")
	ErrNotReady        = errors.New("session: not authenticated")
)

// DriverFactory builds the automation driver for one session, rooted at the
// session's persistent profile directory.
type DriverFactory func(profileDir string) (driver.Driver, error)

// Config wires the registry's collaborators and limits.
type Config struct {
	BaseURL string

	RequestsPerMinute int
	MinDelay          time.Duration
	MaxDelay          time.Duration

	// SessionTTL of zero keeps sessions alive until explicitly closed.
	SessionTTL time.Duration

	// WorkerPoolSize caps concurrently running crawls across all sessions.
	WorkerPoolSize int

	// ResultTTL bounds how long finished crawl outcomes stay pollable.
	ResultTTL time.Duration

	// ProfileStaleness is how long a persisted login context is trusted.
	ProfileStaleness time.Duration

	// MaxPages is the default page cap for queries that don't set one.
	MaxPages int

	Drivers  DriverFactory
	Profiles *auth.ProfileStore

	Retry retry.Config
}

// Registry tracks sessions and crawls. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	sessions map[string]*CrawlSession
	crawls   map[string]*models.CrawlStatus
	results  *ResultStore
	workers  chan struct{}
	sweeper  *cron.Cron
}

// NewRegistry creates a registry and starts its five-minute expiry sweep.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Drivers == nil {
		return nil, errors.New("session: driver factory is required")
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 4
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = models.DefaultMaxPages
	}

	r := &Registry{
		cfg:      cfg,
		sessions: make(map[string]*CrawlSession),
		crawls:   make(map[string]*models.CrawlStatus),
		results:  NewResultStore(cfg.ResultTTL),
		workers:  make(chan struct{}, cfg.WorkerPoolSize),
		sweeper:  cron.New(),
	}
	if _, err := r.sweeper.AddFunc("@every 5m", r.SweepExpired); err != nil {
		return nil, fmt.Errorf("session: schedule expiry sweep: %w", err)
	}
	r.sweeper.Start()
	return r, nil
}

// CreateSession builds a session for identity: a fresh driver rooted at the
// identity's persistent profile directory, plus an owned rate limiter.
func (r *Registry) CreateSession(identity string) (string, error) {
	if identity == "" {
		return "", errors.New("session: identity is required")
	}

	profileKey := auth.ProfileKey(identity)

	profileDir := ""
	if r.cfg.Profiles != nil {
		dir, err := r.cfg.Profiles.BrowserDir(profileKey)
		if err != nil {
			return "", fmt.Errorf("session: resolve profile dir: %w", err)
		}
		profileDir = dir
	}

	drv, err := r.cfg.Drivers(profileDir)
	if err != nil {
		return "", fmt.Errorf("session: start driver: %w", err)
	}

	pacer := ratelimit.New(ratelimit.Options{
		RequestsPerMinute: r.cfg.RequestsPerMinute,
		MinDelay:          r.cfg.MinDelay,
		MaxDelay:          r.cfg.MaxDelay,
	})
	mgr := auth.NewManager(drv, pacer, r.cfg.Profiles, auth.ManagerOptions{
		Endpoints: auth.DefaultEndpoints(r.cfg.BaseURL),
		Staleness: r.cfg.ProfileStaleness,
	})

	now := time.Now()
	s := &CrawlSession{
		ID:             uuid.NewString(),
		Identity:       identity,
		ProfileKey:     profileKey,
		CreatedAt:      now,
		LastActivityAt: now,
		drv:            drv,
		pacer:          pacer,
		authMgr:        mgr,
	}
	if r.cfg.SessionTTL > 0 {
		expires := now.Add(r.cfg.SessionTTL)
		s.ExpiresAt = &expires
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	log.Info().
		Str("session_id", s.ID).
		Str("profile", profileKey).
		Msg("Created session")
	return s.ID, nil
}

// Authenticate logs the session's identity in. The registry lock is not held
// across the login; a session's driver is only ever driven by one caller at
// a time.
func (r *Registry) Authenticate(ctx context.Context, sessionID, secret string) (bool, error) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return false, ErrSessionNotFound
	}
	if s.activeCrawlCount > 0 {
		r.mu.Unlock()
		return false, ErrCrawlActive
	}
	r.mu.Unlock()

	err := s.authMgr.Login(ctx, s.Identity, secret)

	r.mu.Lock()
	s.touch()
	r.mu.Unlock()

	if err != nil {
		if errors.Is(err, auth.ErrMissingCredentials) {
			return false, err
		}
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Authentication failed")
		return false, nil
	}
	return true, nil
}

// StartCrawl dispatches a crawl and returns its id immediately. A second
// crawl on a busy session is rejected with ErrCrawlActive, never queued.
func (r *Registry) StartCrawl(sessionID string, query models.SearchQuery) (string, error) {
	if err := query.Validate(); err != nil {
		return "", err
	}
	query = query.Normalized()
	if query.MaxPages <= 0 {
		query.MaxPages = r.cfg.MaxPages
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return "", ErrSessionNotFound
	}
	if s.Expired(time.Now()) {
		return "", ErrSessionExpired
	}
	if s.activeCrawlCount > 0 {
		return "", ErrCrawlActive
	}
	if !s.AuthState().Usable() {
		return "", ErrNotReady
	}

	crawlID := uuid.NewString()
	status := &models.CrawlStatus{
		CrawlID:   crawlID,
		SessionID: sessionID,
		Phase:     models.PhaseInitializing,
		StartedAt: time.Now(),
	}
	r.crawls[crawlID] = status

	ctx, cancel := context.WithCancel(context.Background())
	s.activeCrawlCount = 1
	s.cancelCrawl = cancel
	s.touch()

	go r.runCrawl(ctx, s, crawlID, query)

	log.Info().
		Str("session_id", sessionID).
		Str("crawl_id", crawlID).
		Int("target", query.TargetCount).
		Msg("Crawl dispatched")
	return crawlID, nil
}

// runCrawl executes one dispatched crawl on a pool worker.
func (r *Registry) runCrawl(ctx context.Context, s *CrawlSession, crawlID string, query models.SearchQuery) {
	r.workers <- struct{}{}
	defer func() { <-r.workers }()

	orch := crawler.NewOrchestrator(s.drv, s.authMgr, s.pacer, extract.New(r.cfg.BaseURL), crawler.Options{
		SearchURL: auth.DefaultEndpoints(r.cfg.BaseURL).Search,
		Retry:     r.cfg.Retry,
		OnPhase: func(phase models.CrawlPhase, found int) {
			r.updateCrawl(crawlID, func(st *models.CrawlStatus) {
				st.Phase = phase
				st.RecordsFound = found
			})
		},
	})

	result, err := orch.Run(ctx, query)
	now := time.Now()

	r.mu.Lock()
	status := r.crawls[crawlID]
	s.activeCrawlCount = 0
	s.cancelCrawl = nil
	s.touch()

	status.FinishedAt = &now
	if err != nil {
		status.Phase = models.PhaseFailed
		status.Error = err.Error()
		log.Warn().
			Err(err).
			Str("crawl_id", crawlID).
			Str("kind", string(crawler.KindOf(err))).
			Msg("Crawl failed")
	} else {
		records := result.Records
		if len(records) > query.TargetCount {
			records = records[:query.TargetCount]
		}
		urlutil.ResolveProfileURLs(r.cfg.BaseURL, records)
		status.Phase = models.PhaseCompleted
		status.Records = records
		status.RecordsFound = len(records)
		status.Partial = result.Partial
		log.Info().
			Str("crawl_id", crawlID).
			Int("records", len(records)).
			Int("pages", result.PagesFetched).
			Bool("partial", result.Partial).
			Msg("Crawl completed")
	}

	// Retained before leaving the in-flight map so GetCrawl never misses.
	r.results.Put(crawlID, status)
	delete(r.crawls, crawlID)
	r.mu.Unlock()
}

func (r *Registry) updateCrawl(crawlID string, fn func(*models.CrawlStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if status, ok := r.crawls[crawlID]; ok {
		fn(status)
	}
}

// GetCrawl returns a snapshot of a crawl's progress or retained outcome.
func (r *Registry) GetCrawl(crawlID string) (*models.CrawlStatus, bool) {
	r.mu.Lock()
	if status, ok := r.crawls[crawlID]; ok {
		snapshot := *status
		r.mu.Unlock()
		return &snapshot, true
	}
	r.mu.Unlock()

	return r.results.Get(crawlID)
}

// GetSession returns a point-in-time view of one session.
func (r *Registry) GetSession(sessionID string) (SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return SessionInfo{}, false
	}
	return snapshotInfo(s), true
}

// ListSessions returns a point-in-time view of every live session.
func (r *Registry) ListSessions() []SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, snapshotInfo(s))
	}
	return infos
}

// SessionInfo is an immutable snapshot of one session's public state.
type SessionInfo struct {
	ID             string     `json:"session_id"`
	Identity       string     `json:"identity"`
	AuthState      string     `json:"auth_state"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ActiveCrawls   int        `json:"active_crawls"`
}

func snapshotInfo(s *CrawlSession) SessionInfo {
	return SessionInfo{
		ID:             s.ID,
		Identity:       s.Identity,
		AuthState:      s.AuthState().String(),
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
		ActiveCrawls:   s.activeCrawlCount,
	}
}

// CloseSession destroys a session. A session with an in-flight crawl is
// refused unless force is set, in which case the crawl is cancelled at its
// next between-pages checkpoint. The persisted profile directory survives
// either way.
func (r *Registry) CloseSession(sessionID string, force bool) (bool, error) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return false, ErrSessionNotFound
	}
	if s.activeCrawlCount > 0 {
		if !force {
			r.mu.Unlock()
			return false, ErrCrawlActive
		}
		if s.cancelCrawl != nil {
			s.cancelCrawl()
		}
	}
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if err := s.drv.Close(); err != nil {
		log.Debug().Err(err).Str("session_id", sessionID).Msg("Driver close failed")
	}
	log.Info().Str("session_id", sessionID).Bool("force", force).Msg("Closed session")
	return true, nil
}

// SweepExpired closes every expired idle session. Sessions with in-flight
// crawls are skipped; expiry never cancels running work.
func (r *Registry) SweepExpired() {
	now := time.Now()

	r.mu.Lock()
	var expired []*CrawlSession
	for id, s := range r.sessions {
		if s.Expired(now) && s.activeCrawlCount == 0 {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		if err := s.drv.Close(); err != nil {
			log.Debug().Err(err).Str("session_id", s.ID).Msg("Driver close failed during sweep")
		}
		log.Info().Str("session_id", s.ID).Msg("Swept expired session")
	}
}

// Stats reports registry-wide counters.
func (r *Registry) Stats() map[string]interface{} {
	r.mu.Lock()
	active := 0
	for _, s := range r.sessions {
		active += s.activeCrawlCount
	}
	stats := map[string]interface{}{
		"sessions":      len(r.sessions),
		"active_crawls": active,
		"worker_slots":  cap(r.workers),
	}
	r.mu.Unlock()

	for k, v := range r.results.Stats() {
		stats["results_"+k] = v
	}
	return stats
}

// Close stops the sweeper and tears down every session. In-flight crawls are
// cancelled.
func (r *Registry) Close() {
	r.sweeper.Stop()
	r.results.Close()

	r.mu.Lock()
	sessions := make([]*CrawlSession, 0, len(r.sessions))
	for id, s := range r.sessions {
		if s.cancelCrawl != nil {
			s.cancelCrawl()
		}
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		if err := s.drv.Close(); err != nil {
			log.Debug().Err(err).Str("session_id", s.ID).Msg("Driver close failed during shutdown")
		}
	}
	log.Debug().Msg("Session registry closed")
}
