// Package crawler runs one crawl end to end: verify the session, submit the
// query, walk the result pages in order and accumulate deduplicated records.
package crawler

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/cvscout/cvscout/internal/auth"
	"github.com/cvscout/cvscout/internal/driver"
	"github.com/cvscout/cvscout/internal/extract"
	"github.com/cvscout/cvscout/internal/planner"
	"github.com/cvscout/cvscout/internal/ratelimit"
	"github.com/cvscout/cvscout/internal/retry"
	"github.com/cvscout/cvscout/pkg/models"
)

// Result is what one completed crawl hands back. Records carry their final
// search rank; Partial reports that the portal ran out of candidates before
// the target was met.
type Result struct {
	Records      []models.CandidateRecord
	Partial      bool
	PagesFetched int
}

// Orchestrator drives one session's automation driver through a single
// crawl. It is not safe for concurrent use; the session registry guarantees
// one crawl per session.
type Orchestrator struct {
	drv       driver.Driver
	authMgr   *auth.Manager
	pacer     ratelimit.Pacer
	extractor *extract.Extractor
	searchURL string
	retryCfg  retry.Config

	// onPhase, when set, observes phase transitions for progress reporting.
	onPhase func(models.CrawlPhase, int)
}

type Options struct {
	SearchURL string
	Retry     retry.Config
	OnPhase   func(phase models.CrawlPhase, recordsFound int)
}

func NewOrchestrator(drv driver.Driver, authMgr *auth.Manager, pacer ratelimit.Pacer, extractor *extract.Extractor, opts Options) *Orchestrator {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}
	return &Orchestrator{
		drv:       drv,
		authMgr:   authMgr,
		pacer:     pacer,
		extractor: extractor,
		searchURL: opts.SearchURL,
		retryCfg:  opts.Retry,
		onPhase:   opts.OnPhase,
	}
}

func (o *Orchestrator) phase(p models.CrawlPhase, found int) {
	if o.onPhase != nil {
		o.onPhase(p, found)
	}
}

// Run executes the crawl. Running out of candidates is not an error: the
// result comes back with Partial set. Every other failure is a CrawlError.
func (o *Orchestrator) Run(ctx context.Context, query models.SearchQuery) (*Result, error) {
	if err := query.Validate(); err != nil {
		return nil, NewCrawlError(KindPrecondition, "invalid search query", err)
	}
	query = query.Normalized()

	o.phase(models.PhaseAuthenticating, 0)
	if state := o.authMgr.Verify(ctx); !state.Usable() {
		return nil, NewCrawlError(KindAuthentication, "session not usable: "+state.String(), nil)
	}

	o.phase(models.PhaseSearching, 0)
	var resultsURL string
	err := retry.WithRetry(ctx, o.retryCfg, func() error {
		var serr error
		resultsURL, serr = o.submitSearch(ctx, query)
		return serr
	})
	if err != nil {
		return nil, mapDriverError("submit search", err)
	}

	firstPage, err := o.extractCurrentPage(ctx)
	if err != nil {
		return nil, err
	}

	acc := newAccumulator()
	acc.add(firstPage.Records)

	if len(firstPage.Records) == 0 {
		if firstPage.NoResultsMarker {
			log.Info().Msg("Portal reported no results for query")
			return &Result{Records: nil, Partial: true, PagesFetched: 1}, nil
		}
		return nil, NewCrawlError(KindExtractionDegradation,
			"first page yielded no records and no empty-results marker", planner.ErrNoRecordsExtracted)
	}

	maxCap := query.MaxPages
	if maxCap <= 0 {
		maxCap = models.DefaultMaxPages
	}
	additional, err := planner.Plan(query.TargetCount, len(firstPage.Records), firstPage.DetectedTotalPages, maxCap)
	if err != nil {
		return nil, NewCrawlError(KindExtractionDegradation, "pagination planning failed", err)
	}

	log.Debug().
		Int("first_page_yield", len(firstPage.Records)).
		Int("detected_total_pages", firstPage.DetectedTotalPages).
		Int("additional_pages", additional).
		Msg("Planned pagination")

	pagesFetched := 1
	if additional > 0 {
		o.phase(models.PhasePaginating, acc.len())
	}

	// Pages are fetched strictly in order; each page's yield can end the
	// walk early. Cancellation is honoured here, between pages, never
	// mid-page-load.
	for page := 2; page <= additional+1; page++ {
		if err := ctx.Err(); err != nil {
			return nil, NewCrawlError(KindTransientInteraction, "cancelled", err)
		}
		if acc.len() >= query.TargetCount {
			break
		}

		err := retry.WithRetry(ctx, o.retryCfg, func() error {
			return o.navigateToPage(ctx, resultsURL, page)
		})
		if err != nil {
			log.Warn().Err(err).Int("page", page).Msg("Stopping pagination on navigation failure")
			break
		}

		outcome, err := o.extractCurrentPage(ctx)
		if err != nil {
			return nil, err
		}
		pagesFetched++
		if len(outcome.Records) == 0 {
			log.Debug().Int("page", page).Msg("Empty page, result set exhausted")
			break
		}
		acc.add(outcome.Records)
		o.phase(models.PhasePaginating, acc.len())
	}

	records := acc.records
	partial := len(records) < query.TargetCount
	return &Result{Records: records, Partial: partial, PagesFetched: pagesFetched}, nil
}

func (o *Orchestrator) extractCurrentPage(ctx context.Context) (models.PageOutcome, error) {
	html, err := o.drv.PageHTML(ctx)
	if err != nil {
		return models.PageOutcome{}, mapDriverError("read page", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.PageOutcome{}, NewCrawlError(KindExtractionDegradation, "unparseable page markup", err)
	}
	return o.extractor.ExtractPage(doc), nil
}

// mapDriverError folds raw driver failures into the taxonomy at the
// orchestrator boundary.
func mapDriverError(op string, err error) error {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return err
	}
	return NewCrawlError(KindTransientInteraction, op, err)
}

// accumulator deduplicates records as pages arrive and assigns the global
// search rank at accumulation time.
type accumulator struct {
	records  []models.CandidateRecord
	seenIDs  map[string]struct{}
	seenKeys map[string]struct{}
	rank     int
	dropped  int
}

func newAccumulator() *accumulator {
	return &accumulator{
		seenIDs:  make(map[string]struct{}),
		seenKeys: make(map[string]struct{}),
	}
}

func (a *accumulator) len() int { return len(a.records) }

func (a *accumulator) add(records []models.CandidateRecord) {
	for _, rec := range records {
		if a.duplicate(rec) {
			a.dropped++
			continue
		}
		a.rank++
		rec.SearchRank = a.rank
		a.records = append(a.records, rec)
	}
	if a.dropped > 0 {
		log.Debug().Int("dropped", a.dropped).Msg("Dropped duplicate records")
	}
}

// duplicate checks the site-assigned id first. Synthesized ids carry no
// cross-page identity, so those fall back to a name+location+title key.
func (a *accumulator) duplicate(rec models.CandidateRecord) bool {
	if !rec.IDSynthesized {
		if _, ok := a.seenIDs[rec.ExternalID]; ok {
			return true
		}
		a.seenIDs[rec.ExternalID] = struct{}{}
		return false
	}

	key := similarityKey(rec)
	if _, ok := a.seenKeys[key]; ok {
		return true
	}
	a.seenKeys[key] = struct{}{}
	return false
}

func similarityKey(rec models.CandidateRecord) string {
	return strings.ToLower(rec.Name) + "|" + strings.ToLower(rec.Location) + "|" + strings.ToLower(rec.CurrentJobTitle)
}
