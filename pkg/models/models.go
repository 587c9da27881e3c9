package models

import "time"

// SortOrder controls result ordering requested from the portal.
type SortOrder string

const (
	SortRelevance  SortOrder = "relevancy"
	SortUpdated    SortOrder = "updated"
	SortDistance   SortOrder = "distance"
	SortSalaryAsc  SortOrder = "salary_asc"
	SortSalaryDesc SortOrder = "salary_desc"

	DefaultSort = SortRelevance

	// ResultsPerPage is the portal page size, used as the planner fallback
	// estimate when the first page yield is unusable.
	ResultsPerPage = 20

	DefaultMaxPages = 25
)

// SearchQuery is the immutable description of one crawl request.
type SearchQuery struct {
	Keywords     []string `json:"keywords" validate:"required,min=1,dive,required"`
	Location     string   `json:"location,omitempty"`
	Distance     int      `json:"distance,omitempty" validate:"gte=0"`
	SalaryMin    int      `json:"salary_min,omitempty" validate:"gte=0"`
	SalaryMax    int      `json:"salary_max,omitempty" validate:"gte=0"`
	JobType      string   `json:"job_type,omitempty"`
	Industry     string   `json:"industry,omitempty"`
	TimePeriod   string   `json:"time_period,omitempty"` // recency window in days, e.g. "7"
	Languages    []string `json:"languages,omitempty"`
	MinimumMatch int      `json:"minimum_match,omitempty" validate:"gte=0,lte=100"`

	// Advanced keyword boolean groups.
	MustHaveKeywords []string `json:"must_have_keywords,omitempty"`
	AnyKeywords      []string `json:"any_keywords,omitempty"`
	NoneKeywords     []string `json:"none_keywords,omitempty"`

	WillingToRelocate  bool `json:"willing_to_relocate,omitempty"`
	UKDrivingLicence   bool `json:"uk_driving_licence,omitempty"`
	HideRecentlyViewed bool `json:"hide_recently_viewed,omitempty"`

	TargetCount int       `json:"target_count" validate:"required,gt=0"`
	MaxPages    int       `json:"max_pages,omitempty" validate:"gte=0"`
	Sort        SortOrder `json:"sort,omitempty"`
}

// CandidateRecord is one extracted search result.
//
// ExternalID is the portal-assigned identifier when present. When the portal
// exposes none, a fallback id derived from page position and timestamp is
// used and IDSynthesized is set.
type CandidateRecord struct {
	ExternalID       string   `json:"external_id"`
	IDSynthesized    bool     `json:"id_synthesized,omitempty"`
	Name             string   `json:"name"`
	ProfileURL       string   `json:"profile_url,omitempty"`
	Location         string   `json:"location,omitempty"`
	SalaryText       string   `json:"salary_text,omitempty"`
	Salary           *Salary  `json:"salary,omitempty"`
	Skills           []string `json:"skills,omitempty"`
	Summary          string   `json:"summary,omitempty"`
	CurrentJobTitle  string   `json:"current_job_title,omitempty"`
	MatchPercentage  *int     `json:"match_percentage,omitempty"`
	LastViewedAt     string   `json:"last_viewed_at,omitempty"`
	ProfileUpdatedAt string   `json:"profile_updated_at,omitempty"`

	// SearchRank is the 1-based position across the whole accumulated result
	// set. Assigned by the orchestrator, not during per-page extraction.
	SearchRank int `json:"search_rank"`
}

// Salary is the parsed form of a salary string.
type Salary struct {
	Min      int    `json:"min,omitempty"`
	Max      int    `json:"max,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// PageOutcome is the transient result of extracting one rendered results page.
type PageOutcome struct {
	Records []CandidateRecord `json:"records"`

	// DetectedTotalPages is the pagination total as read off the page,
	// 0 when the page exposes none.
	DetectedTotalPages int `json:"detected_total_pages,omitempty"`

	// NoResultsMarker reports whether the page carried an explicit
	// "no results" message. Zero records without the marker is a parse
	// failure, not an empty result set.
	NoResultsMarker bool `json:"no_results_marker,omitempty"`

	Elapsed time.Duration `json:"-"`
}

// CrawlPhase tracks the progress of a crawl through the registry.
type CrawlPhase string

const (
	PhaseInitializing   CrawlPhase = "initializing"
	PhaseAuthenticating CrawlPhase = "authenticating"
	PhaseSearching      CrawlPhase = "searching"
	PhasePaginating     CrawlPhase = "paginating"
	PhaseCompleted      CrawlPhase = "completed"
	PhaseFailed         CrawlPhase = "failed"
)

// CrawlStatus is the caller-visible snapshot of a crawl.
type CrawlStatus struct {
	CrawlID      string            `json:"crawl_id"`
	SessionID    string            `json:"session_id"`
	Phase        CrawlPhase        `json:"phase"`
	RecordsFound int               `json:"records_found_so_far"`
	Partial      bool              `json:"partial"`
	Error        string            `json:"error,omitempty"`
	Records      []CandidateRecord `json:"records,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
}

// Terminal reports whether the crawl has finished, successfully or not.
func (s *CrawlStatus) Terminal() bool {
	return s.Phase == PhaseCompleted || s.Phase == PhaseFailed
}
