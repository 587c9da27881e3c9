// internal/crawler/errors.go
package crawler

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the crawler surfaces. Driver-level
// errors never escape raw; they are mapped to one of these at the
// orchestrator boundary.
type ErrorKind string

const (
	// KindPrecondition is a missing or invalid query/credential. Never
	// retried, surfaced immediately.
	KindPrecondition ErrorKind = "PRECONDITION"

	// KindTransientInteraction is a missing element, stale reference or
	// page-load timeout. Retried a small fixed number of times, then
	// escalated.
	KindTransientInteraction ErrorKind = "TRANSIENT_INTERACTION"

	// KindAuthentication is a login or verification failure. Not retried
	// within the same call; the session must be re-authenticated.
	KindAuthentication ErrorKind = "AUTHENTICATION"

	// KindExtractionDegradation is a page whose markup defeated the
	// extractor entirely. Partial per-field losses are recorded on the
	// record instead and never raise.
	KindExtractionDegradation ErrorKind = "EXTRACTION_DEGRADATION"

	// KindExhaustion is running out of candidates or pages. Reported as
	// partial success, not as a crawl failure.
	KindExhaustion ErrorKind = "EXHAUSTION"
)

// CrawlError wraps a failure with its taxonomy kind and a human-readable
// reason.
type CrawlError struct {
	Kind       ErrorKind
	Message    string
	Underlying error
}

func (e *CrawlError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Underlying
}

// Is matches on kind when the target is a CrawlError, and otherwise defers
// to the underlying chain.
func (e *CrawlError) Is(target error) bool {
	if t, ok := target.(*CrawlError); ok {
		return e.Kind == t.Kind
	}
	return errors.Is(e.Underlying, target)
}

// NewCrawlError creates a CrawlError of the given kind.
func NewCrawlError(kind ErrorKind, message string, err error) *CrawlError {
	return &CrawlError{
		Kind:       kind,
		Message:    message,
		Underlying: err,
	}
}

// KindOf extracts the taxonomy kind from any error. Unclassified errors
// report as transient, the safest escalation path.
func KindOf(err error) ErrorKind {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransientInteraction
}
