// Package planner decides how many additional result pages a crawl fetches
// after the first one.
package planner

import (
	"errors"

	"github.com/cvscout/cvscout/pkg/models"
)

// ErrNoRecordsExtracted reports a first page that yielded nothing without the
// portal saying "no results". That is markup defeating the extractor, not an
// empty result set, and fetching more pages would only repeat the failure.
var ErrNoRecordsExtracted = errors.New("planner: first page yielded no records and no empty-results marker")

// Plan returns the number of pages to fetch after the first one.
//
// A first page already covering the target plans zero pages. Otherwise the
// remaining need is divided by the per-page yield (floored at the portal's
// nominal page size so a heavily-filtered first page does not balloon the
// plan), then clamped to maxPagesCap and, when known, to the detected total.
func Plan(targetCount, firstPageYield, detectedTotalPages, maxPagesCap int) (int, error) {
	if firstPageYield == 0 {
		return 0, ErrNoRecordsExtracted
	}
	if firstPageYield >= targetCount {
		return 0, nil
	}

	perPage := firstPageYield
	if perPage < models.ResultsPerPage {
		perPage = models.ResultsPerPage
	}

	total := (targetCount + perPage - 1) / perPage
	if maxPagesCap > 0 && total > maxPagesCap {
		total = maxPagesCap
	}
	if detectedTotalPages > 0 && total > detectedTotalPages {
		total = detectedTotalPages
	}

	additional := total - 1
	if additional < 0 {
		additional = 0
	}
	return additional, nil
}
