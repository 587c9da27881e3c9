// internal/crawler/search_form.go
package crawler

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cvscout/cvscout/internal/driver"
	urlutil "github.com/cvscout/cvscout/internal/utils/url"
	"github.com/cvscout/cvscout/pkg/models"
)

// Search form selector fallbacks. The quick-search and advanced-search
// variants name their fields the same way.
var (
	keywordsSelectors = []string{
		"input[name='keywords']", "#keywords", "input[placeholder*='eywords']",
	}
	locationSelectors = []string{
		"input[name='geo']", "input[name='location']", "#location",
	}
	searchSubmitSelectors = []string{
		"input[type='submit'][value='View results']",
		"button[type='submit']",
		"input[type='submit']",
	}
)

// submitSearch fills and submits the portal search form, then decorates the
// results URL with the query's filters. Returns the canonical results URL
// that pagination appends page numbers to.
func (o *Orchestrator) submitSearch(ctx context.Context, query models.SearchQuery) (string, error) {
	if err := o.pacer.WaitIfNeeded(ctx); err != nil {
		return "", err
	}
	if err := o.drv.Navigate(ctx, o.searchURL); err != nil {
		o.pacer.OnError()
		return "", err
	}

	keywordsField, err := findFirst(ctx, o.drv, keywordsSelectors)
	if err != nil {
		return "", err
	}
	if err := keywordsField.Fill(ctx, buildKeywordExpression(query)); err != nil {
		return "", err
	}

	if query.Location != "" {
		if locField, err := findFirst(ctx, o.drv, locationSelectors); err == nil {
			if err := locField.Fill(ctx, query.Location); err != nil {
				return "", err
			}
		} else {
			log.Debug().Msg("No location field on search form, deferring to URL filter")
		}
	}

	if err := o.pacer.WaitIfNeeded(ctx); err != nil {
		return "", err
	}
	submit, err := findFirst(ctx, o.drv, searchSubmitSelectors)
	if err != nil {
		return "", err
	}
	if err := submit.Click(ctx); err != nil {
		o.pacer.OnError()
		return "", err
	}
	o.pacer.OnSuccess()

	resultsURL, err := o.drv.CurrentURL(ctx)
	if err != nil {
		return "", err
	}

	filtered := applyFilters(resultsURL, query)
	if filtered != resultsURL {
		if err := o.pacer.WaitIfNeeded(ctx); err != nil {
			return "", err
		}
		if err := o.drv.Navigate(ctx, filtered); err != nil {
			o.pacer.OnError()
			return "", err
		}
		o.pacer.OnSuccess()
	}
	return filtered, nil
}

// navigateToPage loads the given 1-based results page. URL-parameter paging
// first; when the URL round-trips unchanged a visible next-link is the
// fallback.
func (o *Orchestrator) navigateToPage(ctx context.Context, resultsURL string, page int) error {
	if err := o.pacer.WaitIfNeeded(ctx); err != nil {
		return err
	}

	target := urlutil.WithPageParam(resultsURL, page)
	if err := o.drv.Navigate(ctx, target); err == nil {
		if current, cerr := o.drv.CurrentURL(ctx); cerr == nil && current == target {
			o.pacer.OnSuccess()
			return nil
		}
	} else {
		o.pacer.OnError()
	}

	for _, sel := range []string{"a[rel='next']", ".pagination .next a", "a.next"} {
		el, err := o.drv.Find(ctx, sel)
		if err != nil {
			continue
		}
		if err := el.Click(ctx); err == nil {
			o.pacer.OnSuccess()
			return nil
		}
	}
	o.pacer.OnError()
	return driver.ErrElementNotFound
}

// buildKeywordExpression merges the keyword list with the boolean refinement
// terms into the portal's search syntax.
func buildKeywordExpression(query models.SearchQuery) string {
	parts := make([]string, 0, len(query.Keywords))
	parts = append(parts, query.Keywords...)
	for _, kw := range query.MustHaveKeywords {
		parts = append(parts, "+"+quoteIfSpaced(kw))
	}
	for _, kw := range query.NoneKeywords {
		parts = append(parts, "-"+quoteIfSpaced(kw))
	}
	if len(query.AnyKeywords) > 0 {
		quoted := make([]string, len(query.AnyKeywords))
		for i, kw := range query.AnyKeywords {
			quoted[i] = quoteIfSpaced(kw)
		}
		parts = append(parts, "("+strings.Join(quoted, " OR ")+")")
	}
	return strings.Join(parts, " ")
}

func quoteIfSpaced(s string) string {
	if strings.ContainsRune(s, ' ') {
		return `"` + s + `"`
	}
	return s
}

// applyFilters encodes the query's categorical filters onto the results URL.
func applyFilters(resultsURL string, query models.SearchQuery) string {
	u, err := url.Parse(resultsURL)
	if err != nil {
		return resultsURL
	}
	q := u.Query()

	setInt := func(key string, v int) {
		if v > 0 {
			q.Set(key, strconv.Itoa(v))
		}
	}
	setStr := func(key, v string) {
		if v != "" {
			q.Set(key, v)
		}
	}
	setBool := func(key string, v bool) {
		if v {
			q.Set(key, "1")
		}
	}

	setInt("salarymin", query.SalaryMin)
	setInt("salarymax", query.SalaryMax)
	setInt("distance", query.Distance)
	setInt("match", query.MinimumMatch)
	setStr("tempperm", query.JobType)
	setStr("industry", query.Industry)
	setStr("posted", query.TimePeriod)
	setBool("relocate", query.WillingToRelocate)
	setBool("driving", query.UKDrivingLicence)
	setBool("hideviewed", query.HideRecentlyViewed)
	if len(query.Languages) > 0 {
		q.Set("languages", strings.Join(query.Languages, ","))
	}
	if query.Sort != "" && query.Sort != models.SortRelevance {
		q.Set("order", string(query.Sort))
	}

	u.RawQuery = q.Encode()
	return u.String()
}

func findFirst(ctx context.Context, drv driver.Driver, selectors []string) (driver.Element, error) {
	for _, sel := range selectors {
		if el, err := drv.Find(ctx, sel); err == nil {
			return el, nil
		}
	}
	return nil, driver.ErrElementNotFound
}
