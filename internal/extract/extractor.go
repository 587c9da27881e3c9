// Package extract turns one rendered results page into candidate records.
//
// Nothing here depends on a single structural query: record containers and
// every per-field value resolve through ordered fallback chains, so a portal
// markup revision degrades individual fields instead of killing the crawl.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	urlutil "github.com/cvscout/cvscout/internal/utils/url"
	"github.com/cvscout/cvscout/pkg/models"
)

// Container discovery fallbacks, table layouts first. The portal has shipped
// both table-row and card-div result markup.
var containerSelectors = []string{
	".search-result",
	".candidate-result",
	".result-row",
	".candidate-card",
	"#searchresults tbody tr",
	".search-results tbody tr",
	"[data-candidate-id]",
	"[data-cv-id]",
}

var noResultsMarkers = []string{
	"no results",
	"no candidates found",
	"did not match any",
	"0 candidates",
}

var (
	cvIDRe       = regexp.MustCompile(`/cv/(\d+)`)
	lastViewedRe = regexp.MustCompile(`Last Viewed:\s*([^\n\r]+)`)
	pageOfRe     = regexp.MustCompile(`(?i)page\s+\d+\s+of\s+([\d,]+)`)
	resultsOfRe  = regexp.MustCompile(`(?i)of\s+([\d,]+)\s+(?:results|candidates)`)
)

// Extractor parses rendered results pages. Safe for concurrent use; it holds
// no per-page state.
type Extractor struct {
	baseURL string
}

func New(baseURL string) *Extractor {
	return &Extractor{baseURL: baseURL}
}

// ExtractPage parses one already-loaded results page. Zero records plus
// PageOutcome.NoResultsMarker false means the markup defeated every container
// fallback; the planner treats that as a parse failure.
func (e *Extractor) ExtractPage(doc *goquery.Document) models.PageOutcome {
	start := time.Now()
	outcome := models.PageOutcome{}

	bodyText := doc.Find("body").Text()
	outcome.NoResultsMarker = hasNoResultsMarker(bodyText)
	outcome.DetectedTotalPages = detectTotalPages(doc, bodyText)

	containers := findContainers(doc)
	if len(containers) == 0 {
		outcome.Elapsed = time.Since(start)
		return outcome
	}

	// One whole-page pass for Last Viewed dates, distributed positionally.
	// Cheaper than a per-record text walk; the positional correspondence is
	// best-effort, not guaranteed (hidden containers can desynchronize it).
	lastViewed := batchLastViewed(bodyText)

	for i, container := range containers {
		record, ok := e.extractRecord(container, i)
		if !ok {
			log.Debug().Int("container", i).Msg("Discarding container without identifier or name")
			continue
		}
		if i < len(lastViewed) {
			record.LastViewedAt = lastViewed[i]
		}
		outcome.Records = append(outcome.Records, record)
	}

	outcome.Elapsed = time.Since(start)
	log.Debug().
		Int("containers", len(containers)).
		Int("records", len(outcome.Records)).
		Dur("elapsed", outcome.Elapsed).
		Msg("Extracted results page")
	return outcome
}

func findContainers(doc *goquery.Document) []*goquery.Selection {
	for _, sel := range containerSelectors {
		found := doc.Find(sel)
		if found.Length() == 0 {
			continue
		}
		containers := make([]*goquery.Selection, 0, found.Length())
		found.Each(func(_ int, s *goquery.Selection) {
			containers = append(containers, s)
		})
		return containers
	}
	return nil
}

// extractRecord parses one container. Returns ok=false only when the
// container carries neither an identifier-bearing link nor a name fragment;
// anything else yields a record, padded with defaults where fields are
// missing.
func (e *Extractor) extractRecord(container *goquery.Selection, index int) (models.CandidateRecord, bool) {
	// Line-preserving so line-bounded regex fallbacks cannot capture past
	// their own field.
	flat := cleanLines(container.Text())

	record := models.CandidateRecord{
		ExternalID:    synthesizedID(index),
		IDSynthesized: true,
	}

	cvLinks := container.Find("a[href*='/cv/']")
	if href, ok := cvLinks.First().Attr("href"); ok {
		if m := cvIDRe.FindStringSubmatch(href); m != nil {
			record.ExternalID = m[1]
			record.IDSynthesized = false
		}
		record.ProfileURL = urlutil.ResolveURL(e.baseURL, href)
	}

	record.Name = extractName(container, cvLinks, index)

	if cvLinks.Length() == 0 && record.Name == fallbackName(index) {
		return models.CandidateRecord{}, false
	}

	record.Location, _ = locationRule.resolve(container, flat)
	record.SalaryText, _ = salaryRule.resolve(container, flat)
	if record.SalaryText != "" {
		record.Salary = parseSalary(record.SalaryText)
	}
	record.CurrentJobTitle, _ = jobTitleRule.resolve(container, flat)
	record.Summary, _ = summaryRule.resolve(container, flat)
	record.ProfileUpdatedAt, _ = updatedRule.resolve(container, flat)

	if skillsText, degraded := skillsRule.resolve(container, flat); !degraded {
		record.Skills = parseSkills(skillsText)
	}

	container.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(strings.ToLower(text), "match") {
			if pct := parseMatchPercentage(text); pct != nil {
				record.MatchPercentage = pct
				return false
			}
		}
		return true
	})

	return record, true
}

// extractName prefers the heading link, then any substantial cv-link text,
// then non-link headings, then the positional fallback.
func extractName(container *goquery.Selection, cvLinks *goquery.Selection, index int) string {
	if name := cleanText(container.Find("h2 a[href*='/cv/']").First().Text()); name != "" {
		return name
	}
	name := ""
	cvLinks.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if len(text) > 3 && !strings.HasPrefix(strings.ToLower(text), "view") {
			name = text
			return false
		}
		return true
	})
	if name != "" {
		return name
	}
	for _, sel := range []string{"h2", ".candidate-name", ".name"} {
		if name := cleanText(container.Find(sel).First().Text()); name != "" {
			return name
		}
	}
	return fallbackName(index)
}

func fallbackName(index int) string {
	return "Candidate_" + strconv.Itoa(index+1)
}

func synthesizedID(index int) string {
	return "card_" + strconv.Itoa(index+1) + "_" + strconv.FormatInt(time.Now().Unix(), 10)
}

func batchLastViewed(bodyText string) []string {
	matches := lastViewedRe.FindAllStringSubmatch(bodyText, -1)
	dates := make([]string, 0, len(matches))
	for _, m := range matches {
		dates = append(dates, cleanText(m[1]))
	}
	return dates
}

func hasNoResultsMarker(bodyText string) bool {
	lower := strings.ToLower(bodyText)
	for _, marker := range noResultsMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// detectTotalPages reads the pagination total: "Page 1 of N" text first,
// then the largest numeric pagination link, then a result-count estimate.
func detectTotalPages(doc *goquery.Document, bodyText string) int {
	if m := pageOfRe.FindStringSubmatch(bodyText); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil && n > 0 {
			return n
		}
	}

	max := 0
	doc.Find(".pagination a, .pager a, nav[aria-label='pagination'] a").Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(cleanText(s.Text())); err == nil && n > max {
			max = n
		}
	})
	if max > 0 {
		return max
	}

	if m := resultsOfRe.FindStringSubmatch(bodyText); m != nil {
		if total, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil && total > 0 {
			return (total + models.ResultsPerPage - 1) / models.ResultsPerPage
		}
	}
	return 0
}
