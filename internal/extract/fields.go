// internal/extract/fields.go
package extract

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// fieldRule is one ordered-fallback pipeline for a single record field:
// structural queries scoped to the container first, then a regex over the
// container's flattened text, then a fixed default. Each field resolves
// independently so one missing field never blocks the others.
type fieldRule struct {
	selectors []string
	pattern   *regexp.Regexp
	group     int
	fallback  string
}

// resolve runs the pipeline against one record container. The degraded flag
// reports that only the fallback value was available.
func (r fieldRule) resolve(container *goquery.Selection, flatText string) (string, bool) {
	for _, sel := range r.selectors {
		found := container.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		if text := cleanText(found.Text()); text != "" {
			return text, false
		}
	}
	if r.pattern != nil {
		if m := r.pattern.FindStringSubmatch(flatText); m != nil && len(m) > r.group {
			if text := cleanText(m[r.group]); text != "" {
				return text, false
			}
		}
	}
	return r.fallback, true
}

// Field pipelines, ordered primary selector first and the revision-variant
// alternates after it. The portal has cycled between table rows and card
// divs; the regexes cover the text-only layout.
var (
	locationRule = fieldRule{
		selectors: []string{".search-result-location", ".location", "td.location", "[data-field='location']"},
		pattern:   regexp.MustCompile(`(?i)location:\s*([^\n\r]+)`),
		group:     1,
	}
	salaryRule = fieldRule{
		selectors: []string{".search-result-salary", ".salary", "td.salary"},
		pattern:   regexp.MustCompile(`(?i)(?:expected salary|salary):\s*([^\n\r]+)`),
		group:     1,
	}
	jobTitleRule = fieldRule{
		selectors: []string{".search-result-title", ".job-title", "h3"},
		pattern:   regexp.MustCompile(`(?i)current job title:\s*([^\n\r]+)`),
		group:     1,
	}
	skillsRule = fieldRule{
		selectors: []string{".search-result-skills", ".skills", ".key-skills"},
		pattern:   regexp.MustCompile(`(?i)key skills:\s*([^\n\r]+)`),
		group:     1,
	}
	summaryRule = fieldRule{
		selectors: []string{".search-result-snippet", ".snippet", ".summary", "p.description"},
	}
	updatedRule = fieldRule{
		selectors: []string{},
		pattern:   regexp.MustCompile(`(?i)profile/cv last updated:\s*([^\n\r]+)`),
		group:     1,
	}
)
