// internal/extract/parse.go
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cvscout/cvscout/pkg/models"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	salaryRe     = regexp.MustCompile(`([£$€])\s*([\d,.]+)\s*(k)?(?:\s*(?:-|to)\s*[£$€]?\s*([\d,.]+)\s*(k)?)?`)
	percentRe    = regexp.MustCompile(`(\d{1,3})\s*%`)
)

var currencyBySymbol = map[string]string{
	"£": "GBP",
	"$": "USD",
	"€": "EUR",
}

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// cleanLines collapses whitespace within each line but keeps the line
// breaks, so line-bounded regex captures stop at the end of their own field
// instead of swallowing the rest of the container text.
func cleanLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if cleaned := cleanText(line); cleaned != "" {
			kept = append(kept, cleaned)
		}
	}
	return strings.Join(kept, "\n")
}

// parseSalary interprets free-form salary text like "£30,000 - £40,000 per
// annum" or "£45k". Returns nil when no amount can be read; the raw text is
// still kept on the record.
func parseSalary(text string) *models.Salary {
	m := salaryRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	min, ok := parseAmount(m[2], m[3] != "")
	if !ok {
		return nil
	}
	sal := &models.Salary{
		Min:      min,
		Max:      min,
		Currency: currencyBySymbol[m[1]],
	}
	if m[4] != "" {
		if max, ok := parseAmount(m[4], m[5] != ""); ok && max >= min {
			sal.Max = max
		}
	}
	return sal
}

func parseAmount(s string, thousands bool) (int, bool) {
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if thousands {
		f *= 1000
	}
	return int(f), true
}

// parseMatchPercentage reads the first percentage out of text like
// "87% match". Values above 100 are treated as noise.
func parseMatchPercentage(text string) *int {
	m := percentRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > 100 {
		return nil
	}
	return &n
}

// parseSkills splits a skills line into its ordered items. The portal
// renders these comma- or bullet-separated.
func parseSkills(text string) []string {
	text = strings.NewReplacer("•", ",", "|", ",", ";", ",").Replace(text)
	var skills []string
	for _, part := range strings.Split(text, ",") {
		if s := cleanText(part); s != "" {
			skills = append(skills, s)
		}
	}
	return skills
}
