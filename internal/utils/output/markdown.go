package output

import (
	"fmt"
	"html"
	"os"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	urlutil "github.com/cvscout/cvscout/internal/utils/url"
	"github.com/cvscout/cvscout/pkg/models"
)

// SaveMarkdown renders the candidate records as a Markdown report and writes
// it to filepath. The report is built as HTML, sanitized, and converted, so
// any markup a portal leaked into summaries comes out as plain Markdown.
func SaveMarkdown(records []models.CandidateRecord, baseURL, filepath string) error {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	// Add rule to resolve relative profile links
	converter.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			href, exists := selec.Attr("href")
			if !exists {
				return nil
			}
			resolved := urlutil.ResolveURL(baseURL, href)
			str := fmt.Sprintf("[%s](%s)", selec.Text(), resolved)
			return &str
		},
	})

	cleaned, err := CleanHTML(renderReport(records))
	if err != nil {
		return err
	}

	mdStr, err := converter.ConvertString(cleaned)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, []byte(mdStr), 0644)
}

func renderReport(records []models.CandidateRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<h1>Candidate Records (%d)</h1>\n", len(records)))

	for _, rec := range records {
		sb.WriteString(fmt.Sprintf("<h2>%d. ", rec.SearchRank))
		if rec.ProfileURL != "" {
			sb.WriteString(fmt.Sprintf("<a href=\"%s\">%s</a>", html.EscapeString(rec.ProfileURL), html.EscapeString(rec.Name)))
		} else {
			sb.WriteString(html.EscapeString(rec.Name))
		}
		sb.WriteString("</h2>\n<ul>\n")

		writeItem(&sb, "Job title", rec.CurrentJobTitle)
		writeItem(&sb, "Location", rec.Location)
		writeItem(&sb, "Salary", rec.SalaryText)
		if rec.MatchPercentage != nil {
			writeItem(&sb, "Match", fmt.Sprintf("%d%%", *rec.MatchPercentage))
		}
		writeItem(&sb, "Skills", strings.Join(rec.Skills, ", "))
		writeItem(&sb, "Profile updated", rec.ProfileUpdatedAt)
		writeItem(&sb, "Last viewed", rec.LastViewedAt)
		sb.WriteString("</ul>\n")

		if rec.Summary != "" {
			sb.WriteString(fmt.Sprintf("<p>%s</p>\n", html.EscapeString(rec.Summary)))
		}
	}
	return sb.String()
}

func writeItem(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	sb.WriteString(fmt.Sprintf("<li><strong>%s:</strong> %s</li>\n", label, html.EscapeString(value)))
}
