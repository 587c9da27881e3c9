package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const resultsPage = `<html><body>
<div id="results">
  <div class="search-result">
    <h2><a href="/cv/10001">Alice Morgan</a></h2>
    <div class="search-result-location">Manchester</div>
    <div class="search-result-salary">£35,000 - £45,000 per annum</div>
    <h3>Senior Go Developer</h3>
    <div class="search-result-skills">Go, Kubernetes, PostgreSQL</div>
    <span>92% match</span>
    <div class="search-result-status">Profile/CV Last Updated: 12/08/2026</div>
    <p>Last Viewed: 2 days ago</p>
  </div>
  <div class="search-result">
    <h2><a href="/cv/10002">Ben Okafor</a></h2>
    <div class="search-result-location">Leeds</div>
    <p>Last Viewed: Never</p>
  </div>
  <div class="search-result">
    <a href="/cv/10003">View CV</a>
  </div>
</div>
<div class="pagination">
  <a href="?page=1">1</a><a href="?page=2">2</a><a href="?page=7">7</a>
</div>
</body></html>`

const emptyPage = `<html><body>
<div class="search-results"><p>No results found for your search.</p></div>
</body></html>`

const brokenPage = `<html><body><div id="totally-new-markup"></div></body></html>`

func parsePage(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestExtractPage_FullResults(t *testing.T) {
	e := New("https://portal.example.com")
	outcome := e.ExtractPage(parsePage(t, resultsPage))

	if len(outcome.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(outcome.Records))
	}

	first := outcome.Records[0]
	if first.ExternalID != "10001" || first.IDSynthesized {
		t.Errorf("first id = %q (synthesized=%v)", first.ExternalID, first.IDSynthesized)
	}
	if first.Name != "Alice Morgan" {
		t.Errorf("first name = %q", first.Name)
	}
	if first.ProfileURL != "https://portal.example.com/cv/10001" {
		t.Errorf("profile url = %q", first.ProfileURL)
	}
	if first.Location != "Manchester" {
		t.Errorf("location = %q", first.Location)
	}
	if first.Salary == nil || first.Salary.Min != 35000 || first.Salary.Max != 45000 || first.Salary.Currency != "GBP" {
		t.Errorf("salary = %+v", first.Salary)
	}
	if len(first.Skills) != 3 || first.Skills[0] != "Go" {
		t.Errorf("skills = %v", first.Skills)
	}
	if first.MatchPercentage == nil || *first.MatchPercentage != 92 {
		t.Errorf("match = %v", first.MatchPercentage)
	}
	if first.ProfileUpdatedAt != "12/08/2026" {
		t.Errorf("updated = %q", first.ProfileUpdatedAt)
	}
	if first.LastViewedAt != "2 days ago" {
		t.Errorf("last viewed = %q", first.LastViewedAt)
	}

	second := outcome.Records[1]
	if second.LastViewedAt != "Never" {
		t.Errorf("second last viewed = %q", second.LastViewedAt)
	}
	if second.CurrentJobTitle != "" {
		t.Errorf("second job title = %q, want empty", second.CurrentJobTitle)
	}

	if outcome.DetectedTotalPages != 7 {
		t.Errorf("detected total pages = %d, want 7", outcome.DetectedTotalPages)
	}
	if outcome.NoResultsMarker {
		t.Error("no-results marker set on a populated page")
	}
	if outcome.Records[0].SearchRank != 0 {
		t.Error("search rank assigned during extraction")
	}
}

func TestExtractPage_SparseContainerStillYieldsRecord(t *testing.T) {
	e := New("https://portal.example.com")
	outcome := e.ExtractPage(parsePage(t, resultsPage))

	// Third container only carries a "View CV" link: id from the href, name
	// falls back, every optional field defaults.
	third := outcome.Records[2]
	if third.ExternalID != "10003" {
		t.Fatalf("third id = %q", third.ExternalID)
	}
	if third.Name != "Candidate_3" {
		t.Errorf("third name = %q, want positional fallback", third.Name)
	}
	if third.Location != "" || third.Skills != nil {
		t.Errorf("sparse record carries phantom fields: %+v", third)
	}
}

func TestExtractPage_NameOnlyContainerGetsSynthesizedID(t *testing.T) {
	page := `<html><body>
	<div class="search-result"><h2>Carol Denning</h2></div>
	</body></html>`
	outcome := New("https://portal.example.com").ExtractPage(parsePage(t, page))

	if len(outcome.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(outcome.Records))
	}
	rec := outcome.Records[0]
	if !rec.IDSynthesized {
		t.Error("expected synthesized id")
	}
	if !strings.HasPrefix(rec.ExternalID, "card_1_") {
		t.Errorf("synthesized id = %q", rec.ExternalID)
	}
	if rec.Name != "Carol Denning" {
		t.Errorf("name = %q", rec.Name)
	}
}

func TestExtractPage_TextOnlyLayoutFieldsStayBounded(t *testing.T) {
	// No field selectors match, so every labeled field resolves through its
	// regex. Each capture must stop at its own line instead of running on
	// into the following fields.
	page := `<html><body>
	<div class="candidate-card">
	  <a href="/cv/777">Erin Walsh</a>
	  <pre>
Location: Bristol
Expected Salary: £50,000 per annum
Current Job Title: Platform Engineer
Key Skills: Go, Terraform
Profile/CV Last Updated: 01/07/2026
Last Viewed: 3 weeks ago
	  </pre>
	</div>
	</body></html>`
	outcome := New("https://portal.example.com").ExtractPage(parsePage(t, page))

	if len(outcome.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(outcome.Records))
	}
	rec := outcome.Records[0]
	if rec.Location != "Bristol" {
		t.Errorf("location = %q, want just the location line", rec.Location)
	}
	if rec.SalaryText != "£50,000 per annum" {
		t.Errorf("salary = %q", rec.SalaryText)
	}
	if rec.CurrentJobTitle != "Platform Engineer" {
		t.Errorf("job title = %q", rec.CurrentJobTitle)
	}
	if len(rec.Skills) != 2 || rec.Skills[1] != "Terraform" {
		t.Errorf("skills = %v", rec.Skills)
	}
	if rec.ProfileUpdatedAt != "01/07/2026" {
		t.Errorf("updated = %q", rec.ProfileUpdatedAt)
	}
}

func TestExtractPage_DiscardsAnonymousContainer(t *testing.T) {
	page := `<html><body>
	<div class="search-result"><h2><a href="/cv/500">Dana Fox</a></h2></div>
	<div class="search-result"><span>promoted listing</span></div>
	</body></html>`
	outcome := New("https://portal.example.com").ExtractPage(parsePage(t, page))

	if len(outcome.Records) != 1 {
		t.Fatalf("records = %d, want 1 (anonymous container discarded)", len(outcome.Records))
	}
	if outcome.Records[0].ExternalID != "500" {
		t.Errorf("surviving record id = %q", outcome.Records[0].ExternalID)
	}
}

func TestExtractPage_NoResultsMarker(t *testing.T) {
	outcome := New("https://portal.example.com").ExtractPage(parsePage(t, emptyPage))

	if len(outcome.Records) != 0 {
		t.Fatalf("records = %d, want 0", len(outcome.Records))
	}
	if !outcome.NoResultsMarker {
		t.Error("no-results marker not detected")
	}
}

func TestExtractPage_UnrecognizedMarkup(t *testing.T) {
	outcome := New("https://portal.example.com").ExtractPage(parsePage(t, brokenPage))

	if len(outcome.Records) != 0 {
		t.Fatalf("records = %d, want 0", len(outcome.Records))
	}
	if outcome.NoResultsMarker {
		t.Error("no-results marker set on unparseable page")
	}
}

func TestDetectTotalPages_PageOfText(t *testing.T) {
	page := `<html><body>
	<div class="search-result"><h2><a href="/cv/1">A B</a></h2></div>
	<p>Page 1 of 42</p>
	</body></html>`
	outcome := New("https://portal.example.com").ExtractPage(parsePage(t, page))
	if outcome.DetectedTotalPages != 42 {
		t.Fatalf("detected total pages = %d, want 42", outcome.DetectedTotalPages)
	}
}
