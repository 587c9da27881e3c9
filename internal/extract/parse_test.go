package extract

import "testing"

func TestParseSalary(t *testing.T) {
	tests := []struct {
		in       string
		min, max int
		currency string
	}{
		{"£30,000 - £40,000 per annum", 30000, 40000, "GBP"},
		{"£45k", 45000, 45000, "GBP"},
		{"£35k to £50k", 35000, 50000, "GBP"},
		{"$90,000", 90000, 90000, "USD"},
		{"€55,000 - €65,000", 55000, 65000, "EUR"},
	}
	for _, tt := range tests {
		sal := parseSalary(tt.in)
		if sal == nil {
			t.Errorf("parseSalary(%q) = nil", tt.in)
			continue
		}
		if sal.Min != tt.min || sal.Max != tt.max || sal.Currency != tt.currency {
			t.Errorf("parseSalary(%q) = %+v, want %d-%d %s", tt.in, sal, tt.min, tt.max, tt.currency)
		}
	}

	for _, in := range []string{"Negotiable", "Competitive", ""} {
		if sal := parseSalary(in); sal != nil {
			t.Errorf("parseSalary(%q) = %+v, want nil", in, sal)
		}
	}
}

func TestParseMatchPercentage(t *testing.T) {
	if pct := parseMatchPercentage("92% match"); pct == nil || *pct != 92 {
		t.Errorf("parseMatchPercentage = %v", pct)
	}
	if pct := parseMatchPercentage("250% match"); pct != nil {
		t.Errorf("out-of-range percentage accepted: %v", pct)
	}
	if pct := parseMatchPercentage("no percentage here"); pct != nil {
		t.Errorf("parseMatchPercentage = %v, want nil", pct)
	}
}

func TestParseSkills(t *testing.T) {
	got := parseSkills("Go, Kubernetes • PostgreSQL | Terraform")
	want := []string{"Go", "Kubernetes", "PostgreSQL", "Terraform"}
	if len(got) != len(want) {
		t.Fatalf("parseSkills = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("parseSkills[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
