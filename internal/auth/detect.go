// internal/auth/detect.go
package auth

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cvscout/cvscout/internal/driver"
)

// detectResult classifies the page shown after a login attempt or a
// protected-resource visit.
type detectResult int

const (
	detectUnknown detectResult = iota
	detectSuccess
	detectFailed
)

func (r detectResult) String() string {
	switch r {
	case detectSuccess:
		return "success"
	case detectFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Marker sets, ordered cheapest first: URL, title, known elements, then
// weighted keyword counts over the whole page text. The portal reshuffles
// its markup often enough that no single signal is load-bearing.
var (
	successURLMarkers = []string{"dashboard", "recruiter", "cv-search"}
	failureURLMarkers = []string{"login", "signin", "auth", "error"}

	dashboardSelectors = []string{
		".dashboard", "#dashboard", ".recruiter-dashboard",
		".user-menu", ".nav-user", ".main-nav",
	}
	errorSelectors = []string{
		".error", ".alert-danger", ".login-error", ".form-error", ".error-message",
	}

	successKeywords = []string{
		"dashboard", "welcome", "logout", "sign out", "my account",
		"cv search", "candidate search", "recruiter",
	}
	failureKeywords = []string{
		"invalid credentials", "login failed", "incorrect password",
		"email not found", "authentication failed", "please try again",
	}
)

// detectLogin applies the layered success/failure detection to whatever page
// the driver currently shows.
func detectLogin(ctx context.Context, drv driver.Driver) detectResult {
	currentURL, err := drv.CurrentURL(ctx)
	if err != nil {
		return detectUnknown
	}
	currentURL = strings.ToLower(currentURL)

	// An explicit error element outranks every other signal, including a
	// success-looking URL served with a bounced login form.
	for _, sel := range errorSelectors {
		if el, err := drv.Find(ctx, sel); err == nil {
			text, _ := el.Text(ctx)
			log.Debug().Str("selector", sel).Str("text", text).Msg("Login error element present")
			return detectFailed
		}
	}

	onFailureURL := containsAny(currentURL, failureURLMarkers)
	if containsAny(currentURL, successURLMarkers) && !onFailureURL {
		return detectSuccess
	}

	if title, err := drv.Title(ctx); err == nil {
		title = strings.ToLower(title)
		if containsAny(title, successURLMarkers) && !containsAny(title, []string{"login", "sign in", "signin"}) {
			return detectSuccess
		}
	}
	for _, sel := range dashboardSelectors {
		if _, err := drv.Find(ctx, sel); err == nil {
			return detectSuccess
		}
	}

	pageText, err := drv.PageText(ctx)
	if err != nil {
		return detectUnknown
	}
	pageText = strings.ToLower(pageText)

	successCount := countMatches(pageText, successKeywords)
	failureCount := countMatches(pageText, failureKeywords)
	switch {
	case failureCount > 0:
		return detectFailed
	case successCount >= 2:
		return detectSuccess
	case onFailureURL:
		return detectFailed
	}

	log.Debug().
		Str("url", currentURL).
		Int("success_keywords", successCount).
		Msg("Login detection inconclusive")
	return detectUnknown
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func countMatches(s string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(s, k) {
			n++
		}
	}
	return n
}
