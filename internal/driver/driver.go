// Package driver defines the automation driver boundary: the capability to
// load pages, query the rendered DOM, and simulate user interaction.
//
// Two implementations exist: a chromedp-backed browser driver used in
// production and a goquery/goja-backed static driver used for tests and
// offline dry runs. Neither implementation is safe for concurrent use; a
// driver instance must be driven by at most one crawl at a time.
package driver

import (
	"context"
	"errors"
)

// ErrElementNotFound is returned by Find when no element matches.
var ErrElementNotFound = errors.New("element not found")

// Cookie is a browser cookie in driver-neutral form.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Element is a handle to one rendered DOM node.
type Element interface {
	// Text returns the node's flattened visible text.
	Text(ctx context.Context) (string, error)

	// Attribute returns the named attribute, "" when absent.
	Attribute(ctx context.Context, name string) (string, error)

	// Fill clears the node and types the given text into it.
	Fill(ctx context.Context, text string) error

	// Click simulates a user click on the node.
	Click(ctx context.Context) error

	// Find returns the first descendant matching the selector, or
	// ErrElementNotFound.
	Find(ctx context.Context, selector string) (Element, error)

	// FindAll returns all descendants matching the selector, in DOM order.
	FindAll(ctx context.Context, selector string) ([]Element, error)
}

// Driver is the opaque automation capability consumed by the auth state
// machine, the extractor and the orchestrator.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// PageText returns the flattened visible text of the whole page.
	PageText(ctx context.Context) (string, error)

	// PageHTML returns the serialized current DOM, suitable for offline
	// parsing.
	PageHTML(ctx context.Context) (string, error)

	Find(ctx context.Context, selector string) (Element, error)
	FindAll(ctx context.Context, selector string) ([]Element, error)

	// ExecuteScript evaluates a script in the page and, when out is non-nil,
	// unmarshals the result into it.
	ExecuteScript(ctx context.Context, script string, out any) error

	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error

	Close() error
}
