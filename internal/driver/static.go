// internal/driver/static.go
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

// Static is an offline Driver over registered HTML documents. It backs tests
// and `--offline` dry runs: navigation resolves against a page map instead of
// the network, and scripts run in a small goja sandbox rather than a browser.
type Static struct {
	pages   map[string]string
	current string
	doc     *goquery.Document
	cookies []Cookie

	// onSubmit decides where a form submission lands, given the values
	// filled so far. Nil means submit buttons are inert.
	onSubmit func(fields map[string]string) string
	fields   map[string]string

	fillCount  int
	clickCount int
	closed     bool
}

// NewStatic creates an empty offline driver.
func NewStatic() *Static {
	return &Static{
		pages:  make(map[string]string),
		fields: make(map[string]string),
	}
}

// RegisterPage associates a URL with an HTML document.
func (s *Static) RegisterPage(pageURL, html string) {
	s.pages[pageURL] = html
}

// OnSubmit installs the form-submission hook.
func (s *Static) OnSubmit(fn func(fields map[string]string) string) {
	s.onSubmit = fn
}

// FillCount reports how many Fill interactions have happened. Tests use it
// to assert that the credential form was never touched on a restore path.
func (s *Static) FillCount() int { return s.fillCount }

// Fields returns the values filled so far, keyed by input name (or id).
func (s *Static) Fields() map[string]string { return s.fields }

func (s *Static) Navigate(_ context.Context, pageURL string) error {
	if s.closed {
		return fmt.Errorf("driver closed")
	}
	html, ok := s.pages[pageURL]
	if !ok {
		return fmt.Errorf("navigate %s: no such page", pageURL)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	s.current = pageURL
	s.doc = doc
	return nil
}

func (s *Static) CurrentURL(context.Context) (string, error) {
	return s.current, nil
}

func (s *Static) Title(context.Context) (string, error) {
	if s.doc == nil {
		return "", nil
	}
	return strings.TrimSpace(s.doc.Find("title").First().Text()), nil
}

func (s *Static) PageText(context.Context) (string, error) {
	if s.doc == nil {
		return "", nil
	}
	body := s.doc.Find("body")
	if body.Length() == 0 {
		return s.doc.Text(), nil
	}
	return body.Text(), nil
}

func (s *Static) PageHTML(context.Context) (string, error) {
	if s.doc == nil {
		return "", nil
	}
	return goquery.OuterHtml(s.doc.Selection)
}

func (s *Static) Find(_ context.Context, selector string) (Element, error) {
	if s.doc == nil {
		return nil, ErrElementNotFound
	}
	sel := s.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, ErrElementNotFound
	}
	return &staticElement{drv: s, sel: sel}, nil
}

func (s *Static) FindAll(_ context.Context, selector string) ([]Element, error) {
	if s.doc == nil {
		return nil, nil
	}
	var elements []Element
	s.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		elements = append(elements, &staticElement{drv: s, sel: sel})
	})
	return elements, nil
}

// ExecuteScript runs the script in a minimal browser-like goja environment,
// the same mock surface the page-side JS sees during hybrid scraping.
func (s *Static) ExecuteScript(_ context.Context, script string, out any) error {
	vm := goja.New()
	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	location := map[string]any{"href": s.current}
	vm.Set("location", location)
	vm.Set("document", map[string]any{"location": location})
	vm.Set("console", map[string]any{
		"log":   func(goja.FunctionCall) goja.Value { return nil },
		"error": func(goja.FunctionCall) goja.Value { return nil },
	})

	value, err := vm.RunString(script)
	if err != nil {
		return fmt.Errorf("script execution failed: %w", err)
	}
	if out == nil || value == nil {
		return nil
	}
	raw, err := json.Marshal(value.Export())
	if err != nil {
		return fmt.Errorf("script result not serializable: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func (s *Static) Cookies(context.Context) ([]Cookie, error) {
	return append([]Cookie(nil), s.cookies...), nil
}

func (s *Static) SetCookies(_ context.Context, cookies []Cookie) error {
	s.cookies = append(s.cookies, cookies...)
	return nil
}

func (s *Static) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Static) Closed() bool { return s.closed }

type staticElement struct {
	drv *Static
	sel *goquery.Selection
}

func (e *staticElement) Text(context.Context) (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *staticElement) Attribute(_ context.Context, name string) (string, error) {
	return e.sel.AttrOr(name, ""), nil
}

func (e *staticElement) Fill(_ context.Context, text string) error {
	e.drv.fillCount++
	key := e.sel.AttrOr("name", e.sel.AttrOr("id", "unnamed"))
	e.drv.fields[key] = text
	return nil
}

// Click follows anchors and fires the submit hook on submit controls.
func (e *staticElement) Click(ctx context.Context) error {
	e.drv.clickCount++

	if href, ok := e.sel.Attr("href"); ok && href != "" {
		target := href
		if base, err := url.Parse(e.drv.current); err == nil {
			if ref, err := url.Parse(href); err == nil {
				target = base.ResolveReference(ref).String()
			}
		}
		if err := e.drv.Navigate(ctx, target); err != nil {
			log.Debug().Str("href", target).Msg("Click target has no registered page")
			return err
		}
		return nil
	}

	nodeType := e.sel.AttrOr("type", "")
	if e.drv.onSubmit != nil && (nodeType == "submit" || goquery.NodeName(e.sel) == "button") {
		if target := e.drv.onSubmit(e.drv.fields); target != "" {
			return e.drv.Navigate(ctx, target)
		}
	}
	return nil
}

func (e *staticElement) Find(_ context.Context, selector string) (Element, error) {
	sel := e.sel.Find(selector).First()
	if sel.Length() == 0 {
		return nil, ErrElementNotFound
	}
	return &staticElement{drv: e.drv, sel: sel}, nil
}

func (e *staticElement) FindAll(_ context.Context, selector string) ([]Element, error) {
	var elements []Element
	e.sel.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		elements = append(elements, &staticElement{drv: e.drv, sel: sel})
	})
	return elements, nil
}
