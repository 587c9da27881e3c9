// internal/driver/chrome.go
package driver

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// ChromeOptions configures one browser-backed driver instance.
type ChromeOptions struct {
	Headless  bool
	UserAgent string
	Proxy     string

	// ProfileDir is the persistent user-data-dir holding the identity's
	// durable browser state. Empty means a throwaway profile.
	ProfileDir string

	// ExecPath overrides browser auto-discovery.
	ExecPath string

	// OpTimeout bounds every page-load and DOM interaction. Zero means 30s.
	OpTimeout time.Duration
}

// Chrome drives a single headless Chrome instance via chromedp.
//
// A Chrome instance is not safe for concurrent use; the session registry
// guarantees at most one crawl drives it at a time.
type Chrome struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	opTimeout   time.Duration
}

// NewChrome starts a browser and warms it up with a blank page.
func NewChrome(opts ChromeOptions) (*Chrome, error) {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 30 * time.Second
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("window-size", "1920,1080"),
	}

	chromePath := opts.ExecPath
	if chromePath == "" {
		chromePath = FindChrome()
	}
	if chromePath != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(chromePath)}, allocOpts...)
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	if opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx, network.Enable(), chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Debug().
		Bool("headless", opts.Headless).
		Str("profile_dir", opts.ProfileDir).
		Msg("Browser driver started")

	return &Chrome{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      browserCancel,
		opTimeout:   opts.OpTimeout,
	}, nil
}

// run executes chromedp actions with the per-operation timeout, honoring the
// caller's context.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(c.ctx, c.opTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(opCtx, actions...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Navigate loads the URL and waits for the document body to be ready or the
// operation timeout to elapse, whichever comes first.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	err := c.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Let initial scripts settle before the caller starts querying.
		chromedp.Sleep(300*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := c.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (c *Chrome) Title(ctx context.Context) (string, error) {
	var title string
	if err := c.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

func (c *Chrome) PageText(ctx context.Context) (string, error) {
	var text string
	err := c.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Chrome) PageHTML(ctx context.Context) (string, error) {
	var html string
	err := c.run(ctx, chromedp.Evaluate(`document.documentElement ? document.documentElement.outerHTML : ""`, &html))
	if err != nil {
		return "", err
	}
	return html, nil
}

func (c *Chrome) Find(ctx context.Context, selector string) (Element, error) {
	expr := "document.querySelector(" + strconv.Quote(selector) + ")"
	var exists bool
	if err := c.run(ctx, chromedp.Evaluate(expr+" !== null", &exists)); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrElementNotFound
	}
	return &chromeElement{drv: c, expr: expr}, nil
}

func (c *Chrome) FindAll(ctx context.Context, selector string) ([]Element, error) {
	base := "document.querySelectorAll(" + strconv.Quote(selector) + ")"
	var count int
	if err := c.run(ctx, chromedp.Evaluate(base+".length", &count)); err != nil {
		return nil, err
	}
	elements := make([]Element, 0, count)
	for i := 0; i < count; i++ {
		elements = append(elements, &chromeElement{
			drv:  c,
			expr: fmt.Sprintf("%s[%d]", base, i),
		})
	}
	return elements, nil
}

func (c *Chrome) ExecuteScript(ctx context.Context, script string, out any) error {
	if out == nil {
		var discard any
		return c.run(ctx, chromedp.Evaluate(script, &discard))
	}
	return c.run(ctx, chromedp.Evaluate(script, out))
}

func (c *Chrome) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}

	cookies := make([]Cookie, len(raw))
	for i, c := range raw {
		cookies[i] = Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		}
	}
	return cookies, nil
}

func (c *Chrome) SetCookies(ctx context.Context, cookies []Cookie) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		params := make([]*network.CookieParam, len(cookies))
		for i, ck := range cookies {
			param := &network.CookieParam{
				Name:     ck.Name,
				Value:    ck.Value,
				Domain:   ck.Domain,
				Path:     ck.Path,
				Secure:   ck.Secure,
				HTTPOnly: ck.HTTPOnly,
			}
			if ck.Expires > 0 {
				expiry := cdp.TimeSinceEpoch(time.Unix(int64(ck.Expires), 0))
				param.Expires = &expiry
			}
			params[i] = param
		}
		return network.SetCookies(params).Do(ctx)
	}))
}

// Close shuts down the browser. Safe to call more than once.
func (c *Chrome) Close() error {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCancel = nil
	}
	log.Debug().Msg("Browser driver closed")
	return nil
}

// chromeElement addresses one DOM node through a JS expression so repeated
// operations survive page mutations better than node-id handles.
type chromeElement struct {
	drv  *Chrome
	expr string
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	js := fmt.Sprintf(`(function(){var el=%s; return el ? (el.innerText||el.textContent||"") : "";})()`, e.expr)
	if err := e.drv.run(ctx, chromedp.Evaluate(js, &text)); err != nil {
		return "", err
	}
	return text, nil
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, error) {
	var value string
	js := fmt.Sprintf(`(function(){var el=%s; return el ? (el.getAttribute(%s)||"") : "";})()`,
		e.expr, strconv.Quote(name))
	if err := e.drv.run(ctx, chromedp.Evaluate(js, &value)); err != nil {
		return "", err
	}
	return value, nil
}

func (e *chromeElement) Fill(ctx context.Context, text string) error {
	js := fmt.Sprintf(`(function(){var el=%s; if(!el) return false;
		el.focus(); el.value=%s;
		el.dispatchEvent(new Event('input',{bubbles:true}));
		el.dispatchEvent(new Event('change',{bubbles:true}));
		return true;})()`, e.expr, strconv.Quote(text))
	var ok bool
	if err := e.drv.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return ErrElementNotFound
	}
	return nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	js := fmt.Sprintf(`(function(){var el=%s; if(!el) return false;
		el.scrollIntoView({block:'center'}); el.click(); return true;})()`, e.expr)
	var ok bool
	if err := e.drv.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return ErrElementNotFound
	}
	return nil
}

func (e *chromeElement) Find(ctx context.Context, selector string) (Element, error) {
	child := fmt.Sprintf("%s.querySelector(%s)", e.expr, strconv.Quote(selector))
	var exists bool
	if err := e.drv.run(ctx, chromedp.Evaluate(child+" !== null", &exists)); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrElementNotFound
	}
	return &chromeElement{drv: e.drv, expr: child}, nil
}

func (e *chromeElement) FindAll(ctx context.Context, selector string) ([]Element, error) {
	base := fmt.Sprintf("%s.querySelectorAll(%s)", e.expr, strconv.Quote(selector))
	var count int
	if err := e.drv.run(ctx, chromedp.Evaluate(base+".length", &count)); err != nil {
		return nil, err
	}
	elements := make([]Element, 0, count)
	for i := 0; i < count; i++ {
		elements = append(elements, &chromeElement{
			drv:  e.drv,
			expr: fmt.Sprintf("%s[%d]", base, i),
		})
	}
	return elements, nil
}
