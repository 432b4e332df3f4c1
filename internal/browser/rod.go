package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/dealstalk/internal/config"
	"github.com/IshaanNene/dealstalk/internal/types"
)

// navigationStatusJS reads the HTTP status of the main document from the
// Navigation Timing API. 0 means the browser did not report one.
const navigationStatusJS = `() => {
	const e = performance.getEntriesByType('navigation')[0];
	return e && e.responseStatus ? e.responseStatus : 0;
}`

// RodBrowser drives a Chromium instance through rod.
type RodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      config.BrowserConfig
	navTO    time.Duration
	logger   *slog.Logger
}

// NewRodBrowser launches Chromium and connects to it.
func NewRodBrowser(cfg *config.Config, logger *slog.Logger) (*RodBrowser, error) {
	l := launcher.New().
		Headless(cfg.Browser.Headless).
		NoSandbox(cfg.Browser.NoSandbox).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")

	if cfg.Browser.Bin != "" {
		l = l.Bin(cfg.Browser.Bin)
	}
	if cfg.Browser.Proxy != "" {
		l = l.Proxy(cfg.Browser.Proxy)
	}
	if cfg.Browser.WindowSize != "" {
		l = l.Set("window-size", cfg.Browser.WindowSize)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	rb := &RodBrowser{
		browser:  b,
		launcher: l,
		cfg:      cfg.Browser,
		navTO:    cfg.Timeouts.Navigation,
		logger:   logger.With("component", "rod_browser"),
	}
	rb.logger.Info("browser ready",
		"headless", cfg.Browser.Headless,
		"stealth", cfg.Browser.Stealth,
	)
	return rb, nil
}

// NewPage opens a tab, with stealth patches applied when configured.
func (b *RodBrowser) NewPage(ctx context.Context) (Page, error) {
	var (
		pg  *rod.Page
		err error
	)
	if b.cfg.Stealth {
		pg, err = stealth.Page(b.browser)
	} else {
		pg, err = b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	if b.cfg.UserAgent != "" {
		if err := pg.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}); err != nil {
			b.logger.Warn("failed to set user agent", "error", err)
		}
	}

	return &rodPage{page: pg, navTO: b.navTO, logger: b.logger}, nil
}

// Close shuts down the browser and the Chromium process.
func (b *RodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

type rodPage struct {
	page   *rod.Page
	navTO  time.Duration
	logger *slog.Logger
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx).Timeout(p.navTO)
	defer pg.CancelTimeout()

	if err := pg.Navigate(url); err != nil {
		return &types.FetchError{URL: url, Err: err}
	}
	if err := pg.WaitLoad(); err != nil {
		p.logger.Debug("load event not observed", "url", url, "error", err)
	}

	status, err := p.status(pg)
	if err != nil {
		p.logger.Debug("navigation status unavailable", "url", url, "error", err)
		return nil
	}
	return StatusError(url, status)
}

func (p *rodPage) Status(ctx context.Context) (int, error) {
	return p.status(p.page.Context(ctx))
}

func (p *rodPage) status(pg *rod.Page) (int, error) {
	res, err := pg.Eval(navigationStatusJS)
	if err != nil {
		return 0, fmt.Errorf("read navigation status: %w", err)
	}
	return res.Value.Int(), nil
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

func (p *rodPage) ReadyState(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.readyState`)
	if err != nil {
		return "", fmt.Errorf("read ready state: %w", err)
	}
	return res.Value.Str(), nil
}

func (p *rodPage) Find(ctx context.Context, sel Selector, timeout time.Duration) (Element, error) {
	pg := p.page.Context(ctx).Timeout(timeout)
	defer pg.CancelTimeout()

	var (
		el  *rod.Element
		err error
	)
	if sel.Kind == XPath {
		el, err = pg.ElementX(sel.Expr)
	} else {
		el, err = pg.Element(sel.Expr)
	}
	if err != nil {
		return nil, lookupError(ctx, sel, err)
	}
	return &rodElement{el: el.Context(ctx)}, nil
}

func (p *rodPage) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	pg := p.page.Context(ctx)
	var (
		els rod.Elements
		err error
	)
	if sel.Kind == XPath {
		els, err = pg.ElementsX(sel.Expr)
	} else {
		els, err = pg.Elements(sel.Expr)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", sel, err)
	}
	return wrapRodElements(els), nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Find(ctx context.Context, sel Selector, timeout time.Duration) (Element, error) {
	el := e.el.Context(ctx).Timeout(timeout)
	defer el.CancelTimeout()

	var (
		found *rod.Element
		err   error
	)
	if sel.Kind == XPath {
		found, err = el.ElementX(sel.Expr)
	} else {
		found, err = el.Element(sel.Expr)
	}
	if err != nil {
		return nil, lookupError(ctx, sel, err)
	}
	return &rodElement{el: found.Context(ctx)}, nil
}

func (e *rodElement) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	el := e.el.Context(ctx)
	var (
		els rod.Elements
		err error
	)
	if sel.Kind == XPath {
		els, err = el.ElementsX(sel.Expr)
	} else {
		els, err = el.Elements(sel.Expr)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", sel, err)
	}
	return wrapRodElements(els), nil
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Attr(ctx context.Context, name string) (*string, error) {
	return e.el.Context(ctx).Attribute(name)
}

func (e *rodElement) Click(ctx context.Context) error {
	if err := e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return activationError("click", err)
	}
	return nil
}

func (e *rodElement) Input(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return activationError("select text", err)
	}
	if err := el.Input(text); err != nil {
		return activationError("input", err)
	}
	return nil
}

// activationError reports an element that never became actionable before
// the caller's deadline.
func activationError(action string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: element not actionable before deadline: %w", action, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}

func wrapRodElements(els rod.Elements) []Element {
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out
}

// lookupError maps rod's timeout on a missing element to ErrElementNotFound.
// Cancellation of the caller's context is passed through.
func lookupError(ctx context.Context, sel Selector, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var nf *rod.ElementNotFoundError
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &nf) {
		return notFound(sel)
	}
	return fmt.Errorf("query %s: %w", sel, err)
}
