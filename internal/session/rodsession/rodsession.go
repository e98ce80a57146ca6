// Package rodsession implements session.Driver on Chrome DevTools via go-rod.
package rodsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/kuitang/parabank-e2e/internal/errs"
	"github.com/kuitang/parabank-e2e/internal/locator"
	"github.com/kuitang/parabank-e2e/internal/obs"
	"github.com/kuitang/parabank-e2e/internal/session"
)

// DriverName is the value of E2E_DRIVER selecting this driver.
const DriverName = "rod"

// Driver owns one Chrome connection.
type Driver struct {
	opts session.Options

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

var _ session.Driver = (*Driver)(nil)

// Launch connects to opts.ControlURL, or launches a local Chrome when it is empty.
func Launch(ctx context.Context, opts session.Options) (*Driver, error) {
	opts = opts.Normalize()
	if opts.Browser != "chromium" {
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("rod driver only supports chromium, got %q", opts.Browser))
	}

	d := &Driver{opts: opts}
	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless)
		url, err := l.Launch()
		if err != nil {
			return nil, errs.Wrap(errs.Unavailable, "launch chrome", err)
		}
		d.launcher = l
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL)
	if opts.SlowMo > 0 {
		browser = browser.SlowMotion(opts.SlowMo)
	}
	if err := browser.Connect(); err != nil {
		d.killLauncher()
		return nil, errs.Wrap(errs.Unavailable, "connect to chrome", err)
	}
	d.browser = browser

	obs.From(ctx).With("pkg", "rodsession").Info("browser_connected", "control_url", controlURL, "launched", d.launcher != nil)
	return d, nil
}

func (d *Driver) Name() string { return DriverName }

// Open creates an incognito context with a blank page.
func (d *Driver) Open(ctx context.Context) (session.Session, error) {
	d.mu.Lock()
	browser := d.browser
	d.mu.Unlock()
	if browser == nil {
		return nil, errs.New(errs.FailedPrecondition, "rod driver is closed")
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "incognito context", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		_ = incognito.Close()
		return nil, errs.Wrap(errs.Unavailable, "create page", err)
	}
	return &Session{incognito: incognito, page: page, timeout: d.opts.Timeout}, nil
}

// Close disconnects and, when this driver launched Chrome, kills it.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if d.browser != nil {
		err = d.browser.Close()
		d.browser = nil
	}
	d.killLauncher()
	return err
}

func (d *Driver) killLauncher() {
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
		d.launcher = nil
	}
}

// Session is one incognito browser context and page.
type Session struct {
	incognito *rod.Browser
	page      *rod.Page
	timeout   time.Duration
}

var _ session.Session = (*Session)(nil)

// Page exposes the underlying page for tests that need raw rod access.
func (s *Session) Page() *rod.Page {
	return s.page
}

func (s *Session) bounded(ctx context.Context) (*rod.Page, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.page.Context(tctx), cancel
}

// textXPath matches the deepest body element whose normalized text contains value.
func textXPath(value string) string {
	lit := xpathLiteral(value)
	return fmt.Sprintf("//body//*[contains(normalize-space(.), %s) and not(*[contains(normalize-space(.), %s)])]", lit, lit)
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

func (s *Session) element(page *rod.Page, sel locator.Selector) (*rod.Element, error) {
	switch sel.Strategy {
	case locator.StrategyCSS:
		return page.Element(sel.Value)
	case locator.StrategyText:
		return page.ElementX(textXPath(sel.Value))
	default:
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unsupported selector strategy %q", sel.Strategy))
	}
}

func (s *Session) Goto(ctx context.Context, url string) error {
	page, cancel := s.bounded(ctx)
	defer cancel()

	status := 0
	waitResponse := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		code, ok := documentStatus(e)
		if ok {
			status = code
		}
		return ok
	})
	if err := page.Navigate(url); err != nil {
		return session.NavigationError(url, err)
	}
	waitResponse()
	if err := page.WaitLoad(); err != nil {
		return session.NavigationError(url, err)
	}
	if status >= 400 {
		return session.NavigationStatusError(url, status)
	}
	return nil
}

// documentStatus returns the HTTP status of a top-level document response.
// Redirects never surface here, so the first document response is the final one.
func documentStatus(e *proto.NetworkResponseReceived) (int, bool) {
	if e == nil || e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
		return 0, false
	}
	return e.Response.Status, true
}

func (s *Session) Fill(ctx context.Context, sel locator.Selector, text string) error {
	page, cancel := s.bounded(ctx)
	defer cancel()

	el, err := s.element(page, sel)
	if err != nil {
		return fmt.Errorf("fill %s: %w", sel, err)
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("fill %s: select text: %w", sel, err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("fill %s: %w", sel, err)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, sel locator.Selector) error {
	page, cancel := s.bounded(ctx)
	defer cancel()

	el, err := s.element(page, sel)
	if err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

func (s *Session) IsVisible(ctx context.Context, sel locator.Selector) (bool, error) {
	page, cancel := s.bounded(ctx)
	defer cancel()

	var (
		has bool
		el  *rod.Element
		err error
	)
	switch sel.Strategy {
	case locator.StrategyCSS:
		has, el, err = page.Has(sel.Value)
	case locator.StrategyText:
		has, el, err = page.HasX(textXPath(sel.Value))
	default:
		return false, errs.New(errs.InvalidArgument, fmt.Sprintf("unsupported selector strategy %q", sel.Strategy))
	}
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", sel, err)
	}
	if !has {
		return false, nil
	}
	visible, err := el.Visible()
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", sel, err)
	}
	return visible, nil
}

func (s *Session) URL(ctx context.Context) (string, error) {
	page, cancel := s.bounded(ctx)
	defer cancel()

	info, err := page.Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

func (s *Session) BodyText(ctx context.Context) (string, error) {
	page, cancel := s.bounded(ctx)
	defer cancel()

	body, err := page.Element("body")
	if err != nil {
		return "", fmt.Errorf("read body text: %w", err)
	}
	text, err := body.Text()
	if err != nil {
		return "", fmt.Errorf("read body text: %w", err)
	}
	return text, nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	page, cancel := s.bounded(ctx)
	defer cancel()

	png, err := page.Screenshot(true, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return png, nil
}

func (s *Session) Close() error {
	return errors.Join(s.page.Close(), s.incognito.Close())
}
