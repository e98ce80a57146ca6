// Package pwsession implements session.Driver on Playwright.
package pwsession

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/parabank-e2e/internal/errs"
	"github.com/kuitang/parabank-e2e/internal/locator"
	"github.com/kuitang/parabank-e2e/internal/obs"
	"github.com/kuitang/parabank-e2e/internal/session"
)

// DriverName is the value of E2E_DRIVER selecting this driver.
const DriverName = "playwright"

// Driver owns one Playwright process and one launched browser.
type Driver struct {
	opts session.Options

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

var _ session.Driver = (*Driver)(nil)

// Launch starts Playwright and the configured browser.
func Launch(opts session.Options) (*Driver, error) {
	opts = opts.Normalize()

	pw, err := playwright.Run()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "start playwright", err)
	}

	var browserType playwright.BrowserType
	switch opts.Browser {
	case "chromium":
		browserType = pw.Chromium
	case "firefox":
		browserType = pw.Firefox
	case "webkit":
		browserType = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown browser %q", opts.Browser))
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.SlowMo > 0 {
		launchOpts.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
	}
	browser, err := browserType.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, errs.Wrap(errs.Unavailable, "launch "+opts.Browser, err)
	}

	obs.Pkg("pwsession").Info("browser_launched", "browser", opts.Browser, "headless", opts.Headless)
	return &Driver{opts: opts, pw: pw, browser: browser}, nil
}

func (d *Driver) Name() string { return DriverName }

// Open creates a fresh browser context so cookies never leak between journeys.
func (d *Driver) Open(ctx context.Context) (session.Session, error) {
	d.mu.Lock()
	browser := d.browser
	d.mu.Unlock()
	if browser == nil {
		return nil, errs.New(errs.FailedPrecondition, "playwright driver is closed")
	}

	bctx, err := browser.NewContext()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "create browser context", err)
	}
	timeoutMS := float64(d.opts.Timeout.Milliseconds())
	bctx.SetDefaultTimeout(timeoutMS)
	bctx.SetDefaultNavigationTimeout(timeoutMS)

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, errs.Wrap(errs.Unavailable, "create page", err)
	}
	return &Session{bctx: bctx, page: page, timeoutMS: timeoutMS}, nil
}

// Close shuts the browser and the Playwright process down.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errList []error
	if d.browser != nil {
		errList = append(errList, d.browser.Close())
		d.browser = nil
	}
	if d.pw != nil {
		errList = append(errList, d.pw.Stop())
		d.pw = nil
	}
	return errors.Join(errList...)
}

// Session is one Playwright browser context and page.
type Session struct {
	bctx      playwright.BrowserContext
	page      playwright.Page
	timeoutMS float64
}

var _ session.Session = (*Session)(nil)

// Page exposes the underlying page for tests that need raw Playwright access.
func (s *Session) Page() playwright.Page {
	return s.page
}

// textPattern matches value literally and case-sensitively. A plain string
// argument to GetByText would ignore case.
func textPattern(value string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(value))
}

func (s *Session) locate(sel locator.Selector) (playwright.Locator, error) {
	switch sel.Strategy {
	case locator.StrategyCSS:
		return s.page.Locator(sel.Value).First(), nil
	case locator.StrategyText:
		return s.page.GetByText(textPattern(sel.Value)).First(), nil
	default:
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unsupported selector strategy %q", sel.Strategy))
	}
}

func (s *Session) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return session.NavigationError(url, err)
	}
	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(s.timeoutMS),
	})
	if err != nil {
		return session.NavigationError(url, err)
	}
	if resp != nil && resp.Status() >= 400 {
		return session.NavigationStatusError(url, resp.Status())
	}
	return nil
}

func (s *Session) Fill(ctx context.Context, sel locator.Selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc, err := s.locate(sel)
	if err != nil {
		return err
	}
	if err := loc.Fill(text, playwright.LocatorFillOptions{Timeout: playwright.Float(s.timeoutMS)}); err != nil {
		return fmt.Errorf("fill %s: %w", sel, err)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, sel locator.Selector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc, err := s.locate(sel)
	if err != nil {
		return err
	}
	if err := loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(s.timeoutMS)}); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

func (s *Session) IsVisible(ctx context.Context, sel locator.Selector) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	loc, err := s.locate(sel)
	if err != nil {
		return false, err
	}
	visible, err := loc.IsVisible()
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", sel, err)
	}
	return visible, nil
}

func (s *Session) URL(ctx context.Context) (string, error) {
	return s.page.URL(), nil
}

func (s *Session) BodyText(ctx context.Context) (string, error) {
	text, err := s.page.Locator("body").InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(s.timeoutMS),
	})
	if err != nil {
		return "", fmt.Errorf("read body text: %w", err)
	}
	return text, nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return png, nil
}

func (s *Session) Close() error {
	return s.bctx.Close()
}
