// Package session defines the browser session handle that every page object
// operation receives explicitly. Implementations live in pwsession
// (Playwright) and rodsession (Chrome DevTools via go-rod); sessiontest
// provides a scripted fake for unit tests.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kuitang/parabank-e2e/internal/errs"
	"github.com/kuitang/parabank-e2e/internal/locator"
)

// DefaultTimeout bounds every implicit wait performed by a session.
const DefaultTimeout = 5 * time.Second

// Session is one isolated browser context with a single page.
// Implementations are not safe for concurrent use; a journey owns its session.
type Session interface {
	// Goto navigates and waits for DOMContentLoaded.
	Goto(ctx context.Context, url string) error
	// Fill waits for the element and replaces its value with text.
	Fill(ctx context.Context, sel locator.Selector, text string) error
	// Click waits for the element and clicks it.
	Click(ctx context.Context, sel locator.Selector) error
	// IsVisible reports whether the element is currently rendered, without waiting.
	IsVisible(ctx context.Context, sel locator.Selector) (bool, error)
	URL(ctx context.Context) (string, error)
	BodyText(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Driver opens isolated sessions against one browser process.
type Driver interface {
	Name() string
	Open(ctx context.Context) (Session, error)
	Close() error
}

// Options configures a driver.
type Options struct {
	Browser    string // chromium, firefox or webkit (Playwright only)
	Headless   bool
	SlowMo     time.Duration
	Timeout    time.Duration
	ControlURL string // go-rod: attach to an existing Chrome instead of launching
}

// Normalize fills defaults.
func (o Options) Normalize() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	o.Browser = strings.ToLower(strings.TrimSpace(o.Browser))
	if o.Browser == "" {
		o.Browser = "chromium"
	}
	return o
}

// NavigationError wraps a failed Goto with the target URL.
func NavigationError(url string, cause error) error {
	return errs.Wrap(errs.Navigation, fmt.Sprintf("navigate to %s", url), cause)
}

// NavigationStatusError reports a navigation that completed with an error status.
func NavigationStatusError(url string, status int) error {
	return errs.New(errs.Navigation, fmt.Sprintf("navigate to %s: status %d", url, status))
}
