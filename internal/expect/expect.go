// Package expect turns expected page state into pass/fail errors.
//
// Every check polls the session until the condition holds or the polling
// window closes. There is no retry beyond the window and no silent pass:
// a check that never held returns an *Error wrapped as errs.Assertion.
// Cancellation of the caller's context is returned as the context error.
package expect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kuitang/parabank-e2e/internal/errs"
	"github.com/kuitang/parabank-e2e/internal/locator"
	"github.com/kuitang/parabank-e2e/internal/logutil"
	"github.com/kuitang/parabank-e2e/internal/session"
)

const (
	DefaultTimeout  = session.DefaultTimeout
	DefaultInterval = 100 * time.Millisecond

	observedMaxChars = 300
)

// Options bounds the polling window.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
}

func (o Options) normalize() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	return o
}

// Error carries the expected and last observed values of a failed check.
type Error struct {
	Check    string
	Expected string
	Observed string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: expected %q, observed %q", e.Check, e.Expected, e.Observed)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Checker runs checks with one polling configuration.
type Checker struct {
	opts Options
}

// New returns a Checker.
func New(opts Options) *Checker {
	return &Checker{opts: opts.normalize()}
}

// probe returns whether the condition holds and what was observed.
type probe func(ctx context.Context) (ok bool, observed string, err error)

func (c *Checker) poll(parent context.Context, check, expected string, p probe) error {
	ctx, cancel := context.WithTimeout(parent, c.opts.Timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(c.opts.Interval), 1)
	var (
		observed string
		lastErr  error
	)
	for {
		ok, obsv, err := p(ctx)
		if err == nil && ok {
			return nil
		}
		if obsv != "" {
			observed = obsv
		}
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			lastErr = err
		}
		if waitErr := limiter.Wait(ctx); waitErr != nil {
			// The caller giving up is not a failed check.
			if perr := parent.Err(); perr != nil {
				return fmt.Errorf("%s %s: %w", check, expected, perr)
			}
			failure := &Error{
				Check:    check,
				Expected: expected,
				Observed: observed,
				Err:      lastErr,
			}
			return errs.Wrap(errs.Assertion, check, failure)
		}
	}
}

func (c *Checker) bodyPreview(ctx context.Context, s session.Session) string {
	body, err := s.BodyText(ctx)
	if err != nil {
		return ""
	}
	return logutil.TruncateForLog(body, observedMaxChars)
}

// Visible waits for sel to be visible.
func (c *Checker) Visible(ctx context.Context, s session.Session, sel locator.Selector) error {
	return c.poll(ctx, "expect visible", sel.String(), func(ctx context.Context) (bool, string, error) {
		ok, err := s.IsVisible(ctx, sel)
		if err != nil || ok {
			return ok, "", err
		}
		return false, "not visible", nil
	})
}

// TextVisible waits for text to be visible anywhere on the page.
func (c *Checker) TextVisible(ctx context.Context, s session.Session, text string) error {
	sel := locator.Text(text)
	return c.poll(ctx, "expect text visible", text, func(ctx context.Context) (bool, string, error) {
		ok, err := s.IsVisible(ctx, sel)
		if err != nil || ok {
			return ok, "", err
		}
		return false, c.bodyPreview(ctx, s), nil
	})
}

// TextAbsent waits for text to be gone from the page.
func (c *Checker) TextAbsent(ctx context.Context, s session.Session, text string) error {
	sel := locator.Text(text)
	return c.poll(ctx, "expect text absent", text, func(ctx context.Context) (bool, string, error) {
		ok, err := s.IsVisible(ctx, sel)
		if err != nil {
			return false, "", err
		}
		if !ok {
			return true, "", nil
		}
		return false, "text present", nil
	})
}

// URLContains waits for the current URL to contain fragment.
func (c *Checker) URLContains(ctx context.Context, s session.Session, fragment string) error {
	return c.poll(ctx, "expect url contains", fragment, func(ctx context.Context) (bool, string, error) {
		url, err := s.URL(ctx)
		if err != nil {
			return false, "", err
		}
		return strings.Contains(url, fragment), url, nil
	})
}

var defaultChecker = New(Options{})

// Visible waits for sel with the default polling window.
func Visible(ctx context.Context, s session.Session, sel locator.Selector) error {
	return defaultChecker.Visible(ctx, s, sel)
}

// TextVisible waits for text with the default polling window.
func TextVisible(ctx context.Context, s session.Session, text string) error {
	return defaultChecker.TextVisible(ctx, s, text)
}

// URLContains waits for fragment with the default polling window.
func URLContains(ctx context.Context, s session.Session, fragment string) error {
	return defaultChecker.URLContains(ctx, s, fragment)
}
