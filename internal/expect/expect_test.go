package expect

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/parabank-e2e/internal/errs"
	"github.com/kuitang/parabank-e2e/internal/locator"
	"github.com/kuitang/parabank-e2e/internal/session/sessiontest"
)

func fastChecker() *Checker {
	return New(Options{Timeout: 80 * time.Millisecond, Interval: 5 * time.Millisecond})
}

// delayedSession becomes visible after a fixed number of probes.
type delayedSession struct {
	*sessiontest.Fake
	probes    atomic.Int32
	showAfter int32
	sel       locator.Selector
}

func (d *delayedSession) IsVisible(ctx context.Context, sel locator.Selector) (bool, error) {
	if d.probes.Add(1) >= d.showAfter {
		d.Show(d.sel)
	}
	return d.Fake.IsVisible(ctx, sel)
}

func TestVisible_EventuallyHolds(t *testing.T) {
	t.Parallel()
	sel := locator.CSS("#accountTable")
	s := &delayedSession{Fake: sessiontest.New(), showAfter: 3, sel: sel}

	require.NoError(t, fastChecker().Visible(t.Context(), s, sel))
	assert.GreaterOrEqual(t, s.probes.Load(), int32(3))
}

func TestVisible_TimesOutWithAssertionError(t *testing.T) {
	t.Parallel()
	s := sessiontest.New()

	start := time.Now()
	err := fastChecker().Visible(t.Context(), s, locator.CSS("#accountTable"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, errs.Assertion, errs.CodeOf(err))
	assert.NotErrorIs(t, err, context.Canceled)

	var failure *Error
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "css=#accountTable", failure.Expected)
	assert.Equal(t, "not visible", failure.Observed)
}

func TestTextVisible_ReportsObservedBody(t *testing.T) {
	t.Parallel()
	s := sessiontest.New()
	s.SetBody("Passwords did not match.")

	err := fastChecker().TextVisible(t.Context(), s, "Your account was created successfully. You are now logged in.")
	require.Error(t, err)

	var failure *Error
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "Passwords did not match.", failure.Observed)
	assert.Equal(t, "Your account was created successfully. You are now logged in.", failure.Expected)
}

func TestTextVisible_Holds(t *testing.T) {
	t.Parallel()
	s := sessiontest.New()
	s.ShowText("Database Initialized")
	require.NoError(t, fastChecker().TextVisible(t.Context(), s, "Database Initialized"))
}

func TestTextAbsent(t *testing.T) {
	t.Parallel()
	s := sessiontest.New()
	require.NoError(t, fastChecker().TextAbsent(t.Context(), s, "Error!"))

	s.ShowText("Error!")
	err := fastChecker().TextAbsent(t.Context(), s, "Error!")
	assert.Equal(t, errs.Assertion, errs.CodeOf(err))
}

func TestURLContains(t *testing.T) {
	t.Parallel()
	s := sessiontest.New()
	s.SetURL("http://127.0.0.1:1234/parabank/overview.htm")

	require.NoError(t, fastChecker().URLContains(t.Context(), s, "/parabank/overview.htm"))

	err := fastChecker().URLContains(t.Context(), s, "register.htm")
	var failure *Error
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "http://127.0.0.1:1234/parabank/overview.htm", failure.Observed)
}

func TestVisible_KeepsLastProbeError(t *testing.T) {
	t.Parallel()
	s := sessiontest.New()
	probeErr := errors.New("target closed")
	s.FailOn("visible", "css=#x", probeErr)

	err := fastChecker().Visible(t.Context(), s, locator.CSS("#x"))
	assert.ErrorIs(t, err, probeErr)
}

func TestVisible_RespectsCallerCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := New(Options{Timeout: time.Hour}).Visible(ctx, sessiontest.New(), locator.CSS("#x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errs.Is(err, errs.Assertion))
	var failure *Error
	assert.False(t, errors.As(err, &failure))
}

// cancellingSession cancels the caller's context on its second probe.
type cancellingSession struct {
	*sessiontest.Fake
	probes atomic.Int32
	cancel context.CancelFunc
}

func (c *cancellingSession) IsVisible(ctx context.Context, sel locator.Selector) (bool, error) {
	if c.probes.Add(1) == 2 {
		c.cancel()
	}
	return c.Fake.IsVisible(ctx, sel)
}

func TestVisible_CancelledMidPoll(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	s := &cancellingSession{Fake: sessiontest.New(), cancel: cancel}

	err := New(Options{Timeout: time.Hour, Interval: time.Millisecond}).Visible(ctx, s, locator.CSS("#x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, errs.Internal, errs.CodeOf(err))
	assert.GreaterOrEqual(t, s.probes.Load(), int32(2))
}
