// Package sessiontest provides a scripted in-memory session.Session.
package sessiontest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kuitang/parabank-e2e/internal/locator"
	"github.com/kuitang/parabank-e2e/internal/session"
)

// Action is one recorded call on a Fake.
type Action struct {
	Kind   string // goto, fill, click
	Target string // URL or selector string
	Text   string
}

func (a Action) String() string {
	if a.Text != "" {
		return fmt.Sprintf("%s %s %q", a.Kind, a.Target, a.Text)
	}
	return a.Kind + " " + a.Target
}

// Fake records actions and answers visibility from a mutable set.
// Hooks let a test simulate page transitions.
type Fake struct {
	mu      sync.Mutex
	url     string
	body    string
	visible map[string]bool
	fails   map[string]error
	actions []Action
	closed  bool

	OnGoto  func(f *Fake, url string) error
	OnClick func(f *Fake, sel locator.Selector) error
}

var _ session.Session = (*Fake)(nil)

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		visible: make(map[string]bool),
		fails:   make(map[string]error),
	}
}

// SetURL sets the current URL.
func (f *Fake) SetURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
}

// SetBody sets the body text.
func (f *Fake) SetBody(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = body
}

// Show marks a selector visible.
func (f *Fake) Show(sels ...locator.Selector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sel := range sels {
		f.visible[sel.String()] = true
	}
}

// ShowText marks text visible and appends it to the body.
func (f *Fake) ShowText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible[locator.Text(text).String()] = true
	if f.body != "" {
		f.body += "\n"
	}
	f.body += text
}

// Hide clears every visible selector and the body.
func (f *Fake) Hide() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = make(map[string]bool)
	f.body = ""
}

// FailOn makes the action kind ("goto", "fill", "click", "visible") on target fail.
// For goto the target is the URL; otherwise the selector string.
func (f *Fake) FailOn(kind, target string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails[kind+" "+target] = err
}

// Actions returns a copy of the recorded actions.
func (f *Fake) Actions() []Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Action, len(f.actions))
	copy(out, f.actions)
	return out
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) record(a Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
	return f.fails[a.Kind+" "+a.Target]
}

func (f *Fake) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return session.NavigationError(url, err)
	}
	if err := f.record(Action{Kind: "goto", Target: url}); err != nil {
		return session.NavigationError(url, err)
	}
	f.SetURL(url)
	if f.OnGoto != nil {
		return f.OnGoto(f, url)
	}
	return nil
}

func (f *Fake) Fill(ctx context.Context, sel locator.Selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.record(Action{Kind: "fill", Target: sel.String(), Text: text})
}

func (f *Fake) Click(ctx context.Context, sel locator.Selector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.record(Action{Kind: "click", Target: sel.String()}); err != nil {
		return err
	}
	if f.OnClick != nil {
		return f.OnClick(f, sel)
	}
	return nil
}

func (f *Fake) IsVisible(ctx context.Context, sel locator.Selector) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fails["visible "+sel.String()]; err != nil {
		return false, err
	}
	if f.visible[sel.String()] {
		return true, nil
	}
	if sel.Strategy == locator.StrategyText {
		return strings.Contains(f.body, sel.Value), nil
	}
	return false, nil
}

func (f *Fake) URL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *Fake) BodyText(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body, nil
}

func (f *Fake) Screenshot(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []byte("PNG:" + f.url), nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Driver hands out Fakes built by NewSession.
type Driver struct {
	mu       sync.Mutex
	sessions []*Fake
	closed   bool

	NewSession func() *Fake
	OpenErr    error
}

var _ session.Driver = (*Driver)(nil)

func (d *Driver) Name() string { return "fake" }

func (d *Driver) Open(ctx context.Context) (session.Session, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	f := New()
	if d.NewSession != nil {
		f = d.NewSession()
	}
	d.mu.Lock()
	d.sessions = append(d.sessions, f)
	d.mu.Unlock()
	return f, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Sessions returns every Fake opened so far.
func (d *Driver) Sessions() []*Fake {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Fake, len(d.sessions))
	copy(out, d.sessions)
	return out
}
