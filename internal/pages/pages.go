// Package pages holds one page object per ParaBank screen.
//
// Page objects own their locator table and nothing else. The browser session
// is passed into every operation, and no page guards against out-of-order
// calls: sequencing belongs to the journey that composes them.
package pages

import (
	"context"
	"fmt"
	"strings"

	"github.com/kuitang/parabank-e2e/internal/errs"
	"github.com/kuitang/parabank-e2e/internal/expect"
	"github.com/kuitang/parabank-e2e/internal/locator"
	"github.com/kuitang/parabank-e2e/internal/session"
)

// DefaultBaseURL is the public ParaBank demo.
const DefaultBaseURL = "https://parabank.parasoft.com"

// Screen paths relative to the base URL.
const (
	PathIndex    = "/parabank/index.htm"
	PathRegister = "/parabank/register.htm"
	PathAdmin    = "/parabank/admin.htm"
	PathOverview = "/parabank/overview.htm"
	PathLogout   = "/parabank/logout.htm"
)

// Site is the shared configuration of every page object.
type Site struct {
	BaseURL string
	Expect  *expect.Checker
}

// NewSite returns a Site, defaulting the base URL and checker.
func NewSite(baseURL string, check *expect.Checker) Site {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if check == nil {
		check = expect.New(expect.Options{})
	}
	return Site{BaseURL: baseURL, Expect: check}
}

// URL joins path onto the base URL.
func (s Site) URL(path string) string {
	return s.BaseURL + path
}

// page is the part shared by every page object.
type page struct {
	site  Site
	table *locator.Table
}

// open navigates to path and confirms the browser landed there.
func (p page) open(ctx context.Context, s session.Session, path string) error {
	target := p.site.URL(path)
	if err := s.Goto(ctx, target); err != nil {
		return err
	}
	if err := p.site.Expect.URLContains(ctx, s, path); err != nil {
		return errs.Wrap(errs.Navigation, fmt.Sprintf("open %s", p.table.Page()), err)
	}
	return nil
}

func (p page) fill(ctx context.Context, s session.Session, name, text string) error {
	sel, err := p.table.Resolve(name)
	if err != nil {
		return err
	}
	if err := s.Fill(ctx, sel, text); err != nil {
		return fmt.Errorf("%s: fill %s: %w", p.table.Page(), name, err)
	}
	return nil
}

func (p page) click(ctx context.Context, s session.Session, name string) error {
	sel, err := p.table.Resolve(name)
	if err != nil {
		return err
	}
	if err := s.Click(ctx, sel); err != nil {
		return fmt.Errorf("%s: click %s: %w", p.table.Page(), name, err)
	}
	return nil
}

func (p page) visible(ctx context.Context, s session.Session, name string) error {
	sel, err := p.table.Resolve(name)
	if err != nil {
		return err
	}
	return p.site.Expect.Visible(ctx, s, sel)
}

// Table exposes a page object's locators, mainly for drift checks.
func (p page) Table() *locator.Table {
	return p.table
}
