package pages

import (
	"context"

	"github.com/kuitang/parabank-e2e/internal/customer"
	"github.com/kuitang/parabank-e2e/internal/locator"
	"github.com/kuitang/parabank-e2e/internal/session"
)

const (
	OverviewTitle = "Accounts Overview"
	welcomePrefix = "Welcome "
)

var overviewLocators = locator.MustNewTable("overview", map[string]locator.Selector{
	"title":        locator.Text(OverviewTitle),
	"accountTable": locator.CSS("#accountTable"),
	"welcome":      locator.CSS("#leftPanel p.smallText"),
})

// SummaryPage is where a customer lands right after logging in.
type SummaryPage struct {
	page
}

// NewSummaryPage returns the summary page object.
func NewSummaryPage(site Site) *SummaryPage {
	return &SummaryPage{page{site: site, table: overviewLocators}}
}

// VerifyLanded asserts the post-login landing and the customer greeting.
func (p *SummaryPage) VerifyLanded(ctx context.Context, s session.Session, r customer.Record) error {
	if err := p.site.Expect.URLContains(ctx, s, PathOverview); err != nil {
		return err
	}
	if err := p.visible(ctx, s, "welcome"); err != nil {
		return err
	}
	return p.site.Expect.TextVisible(ctx, s, welcomePrefix+r.FullName())
}

// OverviewPage lists the logged-in customer's accounts.
type OverviewPage struct {
	page
}

// NewOverviewPage returns the overview page object.
func NewOverviewPage(site Site) *OverviewPage {
	return &OverviewPage{page{site: site, table: overviewLocators}}
}

// Open navigates to overview.htm.
func (p *OverviewPage) Open(ctx context.Context, s session.Session) error {
	return p.open(ctx, s, PathOverview)
}

// VerifyLoaded asserts the URL and the page title.
func (p *OverviewPage) VerifyLoaded(ctx context.Context, s session.Session) error {
	if err := p.site.Expect.URLContains(ctx, s, PathOverview); err != nil {
		return err
	}
	return p.visible(ctx, s, "title")
}

// VerifyAccountTable asserts the accounts table is rendered.
func (p *OverviewPage) VerifyAccountTable(ctx context.Context, s session.Session) error {
	return p.visible(ctx, s, "accountTable")
}
