package pages

import (
	"context"

	"github.com/kuitang/parabank-e2e/internal/locator"
	"github.com/kuitang/parabank-e2e/internal/session"
)

const (
	InitializedText = "Database Initialized"
	CleanedText     = "Database Cleaned"
)

var adminLocators = locator.MustNewTable("admin", map[string]locator.Selector{
	"initialize": locator.Text("Initialize"),
	"clean":      locator.CSS("button[value='CLEAN']"),
})

// AdminPage is the administration screen with the data reset controls.
type AdminPage struct {
	page
}

// NewAdminPage returns the admin page object.
func NewAdminPage(site Site) *AdminPage {
	return &AdminPage{page{site: site, table: adminLocators}}
}

// Open navigates to admin.htm.
func (p *AdminPage) Open(ctx context.Context, s session.Session) error {
	return p.open(ctx, s, PathAdmin)
}

// Initialize clicks Initialize, restoring the stock data set.
func (p *AdminPage) Initialize(ctx context.Context, s session.Session) error {
	return p.click(ctx, s, "initialize")
}

// VerifyInitialized asserts the reset confirmation.
func (p *AdminPage) VerifyInitialized(ctx context.Context, s session.Session) error {
	return p.site.Expect.TextVisible(ctx, s, InitializedText)
}

// Clean clicks Clean, emptying every table.
func (p *AdminPage) Clean(ctx context.Context, s session.Session) error {
	return p.click(ctx, s, "clean")
}

// VerifyCleaned asserts the clean confirmation.
func (p *AdminPage) VerifyCleaned(ctx context.Context, s session.Session) error {
	return p.site.Expect.TextVisible(ctx, s, CleanedText)
}
