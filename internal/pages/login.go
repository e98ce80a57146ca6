package pages

import (
	"context"

	"github.com/kuitang/parabank-e2e/internal/locator"
	"github.com/kuitang/parabank-e2e/internal/session"
)

// LoginErrorText is shown when credentials are rejected.
const LoginErrorText = "The username and password could not be verified."

var loginLocators = locator.MustNewTable("login", map[string]locator.Selector{
	"username": locator.CSS("input[name='username']"),
	"password": locator.CSS("input[name='password']"),
	"submit":   locator.CSS("input[value='Log In']"),
	"logout":   locator.CSS("a[href$='logout.htm']"),
})

// LoginPage is the home page with the customer login panel.
type LoginPage struct {
	page
}

// NewLoginPage returns the login page object.
func NewLoginPage(site Site) *LoginPage {
	return &LoginPage{page{site: site, table: loginLocators}}
}

// Open navigates to index.htm.
func (p *LoginPage) Open(ctx context.Context, s session.Session) error {
	return p.open(ctx, s, PathIndex)
}

// Login fills the login panel and submits it.
func (p *LoginPage) Login(ctx context.Context, s session.Session, username, password string) error {
	if err := p.fill(ctx, s, "username", username); err != nil {
		return err
	}
	if err := p.fill(ctx, s, "password", password); err != nil {
		return err
	}
	return p.click(ctx, s, "submit")
}

// Logout clicks the Log Out link and waits for the login panel.
func (p *LoginPage) Logout(ctx context.Context, s session.Session) error {
	if err := p.click(ctx, s, "logout"); err != nil {
		return err
	}
	return p.visible(ctx, s, "username")
}

// VerifyLoginError asserts that the credentials were rejected.
func (p *LoginPage) VerifyLoginError(ctx context.Context, s session.Session) error {
	return p.site.Expect.TextVisible(ctx, s, LoginErrorText)
}
