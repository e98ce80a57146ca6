package pages

import (
	"context"

	"github.com/kuitang/parabank-e2e/internal/customer"
	"github.com/kuitang/parabank-e2e/internal/locator"
	"github.com/kuitang/parabank-e2e/internal/session"
)

// RegistrationSuccessText is shown after a customer is created and logged in.
const RegistrationSuccessText = "Your account was created successfully. You are now logged in."

var registerLocators = locator.MustNewTable("register", map[string]locator.Selector{
	"firstName":        locator.CSS("input[name='customer.firstName']"),
	"lastName":         locator.CSS("input[name='customer.lastName']"),
	"address":          locator.CSS("input[name='customer.address.street']"),
	"city":             locator.CSS("input[name='customer.address.city']"),
	"state":            locator.CSS("input[name='customer.address.state']"),
	"zip":              locator.CSS("input[name='customer.address.zipCode']"),
	"phone":            locator.CSS("input[name='customer.phoneNumber']"),
	"ssn":              locator.CSS("input[name='customer.ssn']"),
	"username":         locator.CSS("input[name='customer.username']"),
	"password":         locator.CSS("input[name='customer.password']"),
	"repeatedPassword": locator.CSS("input[name='repeatedPassword']"),
	"submit":           locator.CSS("input[value='Register']"),
})

// RegisterPage is the customer sign-up form.
type RegisterPage struct {
	page
}

// NewRegisterPage returns the register page object.
func NewRegisterPage(site Site) *RegisterPage {
	return &RegisterPage{page{site: site, table: registerLocators}}
}

// Open navigates to register.htm.
func (p *RegisterPage) Open(ctx context.Context, s session.Session) error {
	return p.open(ctx, s, PathRegister)
}

// FillForm types every record field into the form. The record must be complete.
func (p *RegisterPage) FillForm(ctx context.Context, s session.Session, r customer.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	for _, f := range r.Fields() {
		if err := p.fill(ctx, s, f.Name, f.Value); err != nil {
			return err
		}
	}
	return nil
}

// Submit clicks Register.
func (p *RegisterPage) Submit(ctx context.Context, s session.Session) error {
	return p.click(ctx, s, "submit")
}

// VerifySuccess asserts the registration confirmation is shown.
func (p *RegisterPage) VerifySuccess(ctx context.Context, s session.Session) error {
	return p.VerifyState(ctx, s, PathRegister, RegistrationSuccessText)
}

// VerifyState asserts the URL contains fragment and text is visible.
func (p *RegisterPage) VerifyState(ctx context.Context, s session.Session, fragment, text string) error {
	if err := p.site.Expect.URLContains(ctx, s, fragment); err != nil {
		return err
	}
	return p.site.Expect.TextVisible(ctx, s, text)
}

// Register runs fill and submit in order.
func (p *RegisterPage) Register(ctx context.Context, s session.Session, r customer.Record) error {
	if err := p.FillForm(ctx, s, r); err != nil {
		return err
	}
	return p.Submit(ctx, s)
}
