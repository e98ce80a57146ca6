package journey

import (
	"context"
	"fmt"
	"sort"

	"github.com/kuitang/parabank-e2e/internal/customer"
	"github.com/kuitang/parabank-e2e/internal/errs"
	"github.com/kuitang/parabank-e2e/internal/pages"
	"github.com/kuitang/parabank-e2e/internal/session"
)

// Step names accepted by Build and the journey file.
const (
	StepRegister       = "register"
	StepLogout         = "logout"
	StepLogin          = "login"
	StepVerifySummary  = "verify-summary"
	StepVerifyOverview = "verify-overview"
)

// State is what steps of one journey share: the session and the customer record.
type State struct {
	Session  session.Session
	Customer customer.Record
}

// Step is one user-facing action of a journey.
type Step interface {
	Name() string
	Run(ctx context.Context, st *State) error
}

// RegisterStep opens the sign-up form, submits the customer and checks the confirmation.
type RegisterStep struct {
	Page *pages.RegisterPage
}

func (RegisterStep) Name() string { return StepRegister }

func (s RegisterStep) Run(ctx context.Context, st *State) error {
	if err := s.Page.Open(ctx, st.Session); err != nil {
		return err
	}
	if err := s.Page.FillForm(ctx, st.Session, st.Customer); err != nil {
		return err
	}
	if err := s.Page.Submit(ctx, st.Session); err != nil {
		return err
	}
	return s.Page.VerifySuccess(ctx, st.Session)
}

// LogoutStep ends the session registration started.
type LogoutStep struct {
	Page *pages.LoginPage
}

func (LogoutStep) Name() string { return StepLogout }

func (s LogoutStep) Run(ctx context.Context, st *State) error {
	return s.Page.Logout(ctx, st.Session)
}

// LoginStep logs the journey's customer in from the home page.
type LoginStep struct {
	Page *pages.LoginPage
}

func (LoginStep) Name() string { return StepLogin }

func (s LoginStep) Run(ctx context.Context, st *State) error {
	if err := s.Page.Open(ctx, st.Session); err != nil {
		return err
	}
	return s.Page.Login(ctx, st.Session, st.Customer.Username, st.Customer.Password)
}

// VerifySummaryStep checks the post-login landing greets the customer.
type VerifySummaryStep struct {
	Page *pages.SummaryPage
}

func (VerifySummaryStep) Name() string { return StepVerifySummary }

func (s VerifySummaryStep) Run(ctx context.Context, st *State) error {
	return s.Page.VerifyLanded(ctx, st.Session, st.Customer)
}

// VerifyOverviewStep opens the accounts overview and checks the table renders.
type VerifyOverviewStep struct {
	Page *pages.OverviewPage
}

func (VerifyOverviewStep) Name() string { return StepVerifyOverview }

func (s VerifyOverviewStep) Run(ctx context.Context, st *State) error {
	if err := s.Page.Open(ctx, st.Session); err != nil {
		return err
	}
	if err := s.Page.VerifyLoaded(ctx, st.Session); err != nil {
		return err
	}
	return s.Page.VerifyAccountTable(ctx, st.Session)
}

// Catalog holds one instance of every step bound to a site.
type Catalog struct {
	steps map[string]Step
}

// NewCatalog binds every step variant to site.
func NewCatalog(site pages.Site) *Catalog {
	login := pages.NewLoginPage(site)
	steps := []Step{
		RegisterStep{Page: pages.NewRegisterPage(site)},
		LogoutStep{Page: login},
		LoginStep{Page: login},
		VerifySummaryStep{Page: pages.NewSummaryPage(site)},
		VerifyOverviewStep{Page: pages.NewOverviewPage(site)},
	}
	c := &Catalog{steps: make(map[string]Step, len(steps))}
	for _, s := range steps {
		c.steps[s.Name()] = s
	}
	return c
}

// Step returns the named step.
func (c *Catalog) Step(name string) (Step, error) {
	s, ok := c.steps[name]
	if !ok {
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown step %q (known: %v)", name, c.Names()))
	}
	return s, nil
}

// Names lists known step names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.steps))
	for name := range c.steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves step names into a Definition.
func (c *Catalog) Build(name string, stepNames []string) (Definition, error) {
	def := Definition{Name: name}
	for _, sn := range stepNames {
		s, err := c.Step(sn)
		if err != nil {
			return Definition{}, fmt.Errorf("journey %q: %w", name, err)
		}
		def.Steps = append(def.Steps, s)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// DefaultRegistration is the default scenario: register and see the confirmation.
func (c *Catalog) DefaultRegistration() Definition {
	def, _ := c.Build("registration", []string{StepRegister})
	return def
}

// FullJourney registers, logs out, logs back in and checks both account screens.
func (c *Catalog) FullJourney() Definition {
	def, _ := c.Build("register-login-summary", []string{
		StepRegister,
		StepLogout,
		StepLogin,
		StepVerifySummary,
		StepVerifyOverview,
	})
	return def
}
