package browser

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/parabank-e2e/internal/artifacts"
	"github.com/kuitang/parabank-e2e/internal/customer"
	"github.com/kuitang/parabank-e2e/internal/errs"
	"github.com/kuitang/parabank-e2e/internal/journey"
	"github.com/kuitang/parabank-e2e/internal/locator"
	"github.com/kuitang/parabank-e2e/internal/pages"
)

// Scenarios share the bank and reset it through the admin page, so they
// run one after another.

func TestBrowser_RegisterLoginSummary(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			runner := env.Runner(t, driver, nil)
			catalog := journey.NewCatalog(env.Site())

			res, err := runner.Run(t.Context(), catalog.FullJourney())
			require.NoError(t, err)
			assert.True(t, res.Passed)
			assert.Equal(t, driver, res.Driver)
			require.Len(t, res.Steps, 5)
			for _, s := range res.Steps {
				assert.Equal(t, journey.StatusPassed, s.Status, s.Name)
			}
		})
	}
}

func TestBrowser_RegistrationWithFixedUsername(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			clock := customer.NewFakeClock(time.UnixMilli(1700000000000))
			runner := env.Runner(t, driver, customer.NewGenerator(clock))
			catalog := journey.NewCatalog(env.Site())

			res, err := runner.Run(t.Context(), catalog.DefaultRegistration())
			require.NoError(t, err)
			assert.True(t, res.Passed)
			assert.Equal(t, "user_1700000000000", res.Username)
		})
	}
}

func TestBrowser_PasswordMismatchFailsAtRegistration(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			dir := t.TempDir()
			runner := env.Runner(t, driver, nil)
			runner.Artifacts = artifacts.DirSink{Root: dir}

			def := journey.NewCatalog(env.Site()).FullJourney()
			def.Customize = func(r customer.Record) customer.Record {
				r.RepeatedPassword = "Different456"
				return r
			}

			res, err := runner.Run(t.Context(), def)
			require.Error(t, err)
			assert.False(t, res.Passed)

			var stepErr *journey.StepError
			require.True(t, errors.As(err, &stepErr))
			assert.Equal(t, journey.StepRegister, stepErr.Step)
			assert.True(t, errs.Is(err, errs.Assertion))

			assert.Equal(t, journey.StatusFailed, res.Steps[0].Status)
			for _, s := range res.Steps[1:] {
				assert.Equal(t, journey.StatusSkipped, s.Status, s.Name)
			}

			require.NotEmpty(t, res.Steps[0].Screenshot)
			png, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(res.Steps[0].Screenshot)))
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

			s := env.OpenSession(t, driver)
			register := pages.NewRegisterPage(env.Site())
			require.NoError(t, register.Open(t.Context(), s))
			rec := customer.NewGenerator(nil).Next()
			rec.RepeatedPassword = "Different456"
			require.NoError(t, register.FillForm(t.Context(), s, rec))
			require.NoError(t, register.Submit(t.Context(), s))
			assert.NoError(t, register.VerifyState(t.Context(), s, "register.htm", "Passwords did not match."))
		})
	}
}

func TestBrowser_LoginPageObjects(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := t.Context()
			site := env.Site()
			s := env.OpenSession(t, driver)

			admin := pages.NewAdminPage(site)
			require.NoError(t, admin.Open(ctx, s))
			require.NoError(t, admin.Initialize(ctx, s))
			require.NoError(t, admin.VerifyInitialized(ctx, s))

			login := pages.NewLoginPage(site)
			require.NoError(t, login.Open(ctx, s))
			require.NoError(t, login.Login(ctx, s, "john", "wrong-password"))
			assert.NoError(t, login.VerifyLoginError(ctx, s))

			require.NoError(t, login.Open(ctx, s))
			require.NoError(t, login.Login(ctx, s, "john", "demo"))
			summary := pages.NewSummaryPage(site)
			require.NoError(t, summary.VerifyLanded(ctx, s, customer.Record{FirstName: "John", LastName: "Smith"}))

			overview := pages.NewOverviewPage(site)
			require.NoError(t, overview.Open(ctx, s))
			require.NoError(t, overview.VerifyLoaded(ctx, s))
			require.NoError(t, overview.VerifyAccountTable(ctx, s))

			require.NoError(t, login.Logout(ctx, s))
		})
	}
}

func TestBrowser_RunAllIsolatesJourneys(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	if env.Bank == nil {
		t.Skip("counts customers in the in-process bank")
	}
	runner := env.Runner(t, drivers[0], nil)
	runner.Parallelism = 2
	catalog := journey.NewCatalog(env.Site())

	a, err := catalog.Build("first", []string{journey.StepRegister, journey.StepVerifyOverview})
	require.NoError(t, err)
	b, err := catalog.Build("second", []string{journey.StepRegister, journey.StepLogout, journey.StepLogin, journey.StepVerifySummary})
	require.NoError(t, err)

	results, err := runner.RunAll(t.Context(), []journey.Definition{a, b})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Journey)
	assert.NotEqual(t, results[0].Username, results[1].Username)

	n, err := env.Bank.Store.CustomerCount(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBrowser_GotoMissingPageIsNavigationError(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			s := env.OpenSession(t, driver)
			site := env.Site()

			err := s.Goto(t.Context(), site.URL("/parabank/missing-page.htm"))
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.Navigation), "got %v", err)
			assert.Contains(t, err.Error(), "status 404")

			require.NoError(t, s.Goto(t.Context(), site.URL(pages.PathIndex)))
		})
	}
}

func TestBrowser_TextSelectorsAreCaseSensitive(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := t.Context()
			s := env.OpenSession(t, driver)
			require.NoError(t, s.Goto(ctx, env.Site().URL(pages.PathIndex)))

			visible, err := s.IsVisible(ctx, locator.Text("Customer Login"))
			require.NoError(t, err)
			assert.True(t, visible)

			visible, err = s.IsVisible(ctx, locator.Text("customer login"))
			require.NoError(t, err)
			assert.False(t, visible)
		})
	}
}
