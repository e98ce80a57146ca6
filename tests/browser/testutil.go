// Package browser runs customer journeys through real browsers.
// All browser test files use BrowserTestEnv via SetupBrowserTestEnv(t).
//
// The target is PARABANK_BASE_URL when set, otherwise an in-process demo
// bank. Tests skip when the browser for a driver cannot be started.
package browser

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kuitang/parabank-e2e/internal/bankdemo"
	"github.com/kuitang/parabank-e2e/internal/customer"
	"github.com/kuitang/parabank-e2e/internal/expect"
	"github.com/kuitang/parabank-e2e/internal/journey"
	"github.com/kuitang/parabank-e2e/internal/pages"
	"github.com/kuitang/parabank-e2e/internal/session"
	"github.com/kuitang/parabank-e2e/internal/session/pwsession"
	"github.com/kuitang/parabank-e2e/internal/session/rodsession"
)

const (
	// CODING AGENT RULE: Always use this timeout for browser tests.
	// Never introduce a larger timeout value anywhere in tests/browser.
	browserMaxTimeout = 5 * time.Second
)

// Drivers every scenario runs under.
var drivers = []string{pwsession.DriverName, rodsession.DriverName}

var browserFixtureMu sync.Mutex
var browserSharedFixture *BrowserTestEnv

// BrowserTestEnv is the shared target plus lazily launched browsers.
type BrowserTestEnv struct {
	BaseURL string
	// Bank is the in-process demo bank, nil against an external site.
	Bank *bankdemo.Bank

	driverMu sync.Mutex
	drivers  map[string]session.Driver
}

// SetupBrowserTestEnv returns the shared environment, skipping in -short mode.
func SetupBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests are skipped in -short mode")
	}

	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()
	if browserSharedFixture != nil {
		return browserSharedFixture
	}

	env := &BrowserTestEnv{drivers: make(map[string]session.Driver)}
	if base := strings.TrimRight(os.Getenv("PARABANK_BASE_URL"), "/"); base != "" {
		env.BaseURL = base
	} else {
		bank, err := bankdemo.Start(context.Background(), bankdemo.StoreConfig{BcryptCost: bcrypt.MinCost}, "127.0.0.1:0")
		if err != nil {
			t.Fatalf("Failed to start demo bank: %v", err)
		}
		env.Bank = bank
		env.BaseURL = bank.URL
	}
	browserSharedFixture = env
	return env
}

// Driver returns the named driver, launching its browser on first use.
// Skips the test if the browser is not available.
func (env *BrowserTestEnv) Driver(t *testing.T, name string) session.Driver {
	t.Helper()

	env.driverMu.Lock()
	defer env.driverMu.Unlock()
	if d, ok := env.drivers[name]; ok {
		return d
	}

	opts := session.Options{Browser: "chromium", Headless: true, Timeout: browserMaxTimeout}
	var (
		d   session.Driver
		err error
	)
	switch name {
	case pwsession.DriverName:
		d, err = pwsession.Launch(opts)
	case rodsession.DriverName:
		opts.ControlURL = os.Getenv("ROD_CONTROL_URL")
		d, err = rodsession.Launch(context.Background(), opts)
	default:
		t.Fatalf("unknown driver %q", name)
	}
	if err != nil {
		t.Skipf("%s browser not available: %v", name, err)
	}
	env.drivers[name] = d
	return d
}

// Site returns page-object configuration bounded by browserMaxTimeout.
func (env *BrowserTestEnv) Site() pages.Site {
	return pages.NewSite(env.BaseURL, expect.New(expect.Options{Timeout: browserMaxTimeout}))
}

// Runner returns a runner that resets the bank through the admin page.
func (env *BrowserTestEnv) Runner(t *testing.T, driverName string, gen *customer.Generator) *journey.Runner {
	t.Helper()
	if gen == nil {
		gen = customer.NewGenerator(nil)
	}
	return &journey.Runner{
		Driver:    env.Driver(t, driverName),
		Fixture:   journey.AdminReset{Page: pages.NewAdminPage(env.Site())},
		Customers: gen,
	}
}

// OpenSession opens an isolated session closed at test cleanup.
func (env *BrowserTestEnv) OpenSession(t *testing.T, driverName string) session.Session {
	t.Helper()
	s, err := env.Driver(t, driverName).Open(t.Context())
	if err != nil {
		t.Fatalf("could not open session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func cleanupSharedBrowserTestEnv() {
	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()
	if browserSharedFixture == nil {
		return
	}
	for _, d := range browserSharedFixture.drivers {
		_ = d.Close()
	}
	if browserSharedFixture.Bank != nil {
		ctx, cancel := context.WithTimeout(context.Background(), browserMaxTimeout)
		_ = browserSharedFixture.Bank.Shutdown(ctx)
		cancel()
	}
	browserSharedFixture = nil
}

func TestMain(m *testing.M) {
	code := m.Run()
	cleanupSharedBrowserTestEnv()
	os.Exit(code)
}
