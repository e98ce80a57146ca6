// Package config loads harness and demo-bank settings from environment
// variables and CLI flags, validates them, and provides sensible defaults.
//
// Environment variables carry every setting; the few CLI flags the commands
// expose only override them.
package config

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/parabank-e2e/internal/artifacts"
	"github.com/kuitang/parabank-e2e/internal/expect"
	"github.com/kuitang/parabank-e2e/internal/pages"
	"github.com/kuitang/parabank-e2e/internal/session"
)

const (
	DriverPlaywright = "playwright"
	DriverRod        = "rod"

	defaultAWSRegion = "auto"
	defaultBankAddr  = "127.0.0.1:8090"
)

// Config holds all harness configuration.
type Config struct {
	// Target
	BaseURL string // PARABANK_BASE_URL; empty means "start the demo bank"

	// Browser
	Driver        string        // E2E_DRIVER: playwright or rod
	Browser       string        // E2E_BROWSER: chromium, firefox, webkit
	Headless      bool          // E2E_HEADLESS
	SlowMo        time.Duration // E2E_SLOW_MO
	RodControlURL string        // ROD_CONTROL_URL: attach to a running Chrome

	// Assertions
	Timeout      time.Duration // E2E_TIMEOUT
	PollInterval time.Duration // E2E_POLL_INTERVAL

	// Runner
	Parallelism int    // E2E_PARALLELISM
	JourneyFile string // E2E_JOURNEY_FILE

	// Artifacts: a bucket wins over a directory; neither disables capture.
	ArtifactsDir       string // E2E_ARTIFACTS_DIR
	ArtifactsBucket    string // E2E_ARTIFACTS_BUCKET
	ArtifactsPrefix    string // E2E_ARTIFACTS_PREFIX
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY

	Bank BankConfig
}

// BankConfig holds demo bank settings.
type BankConfig struct {
	Addr       string // BANKDEMO_ADDR
	DBPath     string // BANKDEMO_DB; empty keeps the database in memory
	DBKey      string // BANKDEMO_DB_KEY: 64 hex characters, generated when empty
	BcryptCost int    // BANKDEMO_BCRYPT_COST
}

// Overrides are CLI flag values; zero values leave the environment in charge.
type Overrides struct {
	BaseURL     string
	Driver      string
	JourneyFile string
	Headed      bool
	Parallelism int
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseBankFlags registers and parses the demo bank's --addr and --db flags.
func ParseBankFlags() (addr, dbPath string) {
	flag.StringVar(&addr, "addr", "", "Listen address (default 127.0.0.1:8090, overrides BANKDEMO_ADDR)")
	flag.StringVar(&dbPath, "db", "", "SQLCipher database file (default in-memory, overrides BANKDEMO_DB)")
	flag.Parse()
	return addr, dbPath
}

// Load reads the environment, applies overrides and validates the result.
func Load(o Overrides) (*Config, error) {
	cfg := &Config{}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PARABANK_BASE_URL")), "/")

	cfg.Driver = strings.ToLower(getEnvOrDefault("E2E_DRIVER", DriverPlaywright))
	cfg.Browser = strings.ToLower(getEnvOrDefault("E2E_BROWSER", "chromium"))
	cfg.Headless = parseBoolOrDefault("E2E_HEADLESS", true)
	cfg.SlowMo = parseDurationOrDefault("E2E_SLOW_MO", 0)
	cfg.RodControlURL = strings.TrimSpace(os.Getenv("ROD_CONTROL_URL"))

	cfg.Timeout = parseDurationOrDefault("E2E_TIMEOUT", session.DefaultTimeout)
	cfg.PollInterval = parseDurationOrDefault("E2E_POLL_INTERVAL", expect.DefaultInterval)

	cfg.Parallelism = parseIntOrDefault("E2E_PARALLELISM", 1)
	cfg.JourneyFile = strings.TrimSpace(os.Getenv("E2E_JOURNEY_FILE"))

	cfg.ArtifactsDir = strings.TrimSpace(os.Getenv("E2E_ARTIFACTS_DIR"))
	cfg.ArtifactsBucket = strings.TrimSpace(os.Getenv("E2E_ARTIFACTS_BUCKET"))
	cfg.ArtifactsPrefix = strings.Trim(strings.TrimSpace(os.Getenv("E2E_ARTIFACTS_PREFIX")), "/")
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultAWSRegion)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))

	cfg.Bank = loadBank()

	if o.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(o.BaseURL, "/")
	}
	if o.Driver != "" {
		cfg.Driver = strings.ToLower(o.Driver)
	}
	if o.JourneyFile != "" {
		cfg.JourneyFile = o.JourneyFile
	}
	if o.Headed {
		cfg.Headless = false
	}
	if o.Parallelism > 0 {
		cfg.Parallelism = o.Parallelism
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadBank reads only the demo bank settings, with flag overrides.
func LoadBank(addr, dbPath string) (BankConfig, error) {
	b := loadBank()
	if addr != "" {
		b.Addr = addr
	}
	if dbPath != "" {
		b.DBPath = dbPath
	}
	if issues := b.validate(); len(issues) > 0 {
		return BankConfig{}, &ValidationError{Errors: issues}
	}
	return b, nil
}

func loadBank() BankConfig {
	return BankConfig{
		Addr:       getEnvOrDefault("BANKDEMO_ADDR", defaultBankAddr),
		DBPath:     strings.TrimSpace(os.Getenv("BANKDEMO_DB")),
		DBKey:      strings.TrimSpace(os.Getenv("BANKDEMO_DB_KEY")),
		BcryptCost: parseIntOrDefault("BANKDEMO_BCRYPT_COST", 10),
	}
}

// Validate checks that all settings are present and consistent.
func (c *Config) Validate() error {
	var errs []string

	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "PARABANK_BASE_URL must be an absolute http(s) URL")
		}
	}

	switch c.Driver {
	case DriverPlaywright:
		switch c.Browser {
		case "chromium", "firefox", "webkit":
		default:
			errs = append(errs, "E2E_BROWSER must be chromium, firefox or webkit")
		}
	case DriverRod:
		if c.Browser != "chromium" {
			errs = append(errs, "E2E_BROWSER must be chromium when E2E_DRIVER=rod")
		}
	default:
		errs = append(errs, "E2E_DRIVER must be playwright or rod")
	}

	if c.Timeout <= 0 {
		errs = append(errs, "E2E_TIMEOUT must be positive")
	}
	if c.PollInterval <= 0 {
		errs = append(errs, "E2E_POLL_INTERVAL must be positive")
	} else if c.PollInterval > c.Timeout {
		errs = append(errs, "E2E_POLL_INTERVAL must not exceed E2E_TIMEOUT")
	}
	if c.SlowMo < 0 {
		errs = append(errs, "E2E_SLOW_MO must not be negative")
	}
	if c.Parallelism <= 0 {
		errs = append(errs, "E2E_PARALLELISM must be positive")
	}

	if c.ArtifactsBucket != "" {
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required when E2E_ARTIFACTS_BUCKET is set")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required when E2E_ARTIFACTS_BUCKET is set")
		}
	}

	errs = append(errs, c.Bank.validate()...)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Key decodes DBKey; nil means "generate a random key".
func (b BankConfig) Key() ([]byte, error) {
	if b.DBKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(b.DBKey)
	if err != nil {
		return nil, fmt.Errorf("decode BANKDEMO_DB_KEY: %w", err)
	}
	return key, nil
}

func (b BankConfig) validate() []string {
	var errs []string
	if b.Addr == "" {
		errs = append(errs, "BANKDEMO_ADDR must not be empty")
	}
	if b.DBKey != "" {
		if len(b.DBKey) != 64 {
			errs = append(errs, "BANKDEMO_DB_KEY must be 64 hex characters (32 bytes)")
		} else if _, err := hex.DecodeString(b.DBKey); err != nil {
			errs = append(errs, "BANKDEMO_DB_KEY must be hex encoded")
		}
	}
	if b.BcryptCost < 4 || b.BcryptCost > 31 {
		errs = append(errs, "BANKDEMO_BCRYPT_COST must be between 4 and 31")
	}
	return errs
}

// SessionOptions returns the browser settings.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		Browser:    c.Browser,
		Headless:   c.Headless,
		SlowMo:     c.SlowMo,
		Timeout:    c.Timeout,
		ControlURL: c.RodControlURL,
	}
}

// ExpectOptions returns the assertion window.
func (c *Config) ExpectOptions() expect.Options {
	return expect.Options{Timeout: c.Timeout, Interval: c.PollInterval}
}

// Site returns the page-object configuration for baseURL.
func (c *Config) Site(baseURL string) pages.Site {
	return pages.NewSite(baseURL, expect.New(c.ExpectOptions()))
}

// ArtifactSink returns where failure screenshots and reports go, or nil
// when capture is disabled.
func (c *Config) ArtifactSink(ctx context.Context) (artifacts.Sink, error) {
	switch {
	case c.ArtifactsBucket != "":
		return artifacts.NewS3Sink(ctx, artifacts.S3Config{
			Endpoint:        c.AWSEndpointS3,
			Region:          c.AWSRegion,
			AccessKeyID:     c.AWSAccessKeyID,
			SecretAccessKey: c.AWSSecretAccessKey,
			BucketName:      c.ArtifactsBucket,
			Prefix:          c.ArtifactsPrefix,
			UsePathStyle:    c.AWSEndpointS3 != "",
		})
	case c.ArtifactsDir != "":
		return artifacts.DirSink{Root: c.ArtifactsDir}, nil
	}
	return nil, nil
}

// PrintSummary writes a human-readable summary of the configuration.
func (c *Config) PrintSummary(w io.Writer) {
	target := c.BaseURL
	if target == "" {
		target = "in-process demo bank"
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "parabank-e2e starting...")
	fmt.Fprintf(w, "  Target:    %s\n", target)
	fmt.Fprintf(w, "  Driver:    %s (%s, headless=%t)\n", c.Driver, c.Browser, c.Headless)
	fmt.Fprintf(w, "  Timeout:   %s (poll %s)\n", c.Timeout, c.PollInterval)
	fmt.Fprintf(w, "  Parallel:  %d\n", c.Parallelism)
	switch {
	case c.ArtifactsBucket != "":
		fmt.Fprintf(w, "  Artifacts: s3://%s/%s\n", c.ArtifactsBucket, c.ArtifactsPrefix)
	case c.ArtifactsDir != "":
		fmt.Fprintf(w, "  Artifacts: %s\n", c.ArtifactsDir)
	default:
		fmt.Fprintln(w, "  Artifacts: disabled")
	}
	fmt.Fprintln(w, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// MustLoad loads configuration and panics if validation fails.
func MustLoad(o Overrides) *Config {
	cfg, err := Load(o)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
