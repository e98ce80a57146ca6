package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kuitang/parabank-e2e/internal/bankdemo"
	"github.com/kuitang/parabank-e2e/internal/config"
	"github.com/kuitang/parabank-e2e/internal/customer"
	"github.com/kuitang/parabank-e2e/internal/journey"
	"github.com/kuitang/parabank-e2e/internal/obs"
	"github.com/kuitang/parabank-e2e/internal/pages"
	"github.com/kuitang/parabank-e2e/internal/report"
	"github.com/kuitang/parabank-e2e/internal/session"
	"github.com/kuitang/parabank-e2e/internal/session/pwsession"
	"github.com/kuitang/parabank-e2e/internal/session/rodsession"
)

func runJourneys(cmd *cobra.Command, args []string) error {
	if reportFmt != "markdown" && reportFmt != "json" {
		return fmt.Errorf("--format must be markdown or json, got %q", reportFmt)
	}

	ctx := cmd.Context()
	logger := obs.Pkg("cmd/journey")

	cfg, err := config.Load(config.Overrides{
		BaseURL:     baseURL,
		Driver:      driverName,
		JourneyFile: journeyFile,
		Headed:      headed,
		Parallelism: parallelism,
	})
	if err != nil {
		return err
	}
	cfg.PrintSummary(os.Stderr)

	target := cfg.BaseURL
	if target == "" {
		bank, err := startBank(ctx, cfg.Bank)
		if err != nil {
			return fmt.Errorf("start demo bank: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := bank.Shutdown(shutdownCtx); err != nil {
				logger.Warn("bank_shutdown_failed", "error", err)
			}
		}()
		target = bank.URL
	}

	site := cfg.Site(target)
	catalog := journey.NewCatalog(site)
	defs, err := definitions(cfg, catalog)
	if err != nil {
		return err
	}

	sink, err := cfg.ArtifactSink(ctx)
	if err != nil {
		return fmt.Errorf("artifact sink: %w", err)
	}

	driver, err := launchDriver(ctx, cfg)
	if err != nil {
		return err
	}
	defer driver.Close()

	runner := &journey.Runner{
		Driver:      driver,
		Fixture:     journey.AdminReset{Page: pages.NewAdminPage(site)},
		Customers:   customer.NewGenerator(nil),
		Artifacts:   sink,
		Parallelism: cfg.Parallelism,
	}

	started := time.Now()
	results, runErr := runner.RunAll(ctx, defs)
	batch := report.NewBatch(uuid.NewString(), started, results)
	logger.Info("batch_finished", "batch_id", batch.ID, "passed", batch.Passed, "failed", batch.Failed, "duration_ms", time.Since(started).Milliseconds())

	if sink != nil && len(results) > 0 {
		keys, err := report.Publish(ctx, sink, batch)
		if err != nil {
			logger.Error("report_publish_failed", "error", err)
		} else {
			logger.Info("report_published", "keys", keys)
		}
	}

	if err := printReport(cmd, batch); err != nil {
		return err
	}

	if runErr != nil && len(results) == 0 {
		return runErr
	}
	if !batch.OK() {
		return fmt.Errorf("%d of %d journeys failed", batch.Failed, len(results))
	}
	return nil
}

func printReport(cmd *cobra.Command, b report.Batch) error {
	out := cmd.OutOrStdout()
	if reportFmt == "json" {
		data, err := report.JSON(b)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	_, err := fmt.Fprint(out, report.Markdown(b))
	return err
}

// definitions resolves the journey file, or the built-in default when none is set.
func definitions(cfg *config.Config, catalog *journey.Catalog) ([]journey.Definition, error) {
	if cfg.JourneyFile == "" {
		if fullJourney {
			return []journey.Definition{catalog.FullJourney()}, nil
		}
		return []journey.Definition{catalog.DefaultRegistration()}, nil
	}

	f, err := config.LoadJourneyFile(cfg.JourneyFile)
	if err != nil {
		return nil, err
	}
	var defs []journey.Definition
	for _, entry := range f.Enabled() {
		def, err := catalog.Build(entry.Name, entry.EnabledSteps())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, errors.New("journey file has no enabled journeys")
	}
	return defs, nil
}

func startBank(ctx context.Context, bc config.BankConfig) (*bankdemo.Bank, error) {
	key, err := bc.Key()
	if err != nil {
		return nil, err
	}
	return bankdemo.Start(ctx, bankdemo.StoreConfig{
		Path:       bc.DBPath,
		Key:        key,
		BcryptCost: bc.BcryptCost,
	}, bc.Addr)
}

func launchDriver(ctx context.Context, cfg *config.Config) (session.Driver, error) {
	switch cfg.Driver {
	case config.DriverRod:
		return rodsession.Launch(ctx, cfg.SessionOptions())
	default:
		return pwsession.Launch(cfg.SessionOptions())
	}
}
