// Command bankdemo serves a local ParaBank lookalike backed by an encrypted
// SQLite database, for running journeys without the public demo site.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/parabank-e2e/internal/bankdemo"
	"github.com/kuitang/parabank-e2e/internal/config"
	"github.com/kuitang/parabank-e2e/internal/obs"
)

func main() {
	addr, dbPath := config.ParseBankFlags()
	obs.Init()
	logger := obs.Pkg("cmd/bankdemo")

	cfg, err := config.LoadBank(addr, dbPath)
	if err != nil {
		log.Fatal(err)
	}
	key, err := cfg.Key()
	if err != nil {
		log.Fatal(err)
	}
	if key == nil && cfg.DBPath != "" {
		log.Fatal("BANKDEMO_DB_KEY is required with a database file; a random key would make it unreadable after restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bank, err := bankdemo.Start(ctx, bankdemo.StoreConfig{
		Path:       cfg.DBPath,
		Key:        key,
		BcryptCost: cfg.BcryptCost,
	}, cfg.Addr)
	if err != nil {
		log.Fatalf("Failed to start bank: %v", err)
	}
	logger.Info("bank_ready", "admin", bank.URL+"/parabank/admin.htm")

	select {
	case err := <-bank.Done():
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case <-ctx.Done():
		logger.Info("shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := bank.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Shutdown failed: %v", err)
		}
	}
}
