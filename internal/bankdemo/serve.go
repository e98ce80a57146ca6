package bankdemo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/kuitang/parabank-e2e/internal/obs"
)

// Bank is a demo bank listening on a local port.
type Bank struct {
	// URL is the server root, e.g. http://127.0.0.1:8090.
	URL   string
	Store *Store

	app  *Server
	srv  *http.Server
	done chan error
}

// Start opens the store, seeds it when it has no customers, and serves on addr.
// Use port 0 to pick a free port.
func Start(ctx context.Context, cfg StoreConfig, addr string) (*Bank, error) {
	store, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	n, err := store.CustomerCount(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	if n == 0 {
		if err := store.Initialize(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}

	app, err := NewServer(store, ServerOptions{})
	if err != nil {
		store.Close()
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		app.Close()
		store.Close()
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	b := &Bank{
		URL:   "http://" + ln.Addr().String(),
		Store: store,
		app:   app,
		srv: &http.Server{
			Handler:           app.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		done: make(chan error, 1),
	}
	go func() {
		err := b.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		b.done <- err
	}()

	obs.From(ctx).With("pkg", "bankdemo").Info("bank_listening", "url", b.URL, "persistent", cfg.Path != "", "customers", n)
	return b, nil
}

// Done delivers the serve error, or nil after Shutdown.
func (b *Bank) Done() <-chan error {
	return b.done
}

// Shutdown drains in-flight requests and closes the store.
func (b *Bank) Shutdown(ctx context.Context) error {
	err := b.srv.Shutdown(ctx)
	b.app.Close()
	if cerr := b.Store.Close(); err == nil {
		err = cerr
	}
	return err
}
