package bankdemo

import (
	"context"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// StartTestServer serves an in-memory, initialized bank over httptest.
// The server and database are closed when the test completes. The returned
// URL is the server root; pages live under /parabank/.
func StartTestServer(t testing.TB) (*httptest.Server, *Store) {
	return StartTestServerWithOptions(t, ServerOptions{})
}

// StartTestServerWithOptions is StartTestServer with explicit server options.
func StartTestServerWithOptions(t testing.TB, opts ServerOptions) (*httptest.Server, *Store) {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, StoreConfig{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("failed to open bank store: %v", err)
	}
	if err := store.Initialize(ctx); err != nil {
		store.Close()
		t.Fatalf("failed to initialize bank store: %v", err)
	}

	srv, err := NewServer(store, opts)
	if err != nil {
		store.Close()
		t.Fatalf("failed to build bank server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		store.Close()
	})
	return ts, store
}
