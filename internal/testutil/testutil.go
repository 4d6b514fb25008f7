// Package testutil holds fixtures shared by the gateway's package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/welinkai/llmgateway/internal/config"
	"github.com/welinkai/llmgateway/internal/provider"
	"github.com/welinkai/llmgateway/internal/store"
)

// NewTestStore opens a migrated SQLite store under t.TempDir and closes
// it during test cleanup.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "gateway.db"))
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// NewTestConfig returns the default config with its data directory moved
// into a temp dir.
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.DataDir = t.TempDir()
	return cfg
}

// CreateProvider persists p in st and fails the test on error.
func CreateProvider(t *testing.T, st *store.Store, p *provider.Provider) *provider.Provider {
	t.Helper()
	if err := st.CreateProvider(context.Background(), p); err != nil {
		t.Fatalf("creating provider %q: %v", p.Name, err)
	}
	return p
}
