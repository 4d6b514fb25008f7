package store

import (
	"context"

	"github.com/welinkai/llmgateway/internal/provider"
	"github.com/welinkai/llmgateway/internal/usage"
)

// Backend is the persistence surface shared by the SQLite Store and the
// PostgreSQL store in internal/store/postgres.
type Backend interface {
	ListProviders(ctx context.Context) ([]*provider.Provider, error)
	GetProvider(ctx context.Context, id int64) (*provider.Provider, error)
	GetProviderByName(ctx context.Context, name string) (*provider.Provider, error)
	CreateProvider(ctx context.Context, p *provider.Provider) error
	UpdateProvider(ctx context.Context, p *provider.Provider) error
	SetProviderActive(ctx context.Context, id int64, active bool) error

	usage.Recorder
	usage.Reader

	Ping(ctx context.Context) error
	Close() error
}

var _ Backend = (*Store)(nil)
