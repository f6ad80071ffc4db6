// Package storage selects and owns the persistence backend at process start.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/congo-pay/wallet_ledger/internal/account"
	"github.com/congo-pay/wallet_ledger/internal/config"
	"github.com/congo-pay/wallet_ledger/internal/infra"
	"github.com/congo-pay/wallet_ledger/internal/ledger"
)

// Backend bundles the account store and ledger sharing one connection.
type Backend struct {
	Name     string
	Accounts account.Store
	Ledger   ledger.Ledger

	ping  func(context.Context) error
	close func(context.Context) error
}

// Open connects the backend named by cfg.StorageBackend and prepares its
// schema or indexes.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory, "":
		return NewMemory(), nil
	case config.BackendPostgres:
		return openPostgres(ctx, cfg.DatabaseURL)
	case config.BackendMongo:
		return openMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// NewMemory returns a process-local backend. Data is lost on exit.
func NewMemory() *Backend {
	return &Backend{
		Name:     config.BackendMemory,
		Accounts: account.NewMemoryStore(),
		Ledger:   ledger.NewInMemory(),
	}
}

func openPostgres(ctx context.Context, url string) (*Backend, error) {
	pool, err := infra.NewPostgresPool(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := infra.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Backend{
		Name:     config.BackendPostgres,
		Accounts: account.NewPostgresStore(pool),
		Ledger:   ledger.NewPostgresLedger(pool),
		ping:     pool.Ping,
		close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}, nil
}

func openMongo(ctx context.Context, uri, database string, logger *slog.Logger) (*Backend, error) {
	client, err := infra.NewMongoClient(ctx, uri)
	if err != nil {
		return nil, err
	}
	db := client.Database(database)

	accounts := account.NewMongoStore(db, logger)
	txs := ledger.NewMongoLedger(db)
	if err := accounts.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := txs.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &Backend{
		Name:     config.BackendMongo,
		Accounts: accounts,
		Ledger:   txs,
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		close: client.Disconnect,
	}, nil
}

// Ping checks connectivity. The memory backend is always reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the underlying connection. It is safe to call on a nil Backend.
func (b *Backend) Close(ctx context.Context) error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close(ctx)
}
