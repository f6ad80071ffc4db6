package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
        id            UUID PRIMARY KEY,
        first_name    TEXT NOT NULL,
        last_name     TEXT NOT NULL,
        email         TEXT NOT NULL,
        balance_cents BIGINT NOT NULL DEFAULT 0,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
        CONSTRAINT accounts_email_key UNIQUE (email),
        CONSTRAINT accounts_balance_non_negative CHECK (balance_cents >= 0)
    )`,
	`CREATE TABLE IF NOT EXISTS transactions (
        id               UUID PRIMARY KEY,
        kind             TEXT NOT NULL CHECK (kind IN ('FUND', 'WITHDRAW', 'TRANSFER')),
        amount_cents     BIGINT NOT NULL CHECK (amount_cents > 0),
        actor_account_id UUID NOT NULL REFERENCES accounts (id),
        from_account_id  UUID REFERENCES accounts (id),
        to_account_id    UUID REFERENCES accounts (id),
        created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS transactions_actor_idx ON transactions (actor_account_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS transactions_from_idx ON transactions (from_account_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS transactions_to_idx ON transactions (to_account_id, created_at DESC)`,
}

// EnsureSchema creates the accounts and transactions tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
