package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `id::text, kind, amount_cents, actor_account_id::text, from_account_id::text, to_account_id::text, created_at`

// PostgresLedger persists ledger records in the transactions table.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Record appends a ledger record.
func (l *PostgresLedger) Record(ctx context.Context, entry Entry) (Transaction, error) {
	if err := entry.Validate(); err != nil {
		return Transaction{}, err
	}
	actorID, err := uuid.Parse(entry.ActorAccountID)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: actor id: %v", ErrInvalidEntry, err)
	}
	fromID, err := nullableUUID(entry.FromAccountID)
	if err != nil {
		return Transaction{}, err
	}
	toID, err := nullableUUID(entry.ToAccountID)
	if err != nil {
		return Transaction{}, err
	}

	row := l.db.QueryRow(ctx, `INSERT INTO transactions (id, kind, amount_cents, actor_account_id, from_account_id, to_account_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, now())
        RETURNING `+transactionColumns,
		uuid.New(), string(entry.Kind), entry.AmountCents, actorID, fromID, toID)
	tx, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

// ListForAccount returns the newest records the account participated in.
func (l *PostgresLedger) ListForAccount(ctx context.Context, accountID string, q Query) ([]Transaction, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return []Transaction{}, nil
	}

	rows, err := l.db.Query(ctx, `SELECT `+transactionColumns+`
        FROM transactions
        WHERE (actor_account_id = $1 OR from_account_id = $1 OR to_account_id = $1)
          AND ($2 = '' OR kind = $2)
        ORDER BY created_at DESC
        LIMIT $3`, id, string(q.Kind), ClampLimit(q.Limit))
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		tx       Transaction
		kind     string
		from, to *string
	)
	if err := row.Scan(&tx.ID, &kind, &tx.AmountCents, &tx.ActorAccountID, &from, &to, &tx.CreatedAt); err != nil {
		return Transaction{}, err
	}
	tx.Kind = Kind(kind)
	if from != nil {
		tx.FromAccountID = *from
	}
	if to != nil {
		tx.ToAccountID = *to
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}

func nullableUUID(id string) (*uuid.UUID, error) {
	if id == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: account id %q: %v", ErrInvalidEntry, id, err)
	}
	return &parsed, nil
}
