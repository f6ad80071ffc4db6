package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	accountColumns  = `id::text, first_name, last_name, email, balance_cents, created_at, updated_at`
	uniqueViolation = "23505"
	outOfRange      = "22003"
)

// PostgresStore persists accounts in PostgreSQL. Conditional debits are single
// UPDATE statements guarded by "balance_cents >= amount".
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new account with a zero balance.
func (s *PostgresStore) Create(ctx context.Context, input CreateInput) (Account, error) {
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `INSERT INTO accounts (id, first_name, last_name, email, balance_cents, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 0, $5, $5)
        RETURNING `+accountColumns,
		uuid.New(), input.FirstName, input.LastName, NormalizeEmail(input.Email), now)
	acc, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Account{}, ErrDuplicateEmail
		}
		return Account{}, fmt.Errorf("insert account: %w", err)
	}
	return acc, nil
}

// FindByEmail fetches an account by normalized email.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, NormalizeEmail(email))
	return notFoundOnNoRows(scanAccount(row))
}

// FindByID fetches an account by identifier.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	return notFoundOnNoRows(scanAccount(row))
}

// IncrementBalance credits an account.
func (s *PostgresStore) IncrementBalance(ctx context.Context, id string, amount int64) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	return notFoundOnNoRows(credit(ctx, s.db, accountID, amount))
}

// DecrementBalance debits an account only if the balance covers the amount.
func (s *PostgresStore) DecrementBalance(ctx context.Context, id string, amount int64) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrInsufficientFunds
	}
	return debit(ctx, s.db, accountID, amount)
}

// TransferBalance moves funds inside a single transaction. Both rows are
// locked in id order first so opposing transfers cannot deadlock.
func (s *PostgresStore) TransferBalance(ctx context.Context, fromID, toID string, amount int64) (Transfer, error) {
	senderID, err := uuid.Parse(fromID)
	if err != nil {
		return Transfer{}, ErrInsufficientFunds
	}
	recipientID, err := uuid.Parse(toID)
	if err != nil {
		return Transfer{}, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transfer{}, fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT id FROM accounts WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`, senderID, recipientID); err != nil {
		return Transfer{}, fmt.Errorf("lock accounts: %w", err)
	}

	sender, err := debit(ctx, tx, senderID, amount)
	if err != nil {
		return Transfer{}, err
	}
	recipient, err := notFoundOnNoRows(credit(ctx, tx, recipientID, amount))
	if err != nil {
		return Transfer{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transfer{}, fmt.Errorf("commit transfer: %w", err)
	}
	return Transfer{Sender: sender, Recipient: recipient}, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func credit(ctx context.Context, q querier, id uuid.UUID, amount int64) (Account, error) {
	row := q.QueryRow(ctx, `UPDATE accounts
        SET balance_cents = balance_cents + $2, updated_at = now()
        WHERE id = $1
        RETURNING `+accountColumns, id, amount)
	acc, err := scanAccount(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == outOfRange {
		return Account{}, ErrBalanceOverflow
	}
	return acc, err
}

func debit(ctx context.Context, q querier, id uuid.UUID, amount int64) (Account, error) {
	row := q.QueryRow(ctx, `UPDATE accounts
        SET balance_cents = balance_cents - $2, updated_at = now()
        WHERE id = $1 AND balance_cents >= $2
        RETURNING `+accountColumns, id, amount)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrInsufficientFunds
	}
	return acc, err
}

func scanAccount(row pgx.Row) (Account, error) {
	var acc Account
	if err := row.Scan(&acc.ID, &acc.FirstName, &acc.LastName, &acc.Email, &acc.BalanceCents, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return Account{}, err
	}
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()
	return acc, nil
}

func notFoundOnNoRows(acc Account, err error) (Account, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return acc, err
}
