// Package ledger is the append-only log of completed money movements.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidEntry is returned when an entry has an unknown kind or a
// non-positive amount.
var ErrInvalidEntry = errors.New("invalid ledger entry")

// Kind classifies a ledger entry.
type Kind string

const (
	KindFund     Kind = "FUND"
	KindWithdraw Kind = "WITHDRAW"
	KindTransfer Kind = "TRANSFER"
)

const (
	// DefaultLimit is used when a query does not set one.
	DefaultLimit = 20
	// MaxLimit caps the number of entries a single query returns.
	MaxLimit = 100
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindFund, KindWithdraw, KindTransfer:
		return true
	default:
		return false
	}
}

// Transaction is an immutable ledger record.
type Transaction struct {
	ID             string
	Kind           Kind
	AmountCents    int64
	ActorAccountID string
	FromAccountID  string
	ToAccountID    string
	CreatedAt      time.Time
}

// Entry describes a record to append. FromAccountID is set for withdrawals
// and transfers, ToAccountID for fundings and transfers.
type Entry struct {
	Kind           Kind
	AmountCents    int64
	ActorAccountID string
	FromAccountID  string
	ToAccountID    string
}

// Validate checks the entry invariants shared by all backends.
func (e Entry) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, e.Kind)
	}
	if e.AmountCents <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidEntry)
	}
	if e.ActorAccountID == "" {
		return fmt.Errorf("%w: actor is required", ErrInvalidEntry)
	}
	return nil
}

// Query narrows ListForAccount. An empty Kind matches every kind.
type Query struct {
	Kind  Kind
	Limit int
}

// ClampLimit applies the default and bounds to a requested limit.
func ClampLimit(limit int) int {
	if limit == 0 {
		return DefaultLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Ledger defines the contract implemented by ledger backends. There is no
// update or delete: records are written once.
type Ledger interface {
	Record(ctx context.Context, entry Entry) (Transaction, error)
	// ListForAccount returns entries where the account is actor, source or
	// destination, newest first, filtered by kind before the limit applies.
	ListForAccount(ctx context.Context, accountID string, q Query) ([]Transaction, error)
}
