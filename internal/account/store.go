// Package account owns account identity, lookup and balance mutation.
package account

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no account matches the given id or email.
	ErrNotFound = errors.New("account not found")

	// ErrInsufficientFunds indicates a debit was refused, either because the
	// balance is too low or because the debited account does not exist.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateEmail indicates the normalized email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrBalanceOverflow indicates a credit would exceed the largest
	// representable balance. Nothing is mutated.
	ErrBalanceOverflow = errors.New("balance overflow")

	// ErrRefundFailed indicates a compensating transfer debited the sender
	// and could not give the money back. It never wraps ErrNotFound or
	// ErrInsufficientFunds.
	ErrRefundFailed = errors.New("transfer refund failed")
)

// Store defines the contract implemented by account backends.
//
// DecrementBalance and TransferBalance are check-and-mutate primitives: each
// is atomic with respect to concurrent callers on the same accounts.
type Store interface {
	Create(ctx context.Context, input CreateInput) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	IncrementBalance(ctx context.Context, id string, amount int64) (Account, error)
	DecrementBalance(ctx context.Context, id string, amount int64) (Account, error)
	TransferBalance(ctx context.Context, fromID, toID string, amount int64) (Transfer, error)
}
