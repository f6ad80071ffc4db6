package account

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byEmail map[string]string
	now     func() time.Time
}

// NewMemoryStore creates a concurrency-safe in-memory store. A single lock
// guards every mutation, so TransferBalance is indivisible.
func NewMemoryStore() Store {
	return &memoryStore{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStore) Create(_ context.Context, input CreateInput) (Account, error) {
	email := NormalizeEmail(input.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return Account{}, ErrDuplicateEmail
	}

	now := s.now()
	acc := &Account{
		ID:        uuid.NewString(),
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[acc.ID] = acc
	s.byEmail[email] = acc.ID
	return *acc, nil
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return Account{}, ErrNotFound
	}
	acc, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *acc, nil
}

func (s *memoryStore) FindByID(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *acc, nil
}

func (s *memoryStore) IncrementBalance(_ context.Context, id string, amount int64) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	if acc.BalanceCents > math.MaxInt64-amount {
		return Account{}, ErrBalanceOverflow
	}
	acc.BalanceCents += amount
	acc.UpdatedAt = s.now()
	return *acc, nil
}

func (s *memoryStore) DecrementBalance(_ context.Context, id string, amount int64) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[id]
	if !ok || acc.BalanceCents < amount {
		return Account{}, ErrInsufficientFunds
	}
	acc.BalanceCents -= amount
	acc.UpdatedAt = s.now()
	return *acc, nil
}

func (s *memoryStore) TransferBalance(_ context.Context, fromID, toID string, amount int64) (Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sender, ok := s.byID[fromID]
	if !ok || sender.BalanceCents < amount {
		return Transfer{}, ErrInsufficientFunds
	}
	recipient, ok := s.byID[toID]
	if !ok {
		return Transfer{}, ErrNotFound
	}
	if recipient.BalanceCents > math.MaxInt64-amount {
		return Transfer{}, ErrBalanceOverflow
	}

	now := s.now()
	sender.BalanceCents -= amount
	sender.UpdatedAt = now
	recipient.BalanceCents += amount
	recipient.UpdatedAt = now

	return Transfer{Sender: *sender, Recipient: *recipient}, nil
}
