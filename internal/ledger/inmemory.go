package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type storedTransaction struct {
	Transaction
	seq uint64
}

type inMemoryLedger struct {
	mu    sync.RWMutex
	items []storedTransaction
	seq   uint64
	now   func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger.
func NewInMemory() Ledger {
	return &inMemoryLedger{now: func() time.Time { return time.Now().UTC() }}
}

func (l *inMemoryLedger) Record(_ context.Context, entry Entry) (Transaction, error) {
	if err := entry.Validate(); err != nil {
		return Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	tx := Transaction{
		ID:             uuid.NewString(),
		Kind:           entry.Kind,
		AmountCents:    entry.AmountCents,
		ActorAccountID: entry.ActorAccountID,
		FromAccountID:  entry.FromAccountID,
		ToAccountID:    entry.ToAccountID,
		CreatedAt:      l.now(),
	}
	l.items = append(l.items, storedTransaction{Transaction: tx, seq: l.seq})
	return tx, nil
}

func (l *inMemoryLedger) ListForAccount(_ context.Context, accountID string, q Query) ([]Transaction, error) {
	l.mu.RLock()
	matched := make([]storedTransaction, 0)
	for _, item := range l.items {
		if q.Kind != "" && item.Kind != q.Kind {
			continue
		}
		if item.ActorAccountID == accountID || item.FromAccountID == accountID || item.ToAccountID == accountID {
			matched = append(matched, item)
		}
	}
	l.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})

	limit := ClampLimit(q.Limit)
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]Transaction, len(matched))
	for i, item := range matched {
		out[i] = item.Transaction
	}
	return out, nil
}
