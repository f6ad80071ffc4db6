package account

import (
	"strings"
	"time"
)

// Account is a holder of funds. BalanceCents is never negative.
type Account struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	BalanceCents int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateInput captures the data required to open an account.
type CreateInput struct {
	FirstName string
	LastName  string
	Email     string
}

// Transfer is the pair of snapshots produced by a successful TransferBalance.
type Transfer struct {
	Sender    Account
	Recipient Account
}

// NormalizeEmail is the canonical form used for uniqueness and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
