package wallet

import (
	"encoding/json"
	"time"

	"github.com/congo-pay/wallet_ledger/internal/account"
	"github.com/congo-pay/wallet_ledger/internal/ledger"
	"github.com/congo-pay/wallet_ledger/internal/money"
)

// AccountView is the public projection of an account. Balance is rendered in
// major units with two decimals.
type AccountView struct {
	ID        string      `json:"id"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Email     string      `json:"email"`
	Balance   json.Number `json:"balance"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// TransferView reports both post-transfer snapshots.
type TransferView struct {
	From   AccountView `json:"from"`
	To     AccountView `json:"to"`
	Amount json.Number `json:"amount"`
}

// TransactionView is one statement line. Absent participants render as null.
type TransactionView struct {
	ID             string      `json:"id"`
	Type           ledger.Kind `json:"type"`
	Amount         json.Number `json:"amount"`
	ActorAccountID *string     `json:"actorAccountId"`
	FromAccountID  *string     `json:"fromAccountId"`
	ToAccountID    *string     `json:"toAccountId"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// StatementView is an account snapshot plus its newest ledger entries.
type StatementView struct {
	Account      AccountView       `json:"account"`
	Transactions []TransactionView `json:"transactions"`
}

// CreateAccountInput captures the data needed to open an account.
type CreateAccountInput struct {
	FirstName string
	LastName  string
	Email     string
}

// AmountInput targets a single account.
type AmountInput struct {
	AccountID string
	Amount    money.Input
}

// TransferInput moves Amount from FromAccountID to ToAccountID.
type TransferInput struct {
	FromAccountID string
	ToAccountID   string
	Amount        money.Input
}

// StatementInput narrows a statement. An empty Kind includes every kind and a
// zero Limit uses the ledger default.
type StatementInput struct {
	Kind  ledger.Kind
	Limit int
}

func newAccountView(acc account.Account) AccountView {
	return AccountView{
		ID:        acc.ID,
		FirstName: acc.FirstName,
		LastName:  acc.LastName,
		Email:     acc.Email,
		Balance:   money.Display(acc.BalanceCents),
		CreatedAt: acc.CreatedAt,
		UpdatedAt: acc.UpdatedAt,
	}
}

func newTransactionView(tx ledger.Transaction) TransactionView {
	return TransactionView{
		ID:             tx.ID,
		Type:           tx.Kind,
		Amount:         money.Display(tx.AmountCents),
		ActorAccountID: optional(tx.ActorAccountID),
		FromAccountID:  optional(tx.FromAccountID),
		ToAccountID:    optional(tx.ToAccountID),
		CreatedAt:      tx.CreatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
