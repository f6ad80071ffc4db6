package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/congo-pay/wallet_ledger/internal/account"
	"github.com/congo-pay/wallet_ledger/internal/ledger"
	"github.com/congo-pay/wallet_ledger/internal/money"
	"github.com/congo-pay/wallet_ledger/internal/notification"
)

// Service is the accounting engine. It holds no per-account state; atomicity
// comes from the account store primitives, and every successful mutation is
// followed by exactly one ledger record.
type Service struct {
	accounts account.Store
	ledger   ledger.Ledger
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService builds the engine. notifier may be nil.
func NewService(accounts account.Store, txs ledger.Ledger, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{accounts: accounts, ledger: txs, notifier: notifier, logger: logger}
}

// CreateAccount opens a zero-balance account.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (AccountView, error) {
	email := account.NormalizeEmail(input.Email)

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return AccountView{}, ErrDuplicateEmail
	} else if !errors.Is(err, account.ErrNotFound) {
		return AccountView{}, fmt.Errorf("lookup email: %w", err)
	}

	acc, err := s.accounts.Create(ctx, account.CreateInput{
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     email,
	})
	if err != nil {
		if errors.Is(err, account.ErrDuplicateEmail) {
			return AccountView{}, ErrDuplicateEmail
		}
		return AccountView{}, fmt.Errorf("create account: %w", err)
	}
	return newAccountView(acc), nil
}

// GetAccountByEmail looks an account up by email, case-insensitively.
func (s *Service) GetAccountByEmail(ctx context.Context, email string) (AccountView, error) {
	acc, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return AccountView{}, accountLookupError(err)
	}
	return newAccountView(acc), nil
}

// GetAccount looks an account up by id.
func (s *Service) GetAccount(ctx context.Context, id string) (AccountView, error) {
	acc, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return AccountView{}, accountLookupError(err)
	}
	return newAccountView(acc), nil
}

// FundAccount credits the account and records a FUND entry.
func (s *Service) FundAccount(ctx context.Context, input AmountInput) (AccountView, error) {
	cents, err := parseAmount(input.Amount)
	if err != nil {
		return AccountView{}, err
	}

	acc, err := s.accounts.IncrementBalance(ctx, input.AccountID, cents)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return AccountView{}, ErrAccountNotFound
		}
		return AccountView{}, fmt.Errorf("increment balance: %w", err)
	}

	if err := s.record(ctx, ledger.Entry{
		Kind:           ledger.KindFund,
		AmountCents:    cents,
		ActorAccountID: input.AccountID,
		ToAccountID:    input.AccountID,
	}); err != nil {
		return AccountView{}, err
	}
	return newAccountView(acc), nil
}

// Withdraw debits the account if the balance covers the amount and records a
// WITHDRAW entry. A missing account is reported as insufficient balance.
func (s *Service) Withdraw(ctx context.Context, input AmountInput) (AccountView, error) {
	cents, err := parseAmount(input.Amount)
	if err != nil {
		return AccountView{}, err
	}

	acc, err := s.accounts.DecrementBalance(ctx, input.AccountID, cents)
	if err != nil {
		if errors.Is(err, account.ErrInsufficientFunds) || errors.Is(err, account.ErrNotFound) {
			return AccountView{}, ErrInsufficientBalance
		}
		return AccountView{}, fmt.Errorf("decrement balance: %w", err)
	}

	if err := s.record(ctx, ledger.Entry{
		Kind:           ledger.KindWithdraw,
		AmountCents:    cents,
		ActorAccountID: input.AccountID,
		FromAccountID:  input.AccountID,
	}); err != nil {
		return AccountView{}, err
	}
	return newAccountView(acc), nil
}

// Transfer moves money between two distinct accounts atomically and records a
// TRANSFER entry. The recipient is notified on success.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferView, error) {
	if input.FromAccountID == input.ToAccountID {
		return TransferView{}, ErrInvalidTransfer
	}

	cents, err := parseAmount(input.Amount)
	if err != nil {
		return TransferView{}, err
	}

	if _, err := s.accounts.FindByID(ctx, input.ToAccountID); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return TransferView{}, ErrRecipientNotFound
		}
		return TransferView{}, fmt.Errorf("lookup recipient: %w", err)
	}

	res, err := s.accounts.TransferBalance(ctx, input.FromAccountID, input.ToAccountID, cents)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrRefundFailed):
			s.logger.ErrorContext(ctx, "transfer left sender debited without refund",
				"from_account_id", input.FromAccountID,
				"to_account_id", input.ToAccountID,
				"amount_cents", cents,
				"error", err,
			)
			return TransferView{}, fmt.Errorf("transfer balance: %w", err)
		case errors.Is(err, account.ErrInsufficientFunds):
			return TransferView{}, ErrInsufficientBalance
		case errors.Is(err, account.ErrNotFound):
			return TransferView{}, ErrRecipientNotFound
		default:
			return TransferView{}, fmt.Errorf("transfer balance: %w", err)
		}
	}

	if err := s.record(ctx, ledger.Entry{
		Kind:           ledger.KindTransfer,
		AmountCents:    cents,
		ActorAccountID: input.FromAccountID,
		FromAccountID:  input.FromAccountID,
		ToAccountID:    input.ToAccountID,
	}); err != nil {
		return TransferView{}, err
	}

	s.notifyRecipient(ctx, input.FromAccountID, input.ToAccountID, cents)

	return TransferView{
		From:   newAccountView(res.Sender),
		To:     newAccountView(res.Recipient),
		Amount: money.Display(cents),
	}, nil
}

// GetStatement returns the account snapshot and its newest ledger entries.
// The kind filter is applied before the limit.
func (s *Service) GetStatement(ctx context.Context, accountID string, input StatementInput) (StatementView, error) {
	acc, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return StatementView{}, accountLookupError(err)
	}

	txs, err := s.ledger.ListForAccount(ctx, accountID, ledger.Query{Kind: input.Kind, Limit: input.Limit})
	if err != nil {
		return StatementView{}, fmt.Errorf("list transactions: %w", err)
	}

	lines := make([]TransactionView, len(txs))
	for i, tx := range txs {
		lines[i] = newTransactionView(tx)
	}
	return StatementView{Account: newAccountView(acc), Transactions: lines}, nil
}

// record appends a ledger entry after a balance mutation already succeeded.
// The mutation is not rolled back on failure.
func (s *Service) record(ctx context.Context, entry ledger.Entry) error {
	if _, err := s.ledger.Record(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "ledger record failed after balance mutation",
			"kind", entry.Kind,
			"amount_cents", entry.AmountCents,
			"actor_account_id", entry.ActorAccountID,
			"from_account_id", entry.FromAccountID,
			"to_account_id", entry.ToAccountID,
			"error", err,
		)
		return fmt.Errorf("record %s: %w", strings.ToLower(string(entry.Kind)), err)
	}
	return nil
}

func (s *Service) notifyRecipient(ctx context.Context, fromID, toID string, cents int64) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindTransferReceived,
		Destination: toID,
		Body:        fmt.Sprintf("You received %s from account %s", money.FormatAmount(cents), fromID),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "transfer notification failed", "to_account_id", toID, "error", err)
	}
}

func parseAmount(input money.Input) (int64, error) {
	cents, err := input.Cents()
	if err != nil {
		if errors.Is(err, money.ErrInvalidAmount) {
			return 0, ErrInvalidAmount
		}
		return 0, err
	}
	return cents, nil
}

func accountLookupError(err error) error {
	if errors.Is(err, account.ErrNotFound) {
		return ErrAccountNotFound
	}
	return fmt.Errorf("lookup account: %w", err)
}
