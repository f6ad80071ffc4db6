package account

import (
	"context"
	"fmt"
)

type balanceMutator interface {
	IncrementBalance(ctx context.Context, id string, amount int64) (Account, error)
	DecrementBalance(ctx context.Context, id string, amount int64) (Account, error)
}

// transferWithCompensation debits the sender and credits the recipient as two
// separate atomic steps. When the credit fails for any reason the debit is
// refunded before the error is returned, so callers observe either both
// mutations or neither. If the refund itself fails the result is
// ErrRefundFailed, which must not be mistaken for a business rejection.
func transferWithCompensation(ctx context.Context, m balanceMutator, fromID, toID string, amount int64) (Transfer, error) {
	sender, err := m.DecrementBalance(ctx, fromID, amount)
	if err != nil {
		return Transfer{}, err
	}

	recipient, err := m.IncrementBalance(ctx, toID, amount)
	if err != nil {
		// The refund must run even when the caller's context is already done.
		if _, refundErr := m.IncrementBalance(context.WithoutCancel(ctx), fromID, amount); refundErr != nil {
			return Transfer{}, fmt.Errorf("%w: sender %s, amount %d, credit error: %v, refund error: %v", ErrRefundFailed, fromID, amount, err, refundErr)
		}
		return Transfer{}, err
	}

	return Transfer{Sender: sender, Recipient: recipient}, nil
}
