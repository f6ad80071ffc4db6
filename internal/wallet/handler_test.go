package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/congo-pay/wallet_ledger/internal/apierror"
)

func TestStatementQueryLimitValidation(t *testing.T) {
	limit := func(n int) *int { return &n }

	assert.NoError(t, apierror.Validate(statementQuery{}), "absent limit uses the default")
	assert.NoError(t, apierror.Validate(statementQuery{Limit: limit(1)}))
	assert.NoError(t, apierror.Validate(statementQuery{Limit: limit(100), Type: "FUND"}))

	for _, n := range []int{0, -1, 101} {
		assert.Error(t, apierror.Validate(statementQuery{Limit: limit(n)}), "limit=%d", n)
	}
	assert.Error(t, apierror.Validate(statementQuery{Type: "REFUND"}))
}
