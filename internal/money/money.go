// Package money converts between decimal amounts as clients send them and
// the integer minor units (cents) the ledger stores.
package money

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for malformed, zero or negative amounts.
var ErrInvalidAmount = errors.New("invalid amount")

var (
	amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
	maxCents      = decimal.NewFromInt(math.MaxInt64)
)

// ParseAmount converts a decimal string such as "40.25" to cents. At most two
// fractional digits are accepted and the result must be strictly positive.
func ParseAmount(input string) (int64, error) {
	normalized := strings.TrimSpace(input)
	if !amountPattern.MatchString(normalized) {
		return 0, fmt.Errorf("%w: must be a positive number with up to 2 decimal places", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0, fmt.Errorf("%w: too large", ErrInvalidAmount)
	}
	if cents.Sign() <= 0 {
		return 0, fmt.Errorf("%w: must be greater than 0", ErrInvalidAmount)
	}
	return cents.IntPart(), nil
}

// FormatAmount renders cents with exactly two decimal places.
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Display renders cents as a JSON number, e.g. 100.50.
func Display(cents int64) json.Number {
	return json.Number(FormatAmount(cents))
}

// Input is an amount as received in a JSON body. Both 12.5 and "12.5" are
// accepted; the textual form is kept verbatim for ParseAmount.
type Input struct {
	raw string
	set bool
}

// NewInput wraps a textual amount.
func NewInput(raw string) Input {
	return Input{raw: raw, set: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*i = Input{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = NewInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a number or string: %w", err)
	}
	*i = NewInput(n.String())
	return nil
}

// IsSet reports whether a value was supplied.
func (i Input) IsSet() bool { return i.set }

// String returns the raw textual form.
func (i Input) String() string { return i.raw }

// Cents parses the input with ParseAmount.
func (i Input) Cents() (int64, error) {
	if !i.set {
		return 0, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	return ParseAmount(i.raw)
}
