package wallet

// Error is an accounting failure the caller can act on. Code is stable and
// machine-readable; Message is for humans.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrInvalidAmount       = &Error{Code: "INVALID_AMOUNT", Message: "Amount must be a positive value with at most two decimal places"}
	ErrDuplicateEmail      = &Error{Code: "DUPLICATE_EMAIL", Message: "An account with this email already exists"}
	ErrAccountNotFound     = &Error{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found"}
	ErrInsufficientBalance = &Error{Code: "INSUFFICIENT_BALANCE", Message: "Insufficient balance"}
	ErrRecipientNotFound   = &Error{Code: "RECIPIENT_NOT_FOUND", Message: "Recipient account not found"}
	ErrInvalidTransfer     = &Error{Code: "INVALID_TRANSFER", Message: "Cannot transfer to the same account"}
)

// ErrorCode returns the stable code.
func (e *Error) ErrorCode() string { return e.Code }
