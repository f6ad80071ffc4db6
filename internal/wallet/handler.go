package wallet

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wallet_ledger/internal/apierror"
	"github.com/congo-pay/wallet_ledger/internal/ledger"
	"github.com/congo-pay/wallet_ledger/internal/middleware"
	"github.com/congo-pay/wallet_ledger/internal/money"
)

// TokenIssuer signs access tokens for newly created accounts.
type TokenIssuer interface {
	Issue(accountID, email string) (string, error)
}

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
	tokens  TokenIssuer
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service, tokens TokenIssuer) *Handler {
	return &Handler{service: service, tokens: tokens}
}

type createAccountRequest struct {
	FirstName string `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string `json:"lastName" validate:"required,min=1,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
}

func (r *createAccountRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
}

type amountRequest struct {
	Amount money.Input `json:"amount"`
}

type transferRequest struct {
	ToAccountID string      `json:"toAccountId" validate:"required"`
	Amount      money.Input `json:"amount"`
}

func (r *transferRequest) Normalize() {
	r.ToAccountID = strings.TrimSpace(r.ToAccountID)
}

type statementQuery struct {
	Type  string `query:"type" validate:"omitempty,oneof=FUND WITHDRAW TRANSFER"`
	Limit *int   `query:"limit" validate:"omitnil,min=1,max=100"`
}

// Create opens an account and returns it with an access token.
func (h *Handler) Create(c *fiber.Ctx) error {
	req, err := apierror.BindJSON[createAccountRequest](c)
	if err != nil {
		return err
	}
	acc, err := h.service.CreateAccount(c.UserContext(), CreateAccountInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		return err
	}
	token, err := h.tokens.Issue(acc.ID, acc.Email)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"account": acc, "token": token})
}

// Me returns the authenticated account.
func (h *Handler) Me(c *fiber.Ctx) error {
	acc, err := h.service.GetAccount(c.UserContext(), middleware.AccountID(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"account": acc})
}

// Fund credits the authenticated account.
func (h *Handler) Fund(c *fiber.Ctx) error {
	req, err := bindAmount[amountRequest](c, func(r amountRequest) money.Input { return r.Amount })
	if err != nil {
		return err
	}
	acc, err := h.service.FundAccount(c.UserContext(), AmountInput{AccountID: middleware.AccountID(c), Amount: req.Amount})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"account": acc})
}

// Withdraw debits the authenticated account.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	req, err := bindAmount[amountRequest](c, func(r amountRequest) money.Input { return r.Amount })
	if err != nil {
		return err
	}
	acc, err := h.service.Withdraw(c.UserContext(), AmountInput{AccountID: middleware.AccountID(c), Amount: req.Amount})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"account": acc})
}

// Transfer moves money from the authenticated account to another one.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	req, err := bindAmount[transferRequest](c, func(r transferRequest) money.Input { return r.Amount })
	if err != nil {
		return err
	}
	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		FromAccountID: middleware.AccountID(c),
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(res)
}

// Statement lists the newest ledger entries of the authenticated account.
func (h *Handler) Statement(c *fiber.Ctx) error {
	q, err := apierror.BindQuery[statementQuery](c)
	if err != nil {
		return err
	}
	input := StatementInput{Kind: ledger.Kind(q.Type)}
	if q.Limit != nil {
		input.Limit = *q.Limit
	}
	statement, err := h.service.GetStatement(c.UserContext(), middleware.AccountID(c), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(statement)
}

// bindAmount binds T and rejects a body with no amount at all. Malformed
// amounts are left to the engine, which reports INVALID_AMOUNT.
func bindAmount[T any](c *fiber.Ctx, amount func(T) money.Input) (T, error) {
	req, err := apierror.BindJSON[T](c)
	if err != nil {
		return req, err
	}
	if !amount(req).IsSet() {
		return req, apierror.Validation(apierror.FieldError{Field: "amount", Rule: "required", Message: "amount is required"})
	}
	return req, nil
}
