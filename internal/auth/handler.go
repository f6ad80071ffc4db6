package auth

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wallet_ledger/internal/apierror"
	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

// Handler exposes token issuance.
type Handler struct {
	accounts *wallet.Service
	tokens   *Tokens
}

// NewHandler constructs the auth HTTP handler.
func NewHandler(accounts *wallet.Service, tokens *Tokens) *Handler {
	return &Handler{accounts: accounts, tokens: tokens}
}

type issueTokenRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

func (r *issueTokenRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

// IssueToken returns a fresh token for an existing account identified by email.
func (h *Handler) IssueToken(c *fiber.Ctx) error {
	req, err := apierror.BindJSON[issueTokenRequest](c)
	if err != nil {
		return err
	}

	acc, err := h.accounts.GetAccountByEmail(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	token, err := h.tokens.Issue(acc.ID, acc.Email)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"account": acc, "token": token})
}
