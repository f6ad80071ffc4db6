package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wallet_ledger/internal/apierror"
)

const accountIDLocal = "account_id"

// SubjectFunc verifies a bearer token and returns the account id it names.
type SubjectFunc func(token string) (string, error)

// BearerAuth rejects requests without a valid bearer token and stores the
// authenticated account id for handlers.
func BearerAuth(subject SubjectFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "Bearer ") {
			return apierror.Unauthorized("Missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		if token == "" {
			return apierror.Unauthorized("Missing bearer token")
		}
		accountID, err := subject(token)
		if err != nil {
			return apierror.Unauthorized("Invalid or expired token")
		}
		c.Locals(accountIDLocal, accountID)
		return c.Next()
	}
}

// AccountID returns the account id set by BearerAuth, or "" on public routes.
func AccountID(c *fiber.Ctx) string {
	id, _ := c.Locals(accountIDLocal).(string)
	return id
}
