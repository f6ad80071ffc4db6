package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wallet_ledger/internal/auth"
)

// RegisterAuthRoutes wires token issuance behind the rate limiter.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/token", rateLimiter, h.IssueToken)
	} else {
		group.Post("/token", h.IssueToken)
	}
}
