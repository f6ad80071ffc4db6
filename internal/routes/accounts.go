package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

// AccountRoutes bundles the account handler with its middleware.
type AccountRoutes struct {
	Handler     *wallet.Handler
	Auth        fiber.Handler
	Idempotency fiber.Handler
}

// RegisterAccountRoutes wires account endpoints. Registration is public;
// everything else acts on the bearer's own account.
func RegisterAccountRoutes(r fiber.Router, rt AccountRoutes) {
	h := rt.Handler
	r.Post("/accounts", h.Create)

	me := r.Group("/accounts", rt.Auth)
	me.Get("/me", h.Me)
	me.Get("/me/statement", h.Statement)
	me.Post("/fund", rt.Idempotency, h.Fund)
	me.Post("/withdraw", rt.Idempotency, h.Withdraw)
	me.Post("/transfer", rt.Idempotency, h.Transfer)
}
