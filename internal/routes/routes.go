package routes

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/wallet_ledger/internal/apierror"
	"github.com/congo-pay/wallet_ledger/internal/auth"
	"github.com/congo-pay/wallet_ledger/internal/config"
	"github.com/congo-pay/wallet_ledger/internal/middleware"
	"github.com/congo-pay/wallet_ledger/internal/notification"
	"github.com/congo-pay/wallet_ledger/internal/storage"
	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	Backend *storage.Backend
	Cache   *redis.Client
	Logger  *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Backend == nil {
		return fmt.Errorf("storage backend is required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	notifier := notification.NewLoggerNotifier(d.Logger)
	walletSvc := wallet.NewService(d.Backend.Accounts, d.Backend.Ledger, notifier, d.Logger)
	tokens := auth.NewTokens(d.Cfg.JWTSecret, d.Cfg.JWTExpiresIn)

	api := app.Group("/api")

	RegisterAuthRoutes(api, auth.NewHandler(walletSvc, tokens), middleware.TokenRateLimit(d.Cache, d.Cfg.TokenRateLimit, d.Logger))
	RegisterAccountRoutes(api, AccountRoutes{
		Handler:     wallet.NewHandler(walletSvc, tokens),
		Auth:        middleware.BearerAuth(tokens.Subject),
		Idempotency: middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	})

	app.Use(func(c *fiber.Ctx) error {
		return apierror.New(http.StatusNotFound, apierror.CodeNotFound, fmt.Sprintf("Route %s %s not found", c.Method(), c.Path()))
	})

	return nil
}
