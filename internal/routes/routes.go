package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/topup-ng/topup_ng/internal/auth"
	"github.com/topup-ng/topup_ng/internal/config"
	"github.com/topup-ng/topup_ng/internal/funding"
	"github.com/topup-ng/topup_ng/internal/gateway"
	"github.com/topup-ng/topup_ng/internal/identity"
	"github.com/topup-ng/topup_ng/internal/ledger"
	"github.com/topup-ng/topup_ng/internal/metrics"
	"github.com/topup-ng/topup_ng/internal/middleware"
	"github.com/topup-ng/topup_ng/internal/notification"
	"github.com/topup-ng/topup_ng/internal/paystack"
	"github.com/topup-ng/topup_ng/internal/provider"
	"github.com/topup-ng/topup_ng/internal/purchase"
	"github.com/topup-ng/topup_ng/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Services holds the wired application services. Setup returns it so the
// caller can start background workers against the same instances the
// handlers use.
type Services struct {
	Store      ledger.Store
	Providers  provider.Repository
	Purchases  *purchase.Service
	Funding    *funding.Service
	Reconciler *purchase.Reconciler
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health and metrics
	RegisterHealthRoutes(app, d)
	app.Get("/metrics", metrics.Handler())

	// Storage backends, memory-backed in dev without a database.
	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		store = ledger.NewInMemory()
	}

	var providerRepo provider.Repository
	if d.DB != nil {
		providerRepo = provider.NewPostgresRepository(d.DB)
	} else {
		providerRepo = provider.NewMemoryRepository()
	}

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}

	// Upstream gateways, simulated in dev without credentials.
	var gw gateway.Gateway
	if d.Cfg.Gateway.BaseURL != "" {
		gw = gateway.NewHTTPGateway(d.Cfg.Gateway.BaseURL, d.Cfg.Gateway.APIKey, d.Cfg.Gateway.Timeout, d.Logger)
	} else {
		gw = gateway.NewStaticGateway()
	}

	var payments funding.PaymentClient
	if d.Cfg.Paystack.SecretKey != "" {
		payments = paystack.New(d.Cfg.Paystack.SecretKey, d.Cfg.Paystack.BaseURL)
	} else {
		payments = funding.NewStaticClient()
	}

	// Services and handlers
	notifier := notification.NewLoggerNotifier(d.Logger)
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg, identityRepo)
	walletSvc := wallet.NewService(store)
	purchaseSvc := purchase.NewService(store, providerRepo, gw, notifier, d.Logger, purchase.Config{
		DebitProviderFloat: d.Cfg.Purchase.DebitProviderFloat,
		RefundAttempts:     d.Cfg.Purchase.RefundAttempts,
		RefundBackoff:      d.Cfg.Purchase.RefundBackoff,
	})
	fundingSvc := funding.NewService(store, payments, notifier, d.Logger, d.Cfg.Paystack.CallbackURL)
	reconciler := purchase.NewReconciler(store, gw, fundingSvc, d.Logger, d.Cfg.Reconcile.Interval, d.Cfg.Reconcile.StaleAfter)

	authHandler := auth.NewHandler(identitySvc, authSvc, walletSvc)
	walletHandler := wallet.NewHandler(walletSvc)
	purchaseHandler := purchase.NewHandler(purchaseSvc)
	fundingHandler := funding.NewHandler(fundingSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)
	RegisterCatalogRoutes(api, providerRepo)

	// Webhooks authenticate by signature, not session.
	api.Post("/webhooks/paystack", fundingHandler.Webhook)

	// Protected routes
	jwtmw := middleware.JWTAuth(d.Cfg, identityRepo)
	protected := api.Group("", jwtmw)
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	protected.Get("/me", authHandler.Me)
	protected.Post("/logout", authHandler.Logout)
	RegisterWalletRoutes(protected, walletHandler, fundingHandler)
	RegisterPurchaseRoutes(protected, purchaseHandler)

	// Admin routes
	admin := protected.Group("/admin", middleware.RequireAdmin())
	RegisterAdminRoutes(admin, identitySvc, providerRepo, purchaseSvc, reconciler)

	return &Services{
		Store:      store,
		Providers:  providerRepo,
		Purchases:  purchaseSvc,
		Funding:    fundingSvc,
		Reconciler: reconciler,
	}, nil
}
