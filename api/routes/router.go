package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clipclash/clipclash-backend/api/controllers"
	webhookcontrollers "github.com/clipclash/clipclash-backend/api/controllers/webhooks"
	"github.com/clipclash/clipclash-backend/api/middleware"
	checkoutsvc "github.com/clipclash/clipclash-backend/internal/checkout"
	"github.com/clipclash/clipclash-backend/internal/fulfillment"
	"github.com/clipclash/clipclash-backend/internal/ledger"
	"github.com/clipclash/clipclash-backend/internal/spend"
	"github.com/clipclash/clipclash-backend/internal/tips"
	"github.com/clipclash/clipclash-backend/internal/wallet"
	stripewebhook "github.com/clipclash/clipclash-backend/internal/webhooks/stripe"
	"github.com/clipclash/clipclash-backend/pkg/config"
	"github.com/clipclash/clipclash-backend/pkg/db"
	"github.com/clipclash/clipclash-backend/pkg/logger"
	"github.com/clipclash/clipclash-backend/pkg/redis"
	"github.com/clipclash/clipclash-backend/pkg/stripe"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DBPinger     db.Pinger
	CachePinger  redis.Pinger
	Wallets      wallet.Repository
	Ledger       ledger.Service
	Spend        spend.Service
	Checkout     checkoutsvc.Service
	Engine       fulfillment.Engine
	Tips         tips.Repository
	StripeClient *stripe.Client
	WebhookSvc   *stripewebhook.Service
	WebhookGuard *stripewebhook.IdempotencyGuard
	Registry     *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DBPinger, deps.CachePinger, logg))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.WebhookSvc, deps.StripeClient, deps.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.GetWallet(deps.Wallets, logg))
			r.Get("/transactions", controllers.ListTransactions(deps.Ledger, logg))
			r.Post("/spend", controllers.SpendTokens(deps.Spend, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/session", controllers.CreateCheckoutSession(deps.Checkout, logg))
			r.Post("/fulfill", controllers.FulfillCheckoutSession(deps.Engine, logg))
		})

		r.Route("/tips", func(r chi.Router) {
			r.Get("/received", controllers.ListReceivedTips(deps.Tips, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Get("/wallet", controllers.AdminGetWallet(deps.Wallets, logg))
			r.Get("/transactions", controllers.AdminListTransactions(deps.Ledger, logg))
		})
	})

	return r
}
