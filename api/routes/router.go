package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/revo-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/revo-backend/api/controllers/cart"
	evaluationcontrollers "github.com/angelmondragon/revo-backend/api/controllers/evaluations"
	ordercontrollers "github.com/angelmondragon/revo-backend/api/controllers/orders"
	tradeincontrollers "github.com/angelmondragon/revo-backend/api/controllers/tradein"
	webhookcontrollers "github.com/angelmondragon/revo-backend/api/controllers/webhooks"
	"github.com/angelmondragon/revo-backend/api/middleware"
	"github.com/angelmondragon/revo-backend/internal/cart"
	"github.com/angelmondragon/revo-backend/internal/checkout"
	"github.com/angelmondragon/revo-backend/internal/evaluations"
	"github.com/angelmondragon/revo-backend/internal/orders"
	"github.com/angelmondragon/revo-backend/internal/payments"
	"github.com/angelmondragon/revo-backend/internal/tradein"
	"github.com/angelmondragon/revo-backend/pkg/config"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	"github.com/angelmondragon/revo-backend/pkg/logger"
	"github.com/angelmondragon/revo-backend/pkg/metrics"
	"github.com/angelmondragon/revo-backend/pkg/redis"
)

// Dependencies is everything the HTTP surface is built from. Nil pingers are
// skipped by readiness.
type Dependencies struct {
	Config *config.Config
	Logger *logger.Logger

	DBPinger      controllers.Pinger
	RedisPinger   controllers.Pinger
	StoragePinger controllers.Pinger

	Idempotency redis.IdempotencyStore
	RateLimiter redis.RateLimiter

	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Cart        cart.Service
	Checkout    checkout.Service
	Orders      orders.Service
	Payments    payments.Service
	TradeIn     tradein.Service
	Evaluations evaluations.Service
	History     controllers.HistoryService

	StripeSigner  webhookcontrollers.SigningSecretSource
	StripeWebhook webhookcontrollers.StripeWebhookService
	WebhookGuard  webhookcontrollers.WebhookGuard
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(),
	)

	idempotent := middleware.Idempotency(deps.Idempotency, cfg.Eventing.RequestIdempotencyTTL, logg)
	tradeInLimit := middleware.RateLimit(
		middleware.NewRateLimitPolicy("tradein", cfg.RateLimit.TradeInWindow, cfg.RateLimit.TradeInUserMax),
		deps.RateLimiter,
		logg,
	)
	checkoutLimit := middleware.RateLimit(
		middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.CheckoutWindow, cfg.RateLimit.CheckoutUserMax),
		deps.RateLimiter,
		logg,
	)
	photoLimits := tradein.PhotoLimits{MaxPhotos: cfg.Media.MaxPhotos, MaxBytes: cfg.Media.MaxPhotoBytes}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":      deps.DBPinger,
			"redis":   deps.RedisPinger,
			"storage": deps.StoragePinger,
		}))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeSigner, deps.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(deps.Cart, logg))
			r.Get("/count", cartcontrollers.CartCount(deps.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(deps.Cart, logg))
			r.Patch("/items/{productId}", cartcontrollers.CartSetItemQty(deps.Cart, logg))
			r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(deps.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(checkoutLimit, idempotent).Post("/", ordercontrollers.CreateFromCart(deps.Checkout, logg))
			r.With(checkoutLimit, idempotent).Post("/checkout", ordercontrollers.CreateFromItems(deps.Checkout, logg))
			r.Get("/me", ordercontrollers.ListMine(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.With(idempotent).Post("/{orderId}/payments/sync", ordercontrollers.SyncPayment(deps.Payments, logg))
		})

		r.Route("/tradein/pickup-requests", func(r chi.Router) {
			r.With(tradeInLimit).Post("/", tradeincontrollers.SubmitPickup(deps.TradeIn, photoLimits, logg))
			r.Get("/me", tradeincontrollers.ListMine(deps.TradeIn, logg))
			r.Get("/{pickupId}", tradeincontrollers.Detail(deps.TradeIn, logg))
			r.With(idempotent).Post("/{pickupId}/respond", tradeincontrollers.RespondToOffer(deps.Evaluations, logg))
		})

		r.Get("/users/me/items", controllers.MyItems(deps.History, logg))
	})

	r.Route("/api/internal/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAnyRole(logg, enums.UserRoleAdmin, enums.UserRoleEvaluator))

		r.With(idempotent).Post("/evaluations", evaluationcontrollers.Submit(deps.Evaluations, logg))
		r.Get("/pickup-requests", evaluationcontrollers.ListPickups(deps.Evaluations, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAnyRole(logg, enums.UserRoleAdmin))

		r.Get("/orders", ordercontrollers.AdminList(deps.Orders, logg))
		r.Get("/orders/{orderId}", ordercontrollers.AdminDetail(deps.Orders, logg))
		r.With(idempotent).Patch("/orders/{orderId}", ordercontrollers.AdminUpdate(deps.Orders, logg))
	})

	return r
}
