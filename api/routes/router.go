package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tillpoint/tillpoint-backend/api/controllers"
	"github.com/tillpoint/tillpoint-backend/api/middleware"
	"github.com/tillpoint/tillpoint-backend/internal/cart"
	checkoutsvc "github.com/tillpoint/tillpoint-backend/internal/checkout"
	"github.com/tillpoint/tillpoint-backend/internal/giftcards"
	"github.com/tillpoint/tillpoint-backend/internal/products"
	"github.com/tillpoint/tillpoint-backend/internal/transactions"
	"github.com/tillpoint/tillpoint-backend/internal/variants"
	"github.com/tillpoint/tillpoint-backend/pkg/config"
	"github.com/tillpoint/tillpoint-backend/pkg/db"
	"github.com/tillpoint/tillpoint-backend/pkg/logger"
	"github.com/tillpoint/tillpoint-backend/pkg/redis"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        redis.Pinger
	Products     products.Service
	Variants     variants.Service
	Checkout     checkoutsvc.Service
	Transactions transactions.Service
	GiftCards    giftcards.Service
	TaxRules     cart.TaxRules
	Metrics      prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID(deps.Logger),
		middleware.Logging(deps.Logger),
		middleware.CORS(),
	)

	r.Get("/healthz", controllers.HealthLive(deps.Config))
	r.Get("/healthz/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.DB, deps.Redis))

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Products, deps.Logger))
			r.Get("/{id}", controllers.GetProduct(deps.Products, deps.Logger))
			r.Get("/{id}/variants", controllers.ListProductVariants(deps.Variants, deps.Logger))
			r.Post("/{id}/variants/combinations/generate", controllers.GenerateCombinations(deps.Variants, deps.Logger))
			r.Put("/{id}/variants/combinations", controllers.SaveCombinations(deps.Variants, deps.Logger))
		})

		r.Post("/checkout", controllers.Checkout(deps.Checkout, deps.Products, deps.TaxRules, deps.Logger))

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.ListTransactions(deps.Transactions, deps.Logger))
			r.Get("/{id}", controllers.GetTransaction(deps.Transactions, deps.Logger))
			r.Post("/{id}/refund", controllers.RefundTransaction(deps.Transactions, deps.Logger))
			r.Post("/{id}/settle", controllers.SettleTransaction(deps.Transactions, deps.Logger))
		})

		r.Route("/gift-cards", func(r chi.Router) {
			r.Post("/", controllers.IssueGiftCard(deps.GiftCards, deps.Logger))
			r.Get("/{code}", controllers.GetGiftCard(deps.GiftCards, deps.Logger))
			r.Post("/redeem", controllers.RedeemGiftCard(deps.GiftCards, deps.Logger))
			r.Post("/{id}/deactivate", controllers.DeactivateGiftCard(deps.GiftCards, deps.Logger))
		})
	})

	return r
}
