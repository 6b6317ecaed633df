package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/panelcraft/panelcraft-backend/api/controllers"
	"github.com/panelcraft/panelcraft-backend/api/middleware"
	"github.com/panelcraft/panelcraft-backend/internal/billing"
	"github.com/panelcraft/panelcraft-backend/internal/catalog"
	"github.com/panelcraft/panelcraft-backend/internal/inventory"
	"github.com/panelcraft/panelcraft-backend/internal/orders"
	"github.com/panelcraft/panelcraft-backend/internal/quotes"
	"github.com/panelcraft/panelcraft-backend/internal/users"
	"github.com/panelcraft/panelcraft-backend/pkg/config"
	"github.com/panelcraft/panelcraft-backend/pkg/db"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	"github.com/panelcraft/panelcraft-backend/pkg/logger"
	"github.com/panelcraft/panelcraft-backend/pkg/metrics"
	"github.com/panelcraft/panelcraft-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Metrics  *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer

	Users     users.Service
	Catalog   catalog.Service
	Orders    orders.Service
	Inventory inventory.Service
	Billing   billing.Service
	Quotes    quotes.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	staff := []string{
		string(enums.UserRoleCommercial),
		string(enums.UserRoleDeliveryAgent),
		string(enums.UserRoleWarehouseManager),
		string(enums.UserRoleBillingManager),
		string(enums.UserRoleAdmin),
	}
	warehouse := []string{string(enums.UserRoleWarehouseManager), string(enums.UserRoleAdmin)}
	billingRoles := []string{string(enums.UserRoleBillingManager), string(enums.UserRoleAdmin)}
	commercial := []string{string(enums.UserRoleCommercial), string(enums.UserRoleAdmin)}
	delivery := []string{string(enums.UserRoleDeliveryAgent), string(enums.UserRoleCommercial), string(enums.UserRoleAdmin)}
	admin := []string{string(enums.UserRoleAdmin)}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.Login(deps.Users, logg))
		r.With(middleware.Idempotency(deps.Redis, logg)).Post("/register", controllers.Register(deps.Users, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.Idempotency(deps.Redis, logg),
		)

		r.Get("/me", controllers.Me(deps.Users, logg))

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, admin...))
			r.Get("/", controllers.ListUsers(deps.Users, logg))
			r.Get("/{id}", controllers.GetUser(deps.Users, logg))
			r.Patch("/{id}", controllers.UpdateUser(deps.Users, logg))
			r.Post("/{id}/deactivate", controllers.DeactivateUser(deps.Users, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.ListCategories(deps.Catalog, logg))
			r.With(middleware.RequireAnyRole(logg, admin...)).Post("/", controllers.CreateCategory(deps.Catalog, logg))
			r.With(middleware.RequireAnyRole(logg, admin...)).Patch("/{id}", controllers.UpdateCategory(deps.Catalog, logg))
			r.With(middleware.RequireAnyRole(logg, admin...)).Delete("/{id}", controllers.DeleteCategory(deps.Catalog, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Catalog, logg))
			r.Get("/{id}", controllers.GetProduct(deps.Catalog, logg))
			r.With(middleware.RequireAnyRole(logg, warehouse...)).Post("/", controllers.CreateProduct(deps.Catalog, logg))
			r.With(middleware.RequireAnyRole(logg, warehouse...)).Patch("/{id}", controllers.UpdateProduct(deps.Catalog, logg))
			r.With(middleware.RequireAnyRole(logg, admin...)).Delete("/{id}", controllers.DeleteProduct(deps.Catalog, logg))
			r.Get("/{id}/reviews", controllers.ListProductReviews(deps.Catalog, logg))
			r.Post("/{id}/reviews", controllers.AddProductReview(deps.Catalog, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(deps.Orders, logg))
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.Get("/{id}", controllers.GetOrder(deps.Orders, logg))
			r.With(middleware.RequireAnyRole(logg, staff...)).Post("/{id}/transition", controllers.TransitionOrder(deps.Orders, logg))
			r.With(middleware.RequireAnyRole(logg, delivery...)).Post("/{id}/mark-delivered", controllers.MarkOrderDelivered(deps.Orders, logg))
			r.With(middleware.RequireAnyRole(logg, delivery...)).Post("/{id}/delivery-updates", controllers.AddDeliveryUpdate(deps.Orders, logg))
			r.Get("/{id}/delivery-updates", controllers.ListDeliveryUpdates(deps.Orders, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, warehouse...))
			r.Post("/movements", controllers.RecordStockMovement(deps.Inventory, logg))
			r.Get("/movements", controllers.ListStockMovements(deps.Inventory, logg))
			r.Get("/low-stock", controllers.LowStockProducts(deps.Inventory, logg))
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, warehouse...))
			r.Post("/", controllers.CreateSupplier(deps.Inventory, logg))
			r.Get("/", controllers.ListSuppliers(deps.Inventory, logg))
			r.Get("/{id}", controllers.GetSupplier(deps.Inventory, logg))
			r.Patch("/{id}", controllers.UpdateSupplier(deps.Inventory, logg))
		})

		r.Route("/purchase-orders", func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, warehouse...))
			r.Post("/", controllers.CreatePurchaseOrder(deps.Inventory, logg))
			r.Get("/", controllers.ListPurchaseOrders(deps.Inventory, logg))
			r.Get("/{id}", controllers.GetPurchaseOrder(deps.Inventory, logg))
			r.Post("/{id}/transition", controllers.TransitionPurchaseOrder(deps.Inventory, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, billingRoles...))
			r.Get("/", controllers.ListInvoices(deps.Billing, logg))
			r.Get("/{id}", controllers.GetInvoice(deps.Billing, logg))
			r.Post("/mark-overdue", controllers.MarkOverdueInvoices(deps.Billing, logg))
			r.Post("/{id}/payments", controllers.RecordPayment(deps.Billing, logg))
			r.Get("/{id}/payments", controllers.ListPayments(deps.Billing, logg))
			r.Post("/{id}/credit-notes", controllers.IssueCreditNote(deps.Billing, logg))
			r.Get("/{id}/credit-notes", controllers.ListCreditNotes(deps.Billing, logg))
		})

		r.Route("/quotes", func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, commercial...))
			r.Post("/", controllers.CreateQuote(deps.Quotes, logg))
			r.Get("/", controllers.ListQuotes(deps.Quotes, logg))
			r.Get("/{id}", controllers.GetQuote(deps.Quotes, logg))
			r.Patch("/{id}", controllers.UpdateQuote(deps.Quotes, logg))
			r.Post("/{id}/transition", controllers.TransitionQuote(deps.Quotes, logg))
			r.Post("/{id}/convert", controllers.ConvertQuote(deps.Quotes, logg))
			r.Post("/expire", controllers.ExpireQuotes(deps.Quotes, logg))
		})
	})

	return r
}
