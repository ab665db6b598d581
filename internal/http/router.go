package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/go_pickup/internal/catalog"
)

type RouterConfig struct {
	Orders         OrderService
	Drafts         DraftService
	Catalog        catalog.Catalog
	RequestTimeout time.Duration
	ServiceName    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	orders := NewOrdersHandler(cfg.Orders, cfg.RequestTimeout)
	drafts := NewDraftsHandler(cfg.Drafts, cfg.RequestTimeout)
	products := NewCatalogHandler(cfg.Catalog, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout * 2))
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(CustomerIDMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog/products", func(r chi.Router) {
			r.Get("/", products.ListProducts)
			r.Get("/{product_id}", products.GetProduct)
		})
		r.Route("/drafts", func(r chi.Router) {
			r.Get("/", drafts.GetDraft)
			r.Delete("/", drafts.Discard)
			r.Put("/items", drafts.AddItem)
			r.Post("/checkout", drafts.Checkout)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orders.CreateOrder)
			r.Get("/", orders.ListOrders)
			r.Get("/{order_id}", orders.GetOrder)
			r.Get("/{order_id}/qr", orders.QRCode)
			r.Post("/{order_id}/cancel", orders.CancelOrder)
		})
		r.Post("/verify", orders.Verify)
	})

	name := cfg.ServiceName
	if name == "" {
		name = "pickup-service"
	}
	return otelhttp.NewHandler(r, name)
}
