// Package gateway serves the storefront views as JSON endpoints for a local
// front end.
package gateway

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/storefront"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	HTTPPort           string
	AllowedOrigin      string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

func NewRouter(app *storefront.App, cfg Config) http.Handler {
	catalog := NewCatalogHandler(app.API, cfg.RequestTimeout)
	cartHandler := NewCartHandler(app, cfg.RequestTimeout)
	auth := NewAuthHandler(app, cfg.RequestTimeout)
	account := NewAccountHandler(app, cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(redirectSlotMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/products", catalog.ListProducts)
	r.Post("/products/search", catalog.Search)
	r.Get("/products/{id}", catalog.GetProduct)
	r.Get("/categories", catalog.ListCategories)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)
		r.Post("/items", cartHandler.AddItem)
		r.Put("/items/{id}", cartHandler.UpdateQuantity)
		r.Delete("/items/{id}", cartHandler.RemoveItem)
	})

	r.Post("/login", auth.Login)
	r.Post("/register", auth.Register)
	r.Post("/logout", auth.Logout)
	r.Get("/me", auth.Me)

	r.Group(func(r chi.Router) {
		r.Use(GuardMiddleware(app.Guard))
		r.Get("/profile", account.GetProfile)
		r.Put("/profile", account.UpdateProfile)
		r.Get("/checkout", account.Summary)
		r.Post("/checkout", account.PlaceOrder)
	})

	return otelhttp.NewHandler(r, "storefront-gateway")
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, app *storefront.App, cfg Config) error {
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      NewRouter(app, cfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("storefront gateway starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Println("server exited")
	return nil
}
