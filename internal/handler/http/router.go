package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront-sync/internal/session"
	"github.com/utafrali/storefront-sync/internal/workspace"
	"github.com/utafrali/storefront-sync/pkg/health"
	"github.com/utafrali/storefront-sync/pkg/middleware"
)

const serviceName = "storefront-sync"

// RouterDeps holds what NewRouter wires together. RateLimiter may be nil.
type RouterDeps struct {
	Registry     *workspace.Registry
	Resolver     *session.Resolver
	Issuer       *session.Issuer
	Guard        session.Guard[http.Handler]
	Health       *health.Handler
	RateLimiter  *middleware.RateLimiter
	CORSOrigins  []string
	CookieSecure bool
	Logger       *slog.Logger
}

// NewRouter creates a chi router with all storefront sync routes registered.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger, "/health", "/metrics"))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(deps.CORSOrigins)))
	r.Use(session.Middleware(deps.Resolver))
	r.Use(middleware.RequestLogger(logger, session.Key))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Handler)
	}

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	sessionHandler := NewSessionHandler(deps.Registry, deps.Issuer, deps.CookieSecure, logger)
	accountHandler := NewAccountHandler(logger)
	cartHandler := NewCartHandler(logger)
	wishlistHandler := NewWishlistHandler(logger)
	syncHandler := NewSyncHandler(deps.Registry, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)

		r.Get(deps.Guard.SignInPath, sessionHandler.SignIn)
		r.Post("/session/guest", sessionHandler.Guest)
		r.Post("/logout", sessionHandler.SignOut)
	})

	// Guarded views
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(session.RequireSignIn(deps.Guard))
		r.Use(ForwardBearer)
		r.Use(WithWorkspace(deps.Registry))

		r.Get("/account", accountHandler.Account)
		r.Get("/account/wishlist", accountHandler.Wishlist)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)
		r.Use(ForwardBearer)

		// Guests keep a cart.
		r.Group(func(r chi.Router) {
			r.Use(session.RequireSession)
			r.Use(WithWorkspace(deps.Registry))

			r.Get("/cart", cartHandler.GetCart)
			r.Get("/cart/flash", cartHandler.GetFlash)
		})

		r.Group(func(r chi.Router) {
			r.Use(session.RequireSignInAPI(deps.Guard))
			r.Use(WithWorkspace(deps.Registry))

			r.Get("/wishlist", wishlistHandler.GetWishlist)
			r.Post("/wishlist/items", wishlistHandler.AddItem)
			r.Put("/wishlist/items/{itemId}", wishlistHandler.UpdateQuantity)
			r.Delete("/wishlist/items/{itemId}", wishlistHandler.RemoveItem)
			r.Post("/wishlist/items/{itemId}/move", wishlistHandler.MoveItemToCart)
			r.Post("/wishlist/move", wishlistHandler.MoveListToCart)

			r.Get("/sync/status", syncHandler.Status)
			r.Delete("/sync/cache", syncHandler.ResetCache)
		})
	})

	return r
}
