package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cbgift/api/internal/config"
	"github.com/cbgift/api/internal/database"
	"github.com/cbgift/api/internal/handler"
	mw "github.com/cbgift/api/internal/middleware"
	"github.com/cbgift/api/internal/service"
	"github.com/cbgift/api/internal/storage"
	"github.com/cbgift/api/internal/validation"
	"github.com/cbgift/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Role middleware fences each workspace: /api/designer, /api/seller and
// /api/manager only admit tokens carrying the matching role.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, files storage.FileStorage) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",         // SvelteKit dev server
			"https://app.cbgift.store",      // Production workspace
			"https://stg-app.cbgift.store",  // Staging workspace
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/users/{uid}/notifications", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services shared across role workspaces
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	designService := service.NewDesignService(queries, hub)

	r.Route("/api", func(r chi.Router) {
		// Auth routes (public)
		authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
		authHandler.RegisterRoutes(r)

		r.Route("/designer", func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole("DESIGNER"))
			designerHandler := handler.NewDesignerHandler(designService, files)
			designerHandler.RegisterRoutes(r)
		})

		r.Route("/seller", func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole("SELLER"))
			sellerHandler := handler.NewSellerHandler(orderService, designService, queries, validation.New())
			sellerHandler.RegisterRoutes(r)
		})

		r.Route("/manager", func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole("MANAGER"))
			managerHandler := handler.NewManagerHandler(designService, queries)
			managerHandler.RegisterRoutes(r)
		})
	})

	return r
}
