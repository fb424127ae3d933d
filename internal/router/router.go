package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tabletab/api/internal/config"
	"github.com/tabletab/api/internal/database"
	"github.com/tabletab/api/internal/enum"
	"github.com/tabletab/api/internal/handler"
	mw "github.com/tabletab/api/internal/middleware"
	"github.com/tabletab/api/internal/service"
	"github.com/tabletab/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, // floor app dev server
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/kitchen/{sid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services share one store factory: the same Queries type works against
	// the pool or an open transaction.
	newBillingStore := func(db database.DBTX) service.BillingStore {
		return database.New(db)
	}
	newKitchenStore := func(db database.DBTX) service.KitchenStore {
		return database.New(db)
	}
	billingService := service.NewBillingService(pool, newBillingStore, hub)
	kitchenService := service.NewKitchenService(pool, newKitchenStore, hub)

	orderHandler := handler.NewOrderHandler(billingService, queries)
	orderItemHandler := handler.NewOrderItemHandler(billingService, kitchenService, queries)
	billHandler := handler.NewBillHandler(billingService, queries)
	tableHandler := handler.NewTableHandler(queries)
	menuHandler := handler.NewMenuHandler(queries)
	kitchenHandler := handler.NewKitchenHandler(queries)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/orders", func(r chi.Router) {
			orderHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleManager))
				orderHandler.RegisterManagerRoutes(r)
			})
		})

		r.Route("/order-items", func(r chi.Router) {
			orderItemHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleKitchen, enum.UserRoleManager))
				orderItemHandler.RegisterKitchenRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleManager))
				orderItemHandler.RegisterManagerRoutes(r)
			})
		})

		r.Route("/bills", func(r chi.Router) {
			billHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleManager))
				billHandler.RegisterManagerRoutes(r)
			})
		})

		r.Route("/tables", func(r chi.Router) {
			tableHandler.RegisterRoutes(r)
			r.Get("/{id}/bill", billHandler.GetByTable)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleManager))
				tableHandler.RegisterManagerRoutes(r)
			})
		})

		r.Route("/menu", func(r chi.Router) {
			menuHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleManager))
				menuHandler.RegisterManagerRoutes(r)
			})
		})

		r.Route("/kitchen-sections", func(r chi.Router) {
			kitchenHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleManager))
				kitchenHandler.RegisterManagerRoutes(r)
			})
		})
	})

	return r
}
