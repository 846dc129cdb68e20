// Package router wires handlers, middleware and WebSocket endpoints into
// the HTTP surface of the API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phovang-pos/api/internal/enum"
	"github.com/phovang-pos/api/internal/handler"
	"github.com/phovang-pos/api/internal/middleware"
	"github.com/phovang-pos/api/internal/ws"
)

// Deps bundles everything the router mounts.
type Deps struct {
	JWTSecret string
	Hub       *ws.Hub

	Auth      *handler.AuthHandler
	Menu      *handler.MenuHandler
	Tables    *handler.TableHandler
	Orders    *handler.OrderHandler
	Kitchen   *handler.KitchenHandler
	Users     *handler.UserHandler
	PrintJobs *handler.PrintJobHandler
	Reports   *handler.ReportHandler
	Logs      *handler.ActivityLogHandler
}

// New builds the Chi router with all routes mounted.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck
	})

	// WebSocket upgrades authenticate via a token query parameter since
	// browsers cannot set headers on the upgrade request.
	r.Get("/ws/{topic}", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWS(d.Hub, d.JWTSecret, w, req)
	})

	manager := middleware.RequireRole(enum.UserRoleManager)

	r.Route("/api", func(api chi.Router) {
		d.Auth.RegisterRoutes(api)

		api.Group(func(authed chi.Router) {
			authed.Use(middleware.Authenticate(d.JWTSecret))

			authed.Route("/menu", func(mr chi.Router) {
				d.Menu.RegisterRoutes(mr)
				mr.Group(func(g chi.Router) {
					g.Use(manager)
					d.Menu.RegisterManagerRoutes(g)
				})
			})

			authed.Route("/tables", func(tr chi.Router) {
				d.Tables.RegisterRoutes(tr)
				tr.Group(func(g chi.Router) {
					g.Use(manager)
					d.Tables.RegisterManagerRoutes(g)
				})
			})

			authed.Route("/orders", d.Orders.RegisterRoutes)
			authed.Route("/kitchen", d.Kitchen.RegisterRoutes)
			authed.Route("/print-jobs", d.PrintJobs.RegisterRoutes)

			authed.Group(func(g chi.Router) {
				g.Use(manager)
				g.Route("/users", d.Users.RegisterRoutes)
				g.Route("/reports", d.Reports.RegisterRoutes)
				g.Route("/logs", d.Logs.RegisterRoutes)
			})
		})
	})

	return r
}
