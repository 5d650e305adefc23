/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logging:    logrus request log (method, path, status, duration, id)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontends, origins from config

ROUTE GROUPS:
  /api/contracts/*        Contracts
  /api/absence-types/*    Absence types
  /api/absence-periods/*  Absence periods
  /api/public-holidays/*  Public holidays
  /api/entitlements/*     Entitlements
  /api/leave-requests/*   Leave requests
  /api/contacts/*         Leave report
  /api/options/*          Option values
  /api/admin/*            Admin operations
  /api/scenarios/*        Sample data
  /healthz                Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", h.ListContracts)
			r.Post("/", h.CreateContract)
		})

		r.Route("/absence-types", func(r chi.Router) {
			r.Get("/", h.ListAbsenceTypes)
			r.Post("/", h.CreateAbsenceType)
			r.Get("/{id}", h.GetAbsenceType)
			r.Put("/{id}", h.UpdateAbsenceType)
		})

		r.Route("/absence-periods", func(r chi.Router) {
			r.Get("/", h.ListAbsencePeriods)
			r.Post("/", h.CreateAbsencePeriod)
		})

		r.Route("/public-holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		r.Route("/entitlements", func(r chi.Router) {
			r.Get("/", h.ListEntitlements)
			r.Post("/", h.CreateEntitlement)
		})

		r.Route("/leave-requests", func(r chi.Router) {
			r.Get("/", h.ListLeaveRequests)
			r.Post("/", h.CreateLeaveRequest)
			r.Get("/{id}", h.GetLeaveRequest)
			r.Put("/{id}", h.UpdateLeaveRequest)
			r.Post("/{id}/cancel", h.CancelLeaveRequest)
		})

		r.Get("/contacts/{id}/report", h.GetReport)
		r.Get("/options/{group}", h.ListOptions)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/public-holiday-leave", h.CreatePublicHolidayLeave)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/import/{kind}", h.ImportCSV)
		})
	})

	return r
}

// requestLogger logs one line per request once it has been served.
func requestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.WithFields(logrus.Fields{
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"duration":   time.Since(start).String(),
					"request_id": middleware.GetReqID(r.Context()),
				}).Info("http request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
