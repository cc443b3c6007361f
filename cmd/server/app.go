package main

import (
	"net/http"
	"time"

	"github.com/diewo77/invoicing/internal/handlers"
	"github.com/sirupsen/logrus"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux     *http.ServeMux
	clients *handlers.ClientHandler
	invoice *handlers.InvoiceHandler
	health  http.HandlerFunc
	origin  string
	log     logrus.FieldLogger
}

// NewApp creates a new application with all routes configured.
func NewApp(clients *handlers.ClientHandler, invoices *handlers.InvoiceHandler, health http.HandlerFunc, corsOrigin string, log logrus.FieldLogger) *App {
	app := &App{
		mux:     http.NewServeMux(),
		clients: clients,
		invoice: invoices,
		health:  health,
		origin:  corsOrigin,
		log:     log,
	}
	app.setupRoutes()
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := withLogging(a.log, withCORS(a.origin, a.mux))
	handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	a.mux.HandleFunc("GET /healthz", a.health)

	// Clients
	ch := a.clients
	a.mux.HandleFunc("GET /api/clients", ch.List)
	a.mux.HandleFunc("GET /api/clients/search", ch.Search)
	a.mux.HandleFunc("GET /api/clients/email/{email}", ch.GetByEmail)
	a.mux.HandleFunc("GET /api/clients/{id}", ch.Get)
	a.mux.HandleFunc("POST /api/clients", ch.Create)
	a.mux.HandleFunc("PUT /api/clients/{id}", ch.Update)
	a.mux.HandleFunc("DELETE /api/clients/{id}", ch.Delete)

	// Invoices
	ih := a.invoice
	a.mux.HandleFunc("GET /api/invoices", ih.List)
	a.mux.HandleFunc("GET /api/invoices/overdue", ih.Overdue)
	a.mux.HandleFunc("GET /api/invoices/date-range", ih.ListByDateRange)
	// number/{number}, client/{id} and status/{status}
	a.mux.HandleFunc("GET /api/invoices/{kind}/{value}", ih.Lookup)
	a.mux.HandleFunc("GET /api/invoices/{id}", ih.Get)
	a.mux.HandleFunc("POST /api/invoices", ih.Create)
	a.mux.HandleFunc("PUT /api/invoices/{id}", ih.Update)
	a.mux.HandleFunc("PATCH /api/invoices/{id}/status", ih.UpdateStatus)
	a.mux.HandleFunc("DELETE /api/invoices/{id}", ih.Delete)
	a.mux.HandleFunc("GET /api/invoices/{id}/pdf", ih.PDF)
	a.mux.HandleFunc("POST /api/invoices/{id}/send-email", ih.SendEmail)
	a.mux.HandleFunc("POST /api/invoices/{id}/send-reminder", ih.SendReminder)

	a.mux.HandleFunc("GET /api/dashboard", ih.Dashboard)
}

// withCORS allows the configured SPA origin and answers preflight requests.
func withCORS(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin != "" && r.Header.Get("Origin") != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withLogging adds request logging middleware.
func withLogging(log logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}
