// Package router wires the HTTP surface: the public WhatsApp webhook, health
// and metrics endpoints, and the JWT-guarded admin dashboard.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nycadventuretours/whatsapp-concierge/internal/http/handlers"
	httpmiddleware "github.com/nycadventuretours/whatsapp-concierge/internal/http/middleware"
	"github.com/nycadventuretours/whatsapp-concierge/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Webhook            *handlers.WhatsAppWebhookHandler
	Admin              *handlers.AdminHandler
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Webhook != nil {
			public.Route("/api/whatsapp", func(r chi.Router) {
				r.Get("/webhook", cfg.Webhook.Verify)
				r.Post("/webhook", cfg.Webhook.Receive)
			})
		}
	})

	if cfg.Admin != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/responses", cfg.Admin.ListResponses)
			admin.Get("/stats", cfg.Admin.GetStats)
			admin.Get("/contacts", cfg.Admin.ListContacts)
			admin.Get("/contacts/{id}/messages", cfg.Admin.ContactMessages)
		})
	}

	return r
}
