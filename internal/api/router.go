// Package api exposes the game over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mcoot/makeitmeme/internal/api/handler"
	"github.com/mcoot/makeitmeme/internal/api/middleware"
	"github.com/mcoot/makeitmeme/internal/content"
	"github.com/mcoot/makeitmeme/internal/realtime"
	"github.com/mcoot/makeitmeme/internal/services/auth"
	"github.com/mcoot/makeitmeme/internal/services/session"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger            *slog.Logger
	AuthService       *auth.Service
	SessionController *session.Controller
	TemplatePool      *content.Pool
	Realtime          *realtime.Manager
	WSServer          *realtime.WSServer
	PublicURL         string   // base of QR join links
	CORSOrigins       []string // empty allows any origin
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.AuthService)
	sessionHandler := handler.NewSessionHandler(cfg.SessionController, cfg.PublicURL)
	roundHandler := handler.NewRoundHandler(cfg.SessionController)
	eventsHandler := handler.NewEventsHandler(cfg.SessionController, cfg.Realtime, cfg.WSServer)
	templateHandler := handler.NewTemplateHandler(cfg.TemplatePool)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	adminMiddleware := middleware.RequireAdmin(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Player routes (no auth required for creating players/logging in)
	api.HandleFunc("/players", playerHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/players/register", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/players/login", playerHandler.Login).Methods(http.MethodPost)

	// Protected player routes
	playerProtected := api.PathPrefix("/players").Subrouter()
	playerProtected.Use(authMiddleware)
	playerProtected.HandleFunc("/me", playerHandler.GetMe).Methods(http.MethodGet)
	playerProtected.HandleFunc("/logout", playerHandler.Logout).Methods(http.MethodPost)

	// QR join links are shared before anyone has an account
	api.HandleFunc("/sessions/{code}/qr", sessionHandler.QR).Methods(http.MethodGet)

	// Session routes (all require auth)
	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.Use(authMiddleware)
	sessions.HandleFunc("", sessionHandler.Create).Methods(http.MethodPost)
	sessions.HandleFunc("/{code}", sessionHandler.Get).Methods(http.MethodGet)
	sessions.HandleFunc("/{code}/status", sessionHandler.Status).Methods(http.MethodGet)
	sessions.HandleFunc("/{code}/join", sessionHandler.Join).Methods(http.MethodPost)
	sessions.HandleFunc("/{code}/leave", sessionHandler.Leave).Methods(http.MethodPost)
	sessions.HandleFunc("/{code}/start", sessionHandler.Start).Methods(http.MethodPost)
	sessions.HandleFunc("/{code}/advance", sessionHandler.Advance).Methods(http.MethodPost)
	sessions.HandleFunc("/{code}/archive", sessionHandler.Archive).Methods(http.MethodPost)

	// Round routes
	sessions.HandleFunc("/{code}/submissions", roundHandler.Submissions).Methods(http.MethodGet)
	sessions.HandleFunc("/{code}/submissions/{id}", roundHandler.Submit).Methods(http.MethodPut)
	sessions.HandleFunc("/{code}/rounds/{round}/entries", roundHandler.Entries).Methods(http.MethodGet)
	sessions.HandleFunc("/{code}/votes", roundHandler.Vote).Methods(http.MethodPost)
	sessions.HandleFunc("/{code}/podium", roundHandler.Podium).Methods(http.MethodGet)

	// Event streams
	sessions.HandleFunc("/{code}/events", eventsHandler.SSE).Methods(http.MethodGet)
	sessions.HandleFunc("/{code}/ws", eventsHandler.WebSocket).Methods(http.MethodGet)

	// Templates
	templates := api.PathPrefix("/templates").Subrouter()
	templates.Use(authMiddleware)
	templates.HandleFunc("", templateHandler.List).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authMiddleware)
	admin.Use(adminMiddleware)
	admin.HandleFunc("/templates/refresh", templateHandler.Refresh).Methods(http.MethodPost)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return newCORS(cfg.CORSOrigins).Handler(r)
}

func newCORS(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
