// Package api exposes the HTTP surface: the region CRUD endpoints used by
// the map front-end, the Strava OAuth flow, and the webhook entry point.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aceriverson/titlesv2/pkg/errs"
	"github.com/aceriverson/titlesv2/pkg/model"
	"github.com/aceriverson/titlesv2/pkg/strava"
	"github.com/aceriverson/titlesv2/pkg/webhook"
)

// RegionStore is the slice of the region repository the handlers use.
type RegionStore interface {
	Insert(ctx context.Context, owner int64, name, puid, ringWKT string) error
	Delete(ctx context.Context, owner int64, puid string) error
	UpdateGeometry(ctx context.Context, owner int64, puid, ringWKT string) error
	ListByOwner(ctx context.Context, owner int64) ([]model.Region, error)
	ListAllOwners(ctx context.Context) ([]model.Region, error)
}

// UserStore persists credentials and the captioning opt-in.
type UserStore interface {
	Upsert(ctx context.Context, c *model.Credential) error
	SetAIEnabled(ctx context.Context, owner int64, enabled bool) error
	GetCredential(ctx context.Context, owner int64) (*model.Credential, error)
}

// OAuthExchanger is the part of the Strava client the auth flow needs.
type OAuthExchanger interface {
	AuthCodeURL() string
	ExchangeCode(ctx context.Context, code string) (*strava.TokenResponse, error)
}

// EventHandler receives verified webhook traffic.
type EventHandler interface {
	VerifyChallenge(verifyToken, challenge string) (string, bool)
	HandleEvent(ctx context.Context, event *model.WebhookEvent) webhook.State
}

// Server wires the HTTP routes to their collaborators.
type Server struct {
	regions      RegionStore
	users        UserStore
	oauth        OAuthExchanger
	events       EventHandler
	sessions     *Sessions
	adminOwnerID int64
	postLoginURL string
	logger       *slog.Logger
}

// NewServer constructs the HTTP server. postLoginURL is where the browser is
// sent after login, logout and the OAuth exchange.
func NewServer(
	regions RegionStore,
	users UserStore,
	oauth OAuthExchanger,
	events EventHandler,
	sessions *Sessions,
	adminOwnerID int64,
	postLoginURL string,
	logger *slog.Logger,
) *Server {
	return &Server{
		regions:      regions,
		users:        users,
		oauth:        oauth,
		events:       events,
		sessions:     sessions,
		adminOwnerID: adminOwnerID,
		postLoginURL: postLoginURL,
		logger:       logger,
	}
}

// Router assembles the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	r.Use(s.sessions.withSession)

	r.Route("/api/v2", func(r chi.Router) {
		r.Post("/create", requireSession(s.handleCreate))
		r.Post("/delete", requireSession(s.handleDelete))
		r.Post("/edit", requireSession(s.handleEdit))
		r.Post("/ai", requireSession(s.handleSetAI))
		r.Get("/polygons", requireSession(s.handlePolygons))
		r.Get("/user", s.handleUser)
	})

	r.Get("/auth/login", s.handleLogin)
	r.Get("/auth/exchange_token", s.handleExchangeToken)
	r.Get("/auth/logout", s.handleLogout)
	r.Get("/auth/webhook", s.handleWebhookVerify)
	r.Post("/auth/webhook", s.handleWebhookEvent)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) isAdmin(owner int64) bool {
	return s.adminOwnerID != 0 && owner == s.adminOwnerID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps sentinel errors onto coarse status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrAuthRequired):
		http.Error(w, "authentication required", http.StatusUnauthorized)
	case errors.Is(err, errs.ErrEmptyGeometry), errors.Is(err, errs.ErrDecode):
		http.Error(w, "bad geometry", http.StatusBadRequest)
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrNoCredential):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, errs.ErrAlreadyExists):
		http.Error(w, "already exists", http.StatusConflict)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
