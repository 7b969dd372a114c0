// Command titles runs the activity renaming service: the region API, the
// Strava OAuth flow and the webhook pipeline, all in one process.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aceriverson/titlesv2/pkg/api"
	"github.com/aceriverson/titlesv2/pkg/auth"
	"github.com/aceriverson/titlesv2/pkg/bootstrap"
	"github.com/aceriverson/titlesv2/pkg/matcher"
	"github.com/aceriverson/titlesv2/pkg/observability"
	"github.com/aceriverson/titlesv2/pkg/storage/postgres"
	"github.com/aceriverson/titlesv2/pkg/strava"
	"github.com/aceriverson/titlesv2/pkg/titler"
	"github.com/aceriverson/titlesv2/pkg/titler/staticmap"
	"github.com/aceriverson/titlesv2/pkg/webhook"
)

const connectedUsersInterval = 5 * time.Minute

func main() {
	cfg := bootstrap.LoadConfig()
	logger := bootstrap.NewLogger("titles")

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := bootstrap.InitSentry(cfg, logger); err != nil {
		logger.Error("sentry init failed", "error", err)
		os.Exit(1)
	}
	defer bootstrap.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	regions := postgres.NewRegionRepo(db)
	users := postgres.NewUserRepo(db)

	stravaClient := strava.NewClient(cfg.StravaClientID, cfg.StravaClientSecret, cfg.OAuthRedirectURL)
	credentials := auth.NewManager(users, stravaClient, logger)
	match := matcher.New(regions, cfg.AdminOwnerID, logger)
	composer := titler.NewComposer(staticmap.New(), titler.NewGeminiCaptioner(cfg.GeminiAPIKey))

	dispatcher := webhook.NewDispatcher(
		credentials,
		stravaClient,
		match,
		composer,
		users,
		cfg.WebhookSubscriptionID,
		cfg.WebhookVerifyToken,
		logger,
	)

	sessions := api.NewSessions(cfg.SessionSecret)
	server := api.NewServer(regions, users, stravaClient, dispatcher, sessions,
		cfg.AdminOwnerID, "/titles", logger)

	go trackConnectedUsers(ctx, users, logger)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// trackConnectedUsers refreshes the connected-athletes gauge on an interval.
func trackConnectedUsers(ctx context.Context, users *postgres.UserRepo, logger *slog.Logger) {
	ticker := time.NewTicker(connectedUsersInterval)
	defer ticker.Stop()
	for {
		n, err := users.Count(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("connected users count failed", "error", err)
		} else {
			observability.SetConnectedUsers(n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
