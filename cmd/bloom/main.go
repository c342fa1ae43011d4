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

	"github.com/dukerupert/bloom/internal/assistant"
	"github.com/dukerupert/bloom/internal/calendar"
	"github.com/dukerupert/bloom/internal/config"
	"github.com/dukerupert/bloom/internal/database"
	"github.com/dukerupert/bloom/internal/email"
	"github.com/dukerupert/bloom/internal/logging"
	"github.com/dukerupert/bloom/internal/places"
	"github.com/dukerupert/bloom/internal/server"
	"github.com/dukerupert/bloom/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	placesClient := places.NewClient(places.Config{Token: cfg.MapboxToken})
	svc := server.Services{
		Places: placesClient,
		Email:  email.NewClient(cfg.PostmarkToken, cfg.PostmarkFrom, cfg.BaseURL),
	}

	var generator assistant.Generator
	if cfg.GeminiAPIKey != "" {
		g, err := assistant.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("gemini unavailable, using offline assistant", "error", err)
		} else {
			generator = g
		}
	}
	svc.Assistant = assistant.New(generator, logger.With("component", "assistant"), assistant.WithRateLimit(cfg.ChatRPS, 1))

	if cfg.CalDAV.Configured() {
		mirror, err := calendar.NewMirror(calendar.MirrorConfig{
			URL:      cfg.CalDAV.URL,
			Username: cfg.CalDAV.Username,
			Password: cfg.CalDAV.Password,
			Calendar: cfg.CalDAV.Calendar,
		}, cfg.Timezone, nil)
		if err != nil {
			logger.Warn("caldav mirror disabled", "error", err)
		} else {
			svc.Mirror = mirror
		}
	}

	srv, err := server.New(db, cfg, svc, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	if err := srv.ReminderScheduler().Start(ctx); err != nil {
		logger.Error("failed to start reminders", "error", err)
		os.Exit(1)
	}

	go cleanupLoop(ctx, srv, placesClient, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("bloom running", "addr", "http://localhost:"+cfg.Port, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	srv.ReminderScheduler().Stop()
}

// cleanupLoop hourly purges expired sessions along with the in-memory state
// that outlives them.
func cleanupLoop(ctx context.Context, srv *server.Server, placesClient *places.Client, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := srv.SessionStore().DeleteExpired()
			if err != nil {
				logger.Error("purge sessions", "error", err)
			} else if n > 0 {
				logger.Info("purged expired sessions", "count", n)
			}
			srv.RateLimiter().Cleanup()
			if n := srv.Views().Prune(store.SessionTTL); n > 0 {
				logger.Debug("pruned page views", "count", n)
			}
			if n := placesClient.Prune(); n > 0 {
				logger.Debug("pruned places cache", "count", n)
			}
		}
	}
}
