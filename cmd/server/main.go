package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	appauth "github.com/hearthcal/hearthcal/internal/auth"
	"github.com/hearthcal/hearthcal/internal/config"
	"github.com/hearthcal/hearthcal/internal/google"
	httpserver "github.com/hearthcal/hearthcal/internal/http"
	"github.com/hearthcal/hearthcal/internal/store"
	"github.com/hearthcal/hearthcal/internal/ui"
)

func main() {
	log.Println("Starting HearthCal server...")

	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	stor := store.New(pool)
	sessionManager := appauth.NewSessionManager(cfg)
	authService := appauth.NewService(cfg, sessionManager)

	tokens := google.NewTokenManager(cfg.Google, stor.Credentials)
	fetcher := google.NewEventFetcher(cfg.Google, tokens)

	uiHandler := ui.NewHandler(cfg, authService, sessionManager, tokens, fetcher)
	r := httpserver.NewRouter(cfg, stor, authService, uiHandler)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
