/*
Package main is the entry point for the Echo chat server.

It is responsible for loading configuration, initializing the global logging system,
opening the message store, setting up the HTTP server, starting the WebSocket Hub,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"echochat/internal/app/chat"
	"echochat/internal/app/db"
	"echochat/internal/app/kv"
	"echochat/internal/app/presence"
	"echochat/internal/app/relay"
	"echochat/internal/app/store"
	"echochat/internal/configs"
	"echochat/internal/handler"
	"echochat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("store_driver", cfg.StoreDriver).
		Bool("strict_join", cfg.StrictJoin).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open message store", "driver", cfg.StoreDriver)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logx.Error(err, "Failed to close message store")
		}
	}()

	// The registry lives as long as the process; relay and hub share it.
	registry := presence.NewRegistry()
	rl := relay.New(st, registry)
	hub := chat.NewHub(registry, rl)

	deps := &handler.AppDeps{
		Config: cfg,
		Store:  st,
		Hub:    hub,
		Relay:  rl,
	}

	router := handler.Router(deps)
	defer deps.AuthLimiter.Stop()

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info("Echo Chat Server starting", "addr", "http://localhost"+serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}

// openStore opens the backend selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *configs.AppConfig) (store.Store, error) {
	switch cfg.StoreDriver {
	case configs.StoreDriverBadger:
		logx.Info("Opening Badger store", "path", cfg.BadgerPath)
		kvStore, err := kv.Open(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		return kvStore, nil

	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return db.NewStore(pool), nil
	}
}
