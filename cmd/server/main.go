// Command server runs the chat API as a plain HTTP server for local use.
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

	"scooby-agent/handler"
	"scooby-agent/internal/app"
	"scooby-agent/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx := context.Background()
	application, err := app.Build(ctx, cfg, app.Deps{Tokens: app.EnvTokens})
	if err != nil {
		slog.Error("failed to build chat service", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewHandler(application.Chat)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		closeApp(application)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.Router(handler.RouterOptions{JWTSecret: cfg.JWTSecret, CORSOrigins: cfg.CORSOrigins}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("starting server", "addr", srv.Addr, "store", cfg.StoreBackend, "llm", cfg.LLMProvider)
	err = serve(srv, quit, 30*time.Second)
	closeApp(application)
	if err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// serve runs srv until it fails or a signal arrives on quit, then shuts it
// down within grace. Listener failures are returned to the caller.
func serve(srv *http.Server, quit <-chan os.Signal, grace time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "err", err)
	}
	return nil
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		slog.Warn("close failed", "err", err)
	}
}
