package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"kanban/internal/auth"
	"kanban/internal/server"
	"kanban/internal/storage/sqlite"
	"kanban/internal/util"
)

const devSigningKey = "kanban-dev-signing-key"

func main() {
	addrFlag := flag.String("addr", util.EnvOrDefault("KANBAN_ADDR", ":8080"), "HTTP listen address")
	dbFlag := flag.String("db", util.EnvOrDefault("KANBAN_DB_PATH", "data/kanban.db"), "Path to sqlite database file")
	staticFlag := flag.String("static", util.EnvOrDefault("KANBAN_STATIC_DIR", "web/dist"), "Directory with built frontend")
	issuerFlag := flag.String("jwt-issuer", util.EnvOrDefault("KANBAN_JWT_ISSUER", "kanban"), "Issuer claim of access tokens")
	audienceFlag := flag.String("jwt-audience", util.EnvOrDefault("KANBAN_JWT_AUDIENCE", "kanban-web"), "Audience claim of access tokens")
	accessTTLFlag := flag.Duration("access-ttl", util.EnvDurationOrDefault("KANBAN_ACCESS_TTL", auth.DefaultAccessTTL), "Access token lifetime")
	refreshTTLFlag := flag.Duration("refresh-ttl", util.EnvDurationOrDefault("KANBAN_REFRESH_TTL", auth.DefaultRefreshTTL), "Refresh token lifetime")
	costFlag := flag.Int("bcrypt-cost", util.EnvIntOrDefault("KANBAN_BCRYPT_COST", 0), "bcrypt cost, 0 for the library default")
	originsFlag := flag.String("cors-origins", util.EnvOrDefault("KANBAN_CORS_ORIGINS", "http://localhost:5173"), "Comma separated list of allowed browser origins")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("Kanban board server")

	signingKey := os.Getenv("KANBAN_JWT_KEY")
	if signingKey == "" {
		logger.Warn("KANBAN_JWT_KEY not set; using the development signing key")
		signingKey = devSigningKey
	}

	store, err := sqlite.Open(*dbFlag, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	authService, err := auth.New(store, auth.Config{
		SigningKey: []byte(signingKey),
		Issuer:     *issuerFlag,
		Audience:   *audienceFlag,
		AccessTTL:  *accessTTLFlag,
		RefreshTTL: *refreshTTLFlag,
		BcryptCost: *costFlag,
	}, auth.WithLogger(logger))
	if err != nil {
		logger.Error("invalid auth configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := server.New(store, authService, logger, *staticFlag)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: util.SplitList(*originsFlag),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	httpServer := &http.Server{
		Addr:         *addrFlag,
		Handler:      corsHandler.Handler(srv.Engine()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
