package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sales-ledger/internal/ai"
	"sales-ledger/internal/auth"
	"sales-ledger/internal/config"
	"sales-ledger/internal/database"
	"sales-ledger/internal/handlers"
	"sales-ledger/internal/ledger"
	"sales-ledger/internal/logging"
	"sales-ledger/internal/middleware"
	"sales-ledger/internal/notify"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}

	hub := notify.NewHub(logger.Named("events"))
	service := ledger.New(db, logger.Named("ledger"), hub)
	accounts := auth.NewAccounts(db, cfg.Auth.Secret, cfg.Auth.TokenTTL)

	var assistant handlers.Assistant
	if cfg.GeminiAPIKey != "" {
		assistant = ai.NewAgent(service, cfg.GeminiAPIKey, cfg.GeminiModel, logger.Named("ai"))
	} else {
		logger.Info("GEMINI_API_KEY not set, /api/ask is disabled")
	}
	h := handlers.New(service, accounts, hub, assistant, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http")))

	// --- CORS for the web client ---
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	h.Routes(r, accounts.Secret, cfg.AllowRegistration)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	// Event streams never finish on their own; close them first.
	hub.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
