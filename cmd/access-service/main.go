package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carelink/platform/pkg/access"
	"github.com/carelink/platform/pkg/audit"
	"github.com/carelink/platform/pkg/common/config"
	"github.com/carelink/platform/pkg/common/database"
	"github.com/carelink/platform/pkg/common/kafka"
	"github.com/carelink/platform/pkg/common/logger"
	"github.com/carelink/platform/pkg/common/middleware"
	"github.com/carelink/platform/pkg/consent"
	"github.com/carelink/platform/pkg/emergency"
	"github.com/carelink/platform/pkg/identity"
	"github.com/carelink/platform/pkg/observability/metrics"
	"github.com/carelink/platform/pkg/patients"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init("access-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Postgres")
	}

	auditRepo := audit.NewRepository(db)
	consentRepo := consent.NewRepository(db)
	overrideRepo := emergency.NewRepository(db)
	registry := patients.NewRegistry(db)

	for name, migrate := range map[string]func() error{
		"audit":    auditRepo.AutoMigrate,
		"consent":  consentRepo.AutoMigrate,
		"override": overrideRepo.AutoMigrate,
		"patients": registry.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			logger.Log.WithError(err).WithField("schema", name).Fatal("Migration failed")
		}
	}

	var auditStream audit.Stream
	if cfg.AuditStreamOn {
		producer := kafka.NewProducer(cfg.AuditTopic)
		defer producer.Close()
		auditStream = producer
	}
	recorder := audit.NewRecorder(auditRepo, auditStream)

	consentService := consent.NewService(consentRepo, recorder)
	overrideService := emergency.NewService(overrideRepo, recorder, cfg.EmergencyAccessDuration)
	gate := access.NewGate(consentService, overrideService, recorder)

	oidcAuth, err := identity.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
	if err != nil {
		logger.Log.WithError(err).Fatal("OIDC authentication not configured")
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods("GET")
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(r.Context()) != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods("GET")
	router.HandleFunc("/metrics", metrics.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(identity.Authenticate(oidcAuth))
	consent.NewHTTPHandler(consentService).Register(apiRouter)
	emergency.NewHTTPHandler(overrideService, registry).Register(apiRouter)
	access.NewHTTPHandler(gate).Register(apiRouter)
	audit.NewHTTPHandler(auditRepo).Register(apiRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Access service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down access service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Error("Failed to close Postgres")
	}

	logger.Log.Info("Access service stopped")
}
