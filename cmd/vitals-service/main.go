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
	"github.com/carelink/platform/pkg/alerts"
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
	"github.com/carelink/platform/pkg/profile"
	"github.com/carelink/platform/pkg/vitals"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init("vitals-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Postgres")
	}

	auditRepo := audit.NewRepository(db)
	vitalRepo := vitals.NewRepository(db)
	alertRepo := alerts.NewRepository(db)
	consentRepo := consent.NewRepository(db)
	overrideRepo := emergency.NewRepository(db)
	registry := patients.NewRegistry(db)

	for name, migrate := range map[string]func() error{
		"audit":    auditRepo.AutoMigrate,
		"vitals":   vitalRepo.AutoMigrate,
		"alerts":   alertRepo.AutoMigrate,
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

	var alertEvents alerts.Publisher
	if cfg.AlertEventsOn {
		producer := kafka.NewProducer(cfg.AlertTopic)
		defer producer.Close()
		alertEvents = producer
	}

	rules := alerts.DefaultRules()
	if cfg.AlertRulesPath != "" {
		rules, err = alerts.LoadRules(cfg.AlertRulesPath)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to load alert rules")
		}
	}
	engine, err := alerts.NewEngine(rules)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid alert rules")
	}
	alertService := alerts.NewService(engine, alertRepo, recorder, alertEvents)

	dedup := vitals.NewDetector(database.GetRedis(), cfg.DedupReservationTTL)
	vitalService := vitals.NewService(vitals.NewValidator(), vitalRepo, dedup, alertService, recorder, registry, cfg.BatchMaxItems)

	consentService := consent.NewService(consentRepo, recorder)
	overrideService := emergency.NewService(overrideRepo, recorder, cfg.EmergencyAccessDuration)
	gate := access.NewGate(consentService, overrideService, recorder)

	profileService := profile.NewService(vitalRepo, alertService)

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
	vitals.NewHTTPHandler(vitalService, gate).Register(apiRouter)
	alerts.NewHTTPHandler(alertService, gate).Register(apiRouter)
	profile.NewHTTPHandler(profileService, gate).Register(apiRouter)

	// Devices authenticate against the device registry, not OIDC sessions.
	deviceRouter := router.PathPrefix("/api/v1").Subrouter()
	vitals.NewDeviceHandler(vitalService).Register(deviceRouter)

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
		}).Info("Vitals service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down vitals service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	if err := database.CloseRedis(); err != nil {
		logger.Log.WithError(err).Error("Failed to close Redis")
	}
	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Error("Failed to close Postgres")
	}

	logger.Log.Info("Vitals service stopped")
}
