package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rosterbridge/vendor-portal/pkg/auth"
	"github.com/rosterbridge/vendor-portal/pkg/common/config"
	"github.com/rosterbridge/vendor-portal/pkg/common/database"
	"github.com/rosterbridge/vendor-portal/pkg/common/kafka"
	"github.com/rosterbridge/vendor-portal/pkg/common/logger"
	"github.com/rosterbridge/vendor-portal/pkg/vault"
)

func main() {
	logger.Init()
	cfg := config.Load()

	vaultDB, err := database.ConnectVault(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to vault postgres")
	}
	defer database.Close(vaultDB)

	repo := vault.NewRepository(vaultDB)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate vault tables")
	}

	redisClient := database.NewRedis(cfg)
	defer redisClient.Close()

	alertProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.AlertTopic)
	defer alertProducer.Close()

	opsProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.OperationalTopic)
	defer opsProducer.Close()

	classLimits, err := vault.LoadClassLimits(cfg.VaultLimitsFile)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load rate limit configuration")
	}

	limiter := vault.NewLimiter(repo, redisClient, classLimits, cfg.PersistTimeout)
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := limiter.LoadOverrides(startupCtx); err != nil {
		logger.Log.WithError(err).Warn("continuing with class defaults; overrides unavailable")
	}
	cancelStartup()

	accessLog := vault.NewAccessLogger(repo, opsProducer)
	alertEngine := vault.NewAlertEngine(repo, vault.NewKafkaNotifier(alertProducer))
	service := vault.NewService(repo, limiter, accessLog, alertEngine, cfg.BulkAlertThreshold)

	authenticator, err := auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to configure authenticator")
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1/vault").Subrouter()
	api.Use(logging, recovery, vault.RequestorMiddleware(authenticator))

	handler := vault.NewHTTPHandler(service, alertEngine, cfg.RelayDomain, cfg.MaxRequestBody)
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Token Vault Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Token Vault Service...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Token Vault Service stopped")
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		r.Header.Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)

		logger.Log.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
			"request_id":  reqID,
			"duration":    time.Since(start).Milliseconds(),
		}).Info("HTTP request")
	})
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Log.WithField("error", err).Error("Panic recovered")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
