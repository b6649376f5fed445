package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carebridge-ai/platform/pkg/common/config"
	"github.com/carebridge-ai/platform/pkg/common/database"
	"github.com/carebridge-ai/platform/pkg/common/kafka"
	"github.com/carebridge-ai/platform/pkg/common/logger"
	"github.com/carebridge-ai/platform/pkg/interaction"
	"github.com/carebridge-ai/platform/pkg/pipeline"
	"github.com/carebridge-ai/platform/pkg/session"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logger.Init()
	cfg := config.Load()

	rules, err := interaction.Load(cfg.RuleBasePath)
	if err != nil {
		if rules == nil {
			logger.Log.WithError(err).Fatal("failed to load interaction rule base")
		}
		logger.Log.WithError(err).Warn("falling back to built-in interaction rule base")
	}
	resolver := interaction.NewNameResolver(rules.KnownKeys(), cfg.ResolverThreshold)
	engine := interaction.NewEngine(rules, resolver)
	orchestrator := pipeline.NewOrchestrator(engine, cfg.ContinueOnError)

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := session.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate session tables")
	}

	registry := session.NewRegistry(database.GetRedis(), cfg.SessionTTL)

	var producer, alerts *kafka.Producer
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(cfg.PipelineTopic)
		defer producer.Close()

		alerts = kafka.NewProducer(cfg.AlertTopic)
		defer alerts.Close()
	}

	svc := session.NewService(orchestrator, resolver.CanonicalKey, repo, registry, producer, alerts)
	handler := session.NewHTTPHandler(svc, cfg.MaxRequestBody)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  cfg.ServerPort,
			"rules": rules.Len(),
		}).Info("Discharge Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Discharge Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Warn("failed to close postgres")
	}
	if err := database.CloseRedis(); err != nil {
		logger.Log.WithError(err).Warn("failed to close redis")
	}

	logger.Log.Info("Discharge Service stopped")
}
