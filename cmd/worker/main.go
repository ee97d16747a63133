package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"antifraud/internal/config"
	"antifraud/internal/db"
	"antifraud/internal/events"
	"antifraud/internal/fraud"
	"antifraud/internal/logger"
	"antifraud/internal/repository"
	"antifraud/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_JSON") == "true")
	cfg := config.Load()

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("failed to ping redis", "error", err)
	}

	hostname, _ := os.Hostname()
	stream := events.NewStream(rdb, "worker-"+hostname)

	repo := repository.NewTransactionRepository(dbPool)
	policy := fraud.NewPolicy(cfg.MaxTransactionValue, cfg.MaxDailyTotal)

	adjudicator := service.NewAdjudicator(repo, policy, stream, stream, service.AdjudicatorConfig{
		InboundTopic:   cfg.InboundTopic,
		OutboundTopic:  cfg.OutboundTopic,
		ConsumerGroup:  cfg.ConsumerGroup,
		Lanes:          cfg.WorkerLanes,
		StoreTimeout:   cfg.StoreTimeout,
		PublishTimeout: cfg.PublishTimeout,
		PublishRetries: cfg.PublishRetries,
		PublishBackoff: cfg.PublishBackoff,
	})

	relay := service.NewRelay(repo, stream, service.RelayConfig{
		OutboundTopic:  cfg.OutboundTopic,
		Interval:       cfg.OutboxInterval,
		Grace:          cfg.OutboxGrace,
		Batch:          cfg.OutboxBatch,
		StoreTimeout:   cfg.StoreTimeout,
		PublishTimeout: cfg.PublishTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// metrics and liveness for the worker process
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricsMux(rdb)}
	go func() {
		logger.Info("worker metrics listening", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics listener failed", "error", err)
		}
	}()

	go relay.Run(ctx)

	if err := adjudicator.Run(ctx); err != nil {
		logger.Error("worker stopped with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	logger.Info("worker exited")
}

func metricsMux(rdb *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
