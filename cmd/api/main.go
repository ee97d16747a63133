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
	httpServer "antifraud/internal/http"
	"antifraud/internal/http/handlers"
	"antifraud/internal/http/middleware"
	"antifraud/internal/logger"
	"antifraud/internal/repository"
	"antifraud/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

const version = "1.0.0"

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
	middleware.UseRedis(rdb)

	hostname, _ := os.Hostname()
	stream := events.NewStream(rdb, "api-"+hostname)

	repo := repository.NewTransactionRepository(dbPool)
	svc := service.NewTransactionService(repo, stream, cfg.InboundTopic, cfg.StoreTimeout, cfg.PublishTimeout)

	r := gin.Default()
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.NewHandler(svc)
	health := handlers.NewHealthHandler(dbPool, rdb, version)
	httpServer.RegisterRoutes(r, h, health, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("api server started", "port", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down api server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	logger.Info("api server exited")
}
