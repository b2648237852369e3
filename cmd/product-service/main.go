package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MikeMC777/ordenes-restaurante/internal/config"
	"github.com/MikeMC777/ordenes-restaurante/internal/httpx"
	"github.com/MikeMC777/ordenes-restaurante/internal/logging"
	"github.com/MikeMC777/ordenes-restaurante/internal/metrics"
	prod "github.com/MikeMC777/ordenes-restaurante/internal/product"
)

func main() {
	cfg := config.Load()
	logger := logging.New("product-service", cfg.LogLevel)
	cfg.Log(logger)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("failed to create pg pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres unreachable", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	r := gin.New()
	r.Use(gin.Recovery(),
		httpx.RequestID(),
		httpx.Logger(logger),
		httpx.Metrics(metrics.NewServerMetrics(reg, "product_service")),
	)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(metrics.Handler(reg)))
	registerRoutes(r, prod.NewPGRepo(pool), logger, []byte(cfg.JWTSecret))

	server := &http.Server{
		Addr:         cfg.ProductSvcAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("product-service listening", "addr", cfg.ProductSvcAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
