// @title        Ordenes Restaurante - Order Service
// @version      1.0
// @description  Restaurant order lifecycle API.
// @BasePath     /
// @securityDefinitions.apikey BearerAuth
// @in           header
// @name         Authorization
package main

//go:generate swag init -g main.go -d .,../../internal/order -o ../../docs --parseInternal

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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/MikeMC777/ordenes-restaurante/docs"
	"github.com/MikeMC777/ordenes-restaurante/internal/config"
	"github.com/MikeMC777/ordenes-restaurante/internal/httpx"
	"github.com/MikeMC777/ordenes-restaurante/internal/logging"
	"github.com/MikeMC777/ordenes-restaurante/internal/metrics"
	ord "github.com/MikeMC777/ordenes-restaurante/internal/order"
)

func main() {
	cfg := config.Load()
	logger := logging.New("order-service", cfg.LogLevel)
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

	var events ord.Publisher = ord.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := ord.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OrderEventsTopic)
		defer func() { _ = kp.Close() }()
		events = kp
		logger.Info("publishing order events", "topic", cfg.OrderEventsTopic)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	d := &deps{
		repo:    ord.NewPGRepo(pool),
		events:  events,
		metrics: metrics.NewOrderMetrics(reg),
		logger:  logger,
		now:     time.Now,
	}

	r := newRouter(d, []byte(cfg.JWTSecret),
		httpx.RequestID(),
		httpx.Logger(logger),
		httpx.Metrics(metrics.NewServerMetrics(reg, "order_service")),
	)
	r.GET("/metrics", gin.WrapH(metrics.Handler(reg)))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	server := &http.Server{
		Addr:         cfg.OrderSvcAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("order-service listening", "addr", cfg.OrderSvcAddr)
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
