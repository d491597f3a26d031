package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/mkravets/sales-insights-service/internal/api"
	"github.com/mkravets/sales-insights-service/internal/config"
	"github.com/mkravets/sales-insights-service/internal/infrastructure/kafka"
	"github.com/mkravets/sales-insights-service/internal/infrastructure/redis"
	"github.com/mkravets/sales-insights-service/internal/observability"
	core "github.com/mkravets/sales-insights-service/internal/repository/postgres"
	"github.com/mkravets/sales-insights-service/internal/seed"
	service "github.com/mkravets/sales-insights-service/internal/services"
)

func main() {
	cfg := config.Load()

	shutdownTracing, metricsHandler := observability.Setup("sales-insights-service", cfg.OTLPEndpoint)
	defer shutdownTracing(context.Background())

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping Postgres: %v", err)
	}
	if err := core.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	transactionRepo := core.NewPostgresTransactionRepository(db)

	redisClient, err := redis.NewClient(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	fetcher := seed.NewFetcher(cfg.SeedURL)
	reportSvc := service.NewReportService(transactionRepo, redisClient)
	seedSvc := service.NewSeedService(transactionRepo, fetcher, redisClient, producer)

	mux := api.SetupRouter(reportSvc, seedSvc, metricsHandler)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
