package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/mkravets/sales-insights-service/internal/infrastructure/kafka"
	"github.com/mkravets/sales-insights-service/internal/infrastructure/observability"
	"github.com/mkravets/sales-insights-service/internal/infrastructure/redis"
	"github.com/mkravets/sales-insights-service/internal/models"
	"github.com/mkravets/sales-insights-service/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const transactionsTopic = "transactions"

// SeedFetcher is the external seed feed.
type SeedFetcher interface {
	Fetch(ctx context.Context) ([]models.Transaction, error)
}

type SeedService interface {
	// Reseed replaces the whole collection with the remote feed contents and
	// returns the number of records stored. Idempotent: running it twice
	// against an unchanged feed yields the same collection.
	Reseed(ctx context.Context) (int, error)
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
}

type seedService struct {
	transactionRepo repository.TransactionRepository
	fetcher         SeedFetcher
	redisClient     redis.RedisClient
	producer        kafka.EventProducer
}

func NewSeedService(
	transactionRepo repository.TransactionRepository,
	fetcher SeedFetcher,
	redisClient redis.RedisClient,
	producer kafka.EventProducer,
) *seedService {
	return &seedService{
		transactionRepo: transactionRepo,
		fetcher:         fetcher,
		redisClient:     redisClient,
		producer:        producer,
	}
}

func (s *seedService) Reseed(ctx context.Context) (int, error) {
	tracer := otel.Tracer("seed-service")
	ctx, span := tracer.Start(ctx, "Reseed")
	defer span.End()

	fetched, err := s.fetcher.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "seed fetch failed")
		observability.SeedRuns.WithLabelValues("fetch_error").Inc()
		return 0, err
	}

	// Records missing required fields are never persisted.
	valid := make([]models.Transaction, 0, len(fetched))
	for i := range fetched {
		if err := fetched[i].Validate(); err != nil {
			slog.Warn("skipping invalid seed record", "id", fetched[i].ID, "error", err)
			continue
		}
		valid = append(valid, fetched[i])
	}
	span.SetAttributes(
		attribute.Int("fetched", len(fetched)),
		attribute.Int("valid", len(valid)),
	)

	if err := s.transactionRepo.ReplaceAll(ctx, valid); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace failed")
		observability.SeedRuns.WithLabelValues("store_error").Inc()
		return 0, err
	}

	s.bumpCacheVersion(ctx)
	s.publishEvent("reseed", map[string]interface{}{
		"event_type": "transactions_reseeded",
		"count":      len(valid),
		"skipped":    len(fetched) - len(valid),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})

	observability.SeedRuns.WithLabelValues("success").Inc()
	slog.Info("collection reseeded", "fetched", len(fetched), "stored", len(valid))
	return len(valid), nil
}

func (s *seedService) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	tracer := otel.Tracer("seed-service")
	ctx, span := tracer.Start(ctx, "CreateTransaction")
	defer span.End()

	if err := s.transactionRepo.Create(ctx, tx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return err
	}

	s.bumpCacheVersion(ctx)
	s.publishEvent(strconv.FormatInt(tx.ID, 10), map[string]interface{}{
		"event_type": "transaction_created",
		"id":         tx.ID,
		"category":   tx.Category,
		"price":      tx.Price,
		"sold":       tx.Sold,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

// bumpCacheVersion invalidates all cached reports. Cache staleness is
// tolerable, so failures are logged and swallowed.
func (s *seedService) bumpCacheVersion(ctx context.Context) {
	if _, err := s.redisClient.Incr(ctx, cacheVersionKey); err != nil {
		slog.Warn("failed to bump report cache version", "error", err)
	}
}

func (s *seedService) publishEvent(key string, event map[string]interface{}) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal kafka event", "key", key, "error", err)
		return
	}
	go func() {
		retries := 3
		for i := 0; i < retries; i++ {
			if err := s.producer.Send(context.Background(), transactionsTopic, key, eventBytes); err == nil {
				return
			}
			time.Sleep(time.Second * time.Duration(i+1))
		}
		slog.Error("failed to send kafka event after retries", "key", key)
	}()
}
