package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkravets/sales-insights-service/internal/infrastructure/redis"
	"github.com/mkravets/sales-insights-service/internal/models"
	"github.com/mkravets/sales-insights-service/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	cacheVersionKey = "transactions:version"
	reportCacheTTL  = 5 * time.Minute
)

type ReportService interface {
	ListTransactions(ctx context.Context, year, month int, search string, page, perPage int) (*repository.SearchResult, error)
	MonthlyStatistics(ctx context.Context, year, month int) (*models.MonthlyStatistics, error)
	PriceHistogram(ctx context.Context, year, month int) (models.PriceHistogram, error)
	CategoryBreakdown(ctx context.Context, year, month int) (models.CategoryBreakdown, error)
	CombinedReport(ctx context.Context, year, month int) (*models.CombinedReport, error)
}

type reportService struct {
	transactionRepo repository.TransactionRepository
	redisClient     redis.RedisClient
}

func NewReportService(transactionRepo repository.TransactionRepository, redisClient redis.RedisClient) *reportService {
	return &reportService{
		transactionRepo: transactionRepo,
		redisClient:     redisClient,
	}
}

// reportCacheKey embeds the collection version so a single Incr on writes
// invalidates every cached month at once.
func (s *reportService) reportCacheKey(ctx context.Context, kind string, year, month int) string {
	version, err := s.redisClient.Get(ctx, cacheVersionKey)
	if err != nil && err != redis.ErrKeyNotFound {
		slog.Warn("failed to read cache version, skipping cache", "error", err)
		return ""
	}
	if version == "" {
		version = "0"
	}
	return fmt.Sprintf("report:%s:v%s:%d-%02d", kind, version, year, month)
}

// cachedReport is the cache-aside path shared by the aggregate reads: look up
// the versioned key, fall back to compute, store the JSON for the next call.
func cachedReport[T any](ctx context.Context, s *reportService, kind string, year, month int, compute func() (T, error)) (T, error) {
	var zero T
	key := s.reportCacheKey(ctx, kind, year, month)
	if key != "" {
		if raw, err := s.redisClient.Get(ctx, key); err == nil {
			var out T
			if err := json.Unmarshal([]byte(raw), &out); err == nil {
				slog.Debug("report cache hit", "kind", kind, "year", year, "month", month)
				return out, nil
			}
			slog.Warn("failed to decode cached report", "kind", kind, "key", key)
		}
	}

	out, err := compute()
	if err != nil {
		return zero, err
	}

	if key != "" {
		if raw, err := json.Marshal(out); err == nil {
			if err := s.redisClient.Set(ctx, key, string(raw), reportCacheTTL); err != nil {
				slog.Warn("failed to cache report", "kind", kind, "key", key, "error", err)
			}
		}
	}
	return out, nil
}

func (s *reportService) ListTransactions(ctx context.Context, year, month int, search string, page, perPage int) (*repository.SearchResult, error) {
	start, end, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	return s.transactionRepo.Search(ctx, repository.SearchQuery{
		Start:   start,
		End:     end,
		Search:  search,
		Page:    page,
		PerPage: perPage,
	})
}

func (s *reportService) MonthlyStatistics(ctx context.Context, year, month int) (*models.MonthlyStatistics, error) {
	start, end, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	return cachedReport(ctx, s, "statistics", year, month, func() (*models.MonthlyStatistics, error) {
		return s.transactionRepo.Stats(ctx, start, end)
	})
}

func (s *reportService) PriceHistogram(ctx context.Context, year, month int) (models.PriceHistogram, error) {
	start, end, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	return cachedReport(ctx, s, "bar-chart", year, month, func() (models.PriceHistogram, error) {
		return s.transactionRepo.PriceHistogram(ctx, start, end)
	})
}

func (s *reportService) CategoryBreakdown(ctx context.Context, year, month int) (models.CategoryBreakdown, error) {
	start, end, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	return cachedReport(ctx, s, "pie-chart", year, month, func() (models.CategoryBreakdown, error) {
		return s.transactionRepo.CategoryCounts(ctx, start, end)
	})
}

// CombinedReport composes the three monthly aggregates in-process instead of
// re-entering the HTTP surface. The aggregates run concurrently.
func (s *reportService) CombinedReport(ctx context.Context, year, month int) (*models.CombinedReport, error) {
	tracer := otel.Tracer("report-service")
	ctx, span := tracer.Start(ctx, "CombinedReport")
	span.SetAttributes(attribute.Int("year", year), attribute.Int("month", month))
	defer span.End()

	if _, _, err := MonthRange(year, month); err != nil {
		return nil, err
	}

	var combined models.CombinedReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.MonthlyStatistics(gctx, year, month)
		if err != nil {
			return err
		}
		combined.Statistics = *stats
		return nil
	})
	g.Go(func() error {
		histogram, err := s.PriceHistogram(gctx, year, month)
		if err != nil {
			return err
		}
		combined.BarChartData = histogram
		return nil
	})
	g.Go(func() error {
		breakdown, err := s.CategoryBreakdown(gctx, year, month)
		if err != nil {
			return err
		}
		combined.PieChartData = breakdown
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &combined, nil
}
