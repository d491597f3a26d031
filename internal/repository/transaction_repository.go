package repository

import (
	"context"
	"time"

	"github.com/mkravets/sales-insights-service/internal/models"
)

// SearchQuery filters transactions sold within [Start, End). Search is an
// optional free-text term matched case-insensitively against title and
// description, and against price when it parses as a number.
type SearchQuery struct {
	Start   time.Time
	End     time.Time
	Search  string
	Page    int
	PerPage int
}

// SearchResult is one page of matches plus the overall totals.
type SearchResult struct {
	Transactions []models.Transaction
	Total        int64
	TotalPages   int64
	Page         int
	PerPage      int
}

type TransactionRepository interface {
	// ReplaceAll clears the collection and inserts txs in a single database
	// transaction, so readers never observe the intermediate empty state.
	ReplaceAll(ctx context.Context, txs []models.Transaction) error
	Create(ctx context.Context, tx *models.Transaction) error
	Search(ctx context.Context, q SearchQuery) (*SearchResult, error)
	Stats(ctx context.Context, start, end time.Time) (*models.MonthlyStatistics, error)
	PriceHistogram(ctx context.Context, start, end time.Time) (models.PriceHistogram, error)
	CategoryCounts(ctx context.Context, start, end time.Time) (models.CategoryBreakdown, error)
}
