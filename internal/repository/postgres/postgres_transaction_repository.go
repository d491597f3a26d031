package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mkravets/sales-insights-service/internal/infrastructure/observability"
	"github.com/mkravets/sales-insights-service/internal/models"
	"github.com/mkravets/sales-insights-service/internal/repository"
	pkgerrors "github.com/mkravets/sales-insights-service/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const uniqueViolation = "23505"

type PostgresTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

// bucketCase maps price to its histogram label in SQL. Buckets are ordered,
// so the first matching upper bound wins; the last bucket is open-ended.
var bucketCase = func() string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, bucket := range models.PriceBuckets[:len(models.PriceBuckets)-1] {
		fmt.Fprintf(&b, " WHEN price <= %g THEN '%s'", bucket.Upper, bucket.Label)
	}
	fmt.Fprintf(&b, " ELSE '%s' END", models.PriceBuckets[len(models.PriceBuckets)-1].Label)
	return b.String()
}()

func (r *PostgresTransactionRepository) ReplaceAll(ctx context.Context, txs []models.Transaction) error {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "ReplaceAll")
	span.SetAttributes(attribute.Int("count", len(txs)))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("ReplaceAll", status).Inc()
		observability.RepositoryDuration.WithLabelValues("ReplaceAll").Observe(time.Since(start).Seconds())
	}()

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "ReplaceAll", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err = dbTx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		slog.Error("failed to clear transactions", "method", "ReplaceAll", "error", err)
		return fmt.Errorf("failed to clear transactions: %w", err)
	}

	stmt, err := dbTx.PrepareContext(ctx, pq.CopyIn("transactions",
		"id", "title", "price", "description", "category", "image", "sold", "date_of_sale"))
	if err != nil {
		slog.Error("failed to prepare bulk insert", "method", "ReplaceAll", "error", err)
		return fmt.Errorf("failed to prepare bulk insert: %w", err)
	}

	for i := range txs {
		t := &txs[i]
		if _, err = stmt.ExecContext(ctx, t.ID, t.Title, t.Price, t.Description, t.Category, t.Image, t.Sold, t.DateOfSale); err != nil {
			stmt.Close()
			slog.Error("failed to buffer transaction", "method", "ReplaceAll", "id", t.ID, "error", err)
			return fmt.Errorf("failed to buffer transaction %d: %w", t.ID, err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		slog.Error("failed to flush bulk insert", "method", "ReplaceAll", "error", err)
		return fmt.Errorf("failed to flush bulk insert: %w", err)
	}
	if err = stmt.Close(); err != nil {
		slog.Error("failed to close bulk insert", "method", "ReplaceAll", "error", err)
		return fmt.Errorf("failed to close bulk insert: %w", err)
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit replace", "method", "ReplaceAll", "error", err)
		return fmt.Errorf("failed to commit replace: %w", err)
	}

	slog.Info("collection replaced", "method", "ReplaceAll", "count", len(txs))
	return nil
}

func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "CreateTransaction")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("CreateTransaction", status).Inc()
		observability.RepositoryDuration.WithLabelValues("CreateTransaction").Observe(time.Since(start).Seconds())
	}()

	if tx == nil {
		err = pkgerrors.ErrNilTransaction
		slog.Error("failed to create transaction", "method", "Create", "error", err)
		return err
	}
	if err = tx.Validate(); err != nil {
		slog.Error("invalid transaction", "method", "Create", "id", tx.ID, "error", err)
		return err
	}

	span.SetAttributes(
		attribute.Int64("id", tx.ID),
		attribute.String("category", tx.Category),
		attribute.Float64("price", tx.Price),
	)

	query := `INSERT INTO transactions (id, title, price, description, category, image, sold, date_of_sale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = r.db.ExecContext(ctx, query, tx.ID, tx.Title, tx.Price, tx.Description, tx.Category, tx.Image, tx.Sold, tx.DateOfSale)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			err = pkgerrors.ErrDuplicateID
			slog.Error("duplicate transaction id", "method", "Create", "id", tx.ID)
			return err
		}
		slog.Error("failed to create transaction", "method", "Create", "id", tx.ID, "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	slog.Info("transaction created", "method", "Create", "id", tx.ID, "category", tx.Category, "sold", tx.Sold)
	return nil
}

// searchPredicate builds the WHERE clause for q. The free-text term matches
// title or description as a case-insensitive substring, OR the exact price
// when it parses as a number. When the term is NOT numeric the price branch
// matches every row, which makes the whole OR true: the search degrades to
// the plain date range and returns every in-range transaction.
func searchPredicate(q repository.SearchQuery) (string, []interface{}) {
	where := `date_of_sale >= $1 AND date_of_sale < $2`
	args := []interface{}{q.Start, q.End}

	term := strings.TrimSpace(q.Search)
	if term == "" {
		return where, args
	}

	price, err := strconv.ParseFloat(term, 64)
	if err != nil {
		return where, args
	}

	args = append(args, "%"+term+"%", price)
	return where + ` AND (title ILIKE $3 OR description ILIKE $3 OR price = $4)`, args
}

func (r *PostgresTransactionRepository) Search(ctx context.Context, q repository.SearchQuery) (*repository.SearchResult, error) {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "SearchTransactions")
	span.SetAttributes(
		attribute.String("search", q.Search),
		attribute.Int("page", q.Page),
		attribute.Int("per_page", q.PerPage),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("SearchTransactions", status).Inc()
		observability.RepositoryDuration.WithLabelValues("SearchTransactions").Observe(time.Since(start).Seconds())
	}()

	if q.Page < 1 {
		err = pkgerrors.ErrInvalidPage
		return nil, err
	}
	if q.PerPage < 1 {
		err = pkgerrors.ErrInvalidPerPage
		return nil, err
	}

	where, args := searchPredicate(q)

	var total int64
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE `+where, args...).Scan(&total)
	if err != nil {
		slog.Error("failed to count transactions", "method", "Search", "error", err)
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	// ORDER BY id keeps pages disjoint and gap-free across requests.
	pageArgs := append(args, q.PerPage, (q.Page-1)*q.PerPage)
	query := fmt.Sprintf(`SELECT id, title, price, description, category, image, sold, date_of_sale
		FROM transactions WHERE %s ORDER BY id LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		slog.Error("failed to query transactions", "method", "Search", "error", err)
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err = rows.Scan(&t.ID, &t.Title, &t.Price, &t.Description, &t.Category, &t.Image, &t.Sold, &t.DateOfSale); err != nil {
			slog.Error("failed to scan transaction", "method", "Search", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err = rows.Err(); err != nil {
		slog.Error("failed to iterate transactions", "method", "Search", "error", err)
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	result := &repository.SearchResult{
		Transactions: txs,
		Total:        total,
		TotalPages:   (total + int64(q.PerPage) - 1) / int64(q.PerPage),
		Page:         q.Page,
		PerPage:      q.PerPage,
	}
	slog.Info("transactions searched", "method", "Search", "total", total, "page", q.Page, "returned", len(txs))
	return result, nil
}

func (r *PostgresTransactionRepository) Stats(ctx context.Context, startAt, endAt time.Time) (*models.MonthlyStatistics, error) {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "MonthlyStats")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("MonthlyStats", status).Inc()
		observability.RepositoryDuration.WithLabelValues("MonthlyStats").Observe(time.Since(start).Seconds())
	}()

	var stats models.MonthlyStatistics
	query := `
		SELECT
			COALESCE(SUM(price), 0) AS total_sale_amount,
			COALESCE(SUM(CASE WHEN sold THEN 1 ELSE 0 END), 0) AS sold_items,
			COALESCE(SUM(CASE WHEN NOT sold THEN 1 ELSE 0 END), 0) AS not_sold_items
		FROM transactions
		WHERE date_of_sale >= $1 AND date_of_sale < $2
	`
	err = r.db.QueryRowContext(ctx, query, startAt, endAt).Scan(&stats.TotalSaleAmount, &stats.TotalSoldItems, &stats.TotalNotSoldItems)
	if err != nil {
		slog.Error("failed to aggregate statistics", "method", "Stats", "error", err)
		return nil, fmt.Errorf("failed to aggregate statistics: %w", err)
	}

	slog.Info("statistics aggregated", "method", "Stats",
		"total_sale_amount", stats.TotalSaleAmount,
		"sold", stats.TotalSoldItems,
		"not_sold", stats.TotalNotSoldItems)
	return &stats, nil
}

func (r *PostgresTransactionRepository) PriceHistogram(ctx context.Context, startAt, endAt time.Time) (models.PriceHistogram, error) {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "PriceHistogram")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("PriceHistogram", status).Inc()
		observability.RepositoryDuration.WithLabelValues("PriceHistogram").Observe(time.Since(start).Seconds())
	}()

	query := `
		SELECT ` + bucketCase + ` AS bucket, COUNT(*)
		FROM transactions
		WHERE date_of_sale >= $1 AND date_of_sale < $2
		GROUP BY bucket
	`
	rows, err := r.db.QueryContext(ctx, query, startAt, endAt)
	if err != nil {
		slog.Error("failed to aggregate histogram", "method", "PriceHistogram", "error", err)
		return nil, fmt.Errorf("failed to aggregate histogram: %w", err)
	}
	defer rows.Close()

	histogram := models.PriceHistogram{}
	for _, b := range models.PriceBuckets {
		histogram[b.Label] = 0
	}
	for rows.Next() {
		var bucket string
		var count int64
		if err = rows.Scan(&bucket, &count); err != nil {
			slog.Error("failed to scan bucket", "method", "PriceHistogram", "error", err)
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		histogram[bucket] = count
	}
	if err = rows.Err(); err != nil {
		slog.Error("failed to iterate buckets", "method", "PriceHistogram", "error", err)
		return nil, fmt.Errorf("failed to iterate buckets: %w", err)
	}

	slog.Info("histogram aggregated", "method", "PriceHistogram")
	return histogram, nil
}

func (r *PostgresTransactionRepository) CategoryCounts(ctx context.Context, startAt, endAt time.Time) (models.CategoryBreakdown, error) {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "CategoryCounts")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("CategoryCounts", status).Inc()
		observability.RepositoryDuration.WithLabelValues("CategoryCounts").Observe(time.Since(start).Seconds())
	}()

	// MIN(id) fixes emission order at first occurrence, so repeated calls
	// return the same object shape.
	query := `
		SELECT category, COUNT(*)
		FROM transactions
		WHERE date_of_sale >= $1 AND date_of_sale < $2
		GROUP BY category
		ORDER BY MIN(id)
	`
	rows, err := r.db.QueryContext(ctx, query, startAt, endAt)
	if err != nil {
		slog.Error("failed to aggregate categories", "method", "CategoryCounts", "error", err)
		return nil, fmt.Errorf("failed to aggregate categories: %w", err)
	}
	defer rows.Close()

	breakdown := models.CategoryBreakdown{}
	for rows.Next() {
		var cc models.CategoryCount
		if err = rows.Scan(&cc.Category, &cc.Count); err != nil {
			slog.Error("failed to scan category", "method", "CategoryCounts", "error", err)
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		breakdown = append(breakdown, cc)
	}
	if err = rows.Err(); err != nil {
		slog.Error("failed to iterate categories", "method", "CategoryCounts", "error", err)
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}

	slog.Info("categories aggregated", "method", "CategoryCounts", "categories", len(breakdown))
	return breakdown, nil
}
