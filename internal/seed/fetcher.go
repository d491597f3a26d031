package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mkravets/sales-insights-service/internal/models"
	pkgerrors "github.com/mkravets/sales-insights-service/pkg/errors"
)

// Fetcher pulls the seed transactions from a remote JSON feed.
type Fetcher struct {
	url    string
	client *http.Client
}

func NewFetcher(url string) *Fetcher {
	return &Fetcher{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (f *Fetcher) Fetch(ctx context.Context) ([]models.Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build seed request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		slog.Error("seed fetch failed", "url", f.url, "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrSeedFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Error("seed source returned non-200", "url", f.url, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", pkgerrors.ErrSeedFetch, resp.StatusCode)
	}

	var txs []models.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
		slog.Error("seed payload decode failed", "url", f.url, "error", err)
		return nil, fmt.Errorf("%w: decode: %v", pkgerrors.ErrSeedFetch, err)
	}

	slog.Info("seed data fetched", "url", f.url, "count", len(txs))
	return txs, nil
}
