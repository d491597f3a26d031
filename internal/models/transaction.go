package models

import (
	"strings"
	"time"

	pkgerrors "github.com/mkravets/sales-insights-service/pkg/errors"
)

// Transaction is a single product sale record from the seed feed.
type Transaction struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Image       string    `json:"image"`
	Sold        bool      `json:"sold"`
	DateOfSale  time.Time `json:"dateOfSale"`
}

// Validate rejects records with missing fields. Price is not range-checked:
// the feed only carries non-negative prices but that is not a contract.
func (t *Transaction) Validate() error {
	if t.ID <= 0 {
		return pkgerrors.ErrInvalidTransaction
	}
	if strings.TrimSpace(t.Title) == "" ||
		strings.TrimSpace(t.Description) == "" ||
		strings.TrimSpace(t.Category) == "" ||
		strings.TrimSpace(t.Image) == "" {
		return pkgerrors.ErrInvalidTransaction
	}
	if t.DateOfSale.IsZero() {
		return pkgerrors.ErrInvalidTransaction
	}
	return nil
}
