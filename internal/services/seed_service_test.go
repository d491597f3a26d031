package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mkravets/sales-insights-service/internal/models"
	pkgerrors "github.com/mkravets/sales-insights-service/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func seedTransaction(id int64) models.Transaction {
	return models.Transaction{
		ID:          id,
		Title:       "Item",
		Price:       float64(id) * 10,
		Description: "Seed item",
		Category:    "electronics",
		Image:       "https://example.com/item.jpg",
		Sold:        id%2 == 0,
		DateOfSale:  time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(id)),
	}
}

func waitForEvent(t *testing.T, producer *fakeProducer) fakeEvent {
	t.Helper()
	select {
	case <-producer.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	event, ok := producer.lastEvent()
	assert.True(t, ok)
	return event
}

func TestSeedService_Reseed(t *testing.T) {
	ctx := context.Background()

	t.Run("ReplacesAndFiltersInvalid", func(t *testing.T) {
		repo := newFakeTransactionRepo()
		var stored []models.Transaction
		repo.replaceAllFn = func(ctx context.Context, txs []models.Transaction) error {
			stored = txs
			return nil
		}
		rc := newFakeRedis()
		producer := newFakeProducer()
		invalid := models.Transaction{ID: 3} // missing every other field
		fetcher := &fakeFetcher{txs: []models.Transaction{seedTransaction(1), invalid, seedTransaction(2)}}
		svc := NewSeedService(repo, fetcher, rc, producer)

		count, err := svc.Reseed(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.Len(t, stored, 2)
		assert.Equal(t, int64(1), stored[0].ID)

		// Cache version bumped so stale reports are dropped.
		version, err := rc.Get(ctx, cacheVersionKey)
		assert.NoError(t, err)
		assert.Equal(t, "1", version)

		event := waitForEvent(t, producer)
		assert.Equal(t, transactionsTopic, event.Topic)
		var payload map[string]interface{}
		assert.NoError(t, json.Unmarshal(event.Value, &payload))
		assert.Equal(t, "transactions_reseeded", payload["event_type"])
		assert.Equal(t, float64(2), payload["count"])
		assert.Equal(t, float64(1), payload["skipped"])
	})

	t.Run("Idempotent", func(t *testing.T) {
		repo := newFakeTransactionRepo()
		var stored []models.Transaction
		repo.replaceAllFn = func(ctx context.Context, txs []models.Transaction) error {
			stored = txs
			return nil
		}
		fetcher := &fakeFetcher{txs: []models.Transaction{seedTransaction(1), seedTransaction(2)}}
		svc := NewSeedService(repo, fetcher, newFakeRedis(), newFakeProducer())

		_, err := svc.Reseed(ctx)
		assert.NoError(t, err)
		first := stored
		_, err = svc.Reseed(ctx)
		assert.NoError(t, err)
		assert.Equal(t, first, stored)
		assert.Equal(t, 2, repo.callCount("ReplaceAll"))
	})

	t.Run("FetchFailure", func(t *testing.T) {
		repo := newFakeTransactionRepo()
		fetcher := &fakeFetcher{err: pkgerrors.ErrSeedFetch}
		svc := NewSeedService(repo, fetcher, newFakeRedis(), newFakeProducer())

		_, err := svc.Reseed(ctx)
		assert.ErrorIs(t, err, pkgerrors.ErrSeedFetch)
		assert.Equal(t, 0, repo.callCount("ReplaceAll"))
	})

	t.Run("StoreFailure", func(t *testing.T) {
		repo := newFakeTransactionRepo()
		repo.replaceAllFn = func(ctx context.Context, txs []models.Transaction) error {
			return assert.AnError
		}
		fetcher := &fakeFetcher{txs: []models.Transaction{seedTransaction(1)}}
		rc := newFakeRedis()
		svc := NewSeedService(repo, fetcher, rc, newFakeProducer())

		_, err := svc.Reseed(ctx)
		assert.ErrorIs(t, err, assert.AnError)
		// No invalidation on failure: the old cache entries are still valid.
		_, err = rc.Get(ctx, cacheVersionKey)
		assert.Error(t, err)
	})
}

func TestSeedService_CreateTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := newFakeTransactionRepo()
		repo.createFn = func(ctx context.Context, tx *models.Transaction) error {
			return nil
		}
		rc := newFakeRedis()
		producer := newFakeProducer()
		svc := NewSeedService(repo, &fakeFetcher{}, rc, producer)

		tx := seedTransaction(7)
		assert.NoError(t, svc.CreateTransaction(ctx, &tx))
		assert.Equal(t, 1, repo.callCount("Create"))

		version, err := rc.Get(ctx, cacheVersionKey)
		assert.NoError(t, err)
		assert.Equal(t, "1", version)

		event := waitForEvent(t, producer)
		assert.Equal(t, "7", event.Key)
		var payload map[string]interface{}
		assert.NoError(t, json.Unmarshal(event.Value, &payload))
		assert.Equal(t, "transaction_created", payload["event_type"])
	})

	t.Run("DuplicateID", func(t *testing.T) {
		repo := newFakeTransactionRepo()
		repo.createFn = func(ctx context.Context, tx *models.Transaction) error {
			return pkgerrors.ErrDuplicateID
		}
		rc := newFakeRedis()
		svc := NewSeedService(repo, &fakeFetcher{}, rc, newFakeProducer())

		tx := seedTransaction(7)
		err := svc.CreateTransaction(ctx, &tx)
		assert.ErrorIs(t, err, pkgerrors.ErrDuplicateID)
		_, err = rc.Get(ctx, cacheVersionKey)
		assert.Error(t, err)
	})
}
