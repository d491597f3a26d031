package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/mkravets/sales-insights-service/internal/infrastructure/redis"
	"github.com/mkravets/sales-insights-service/internal/models"
	"github.com/mkravets/sales-insights-service/internal/repository"
)

type fakeTransactionRepo struct {
	replaceAllFn     func(ctx context.Context, txs []models.Transaction) error
	createFn         func(ctx context.Context, tx *models.Transaction) error
	searchFn         func(ctx context.Context, q repository.SearchQuery) (*repository.SearchResult, error)
	statsFn          func(ctx context.Context, start, end time.Time) (*models.MonthlyStatistics, error)
	priceHistogramFn func(ctx context.Context, start, end time.Time) (models.PriceHistogram, error)
	categoryCountsFn func(ctx context.Context, start, end time.Time) (models.CategoryBreakdown, error)

	mu    sync.Mutex
	calls map[string]int
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{calls: map[string]int{}}
}

func (f *fakeTransactionRepo) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeTransactionRepo) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeTransactionRepo) ReplaceAll(ctx context.Context, txs []models.Transaction) error {
	f.record("ReplaceAll")
	return f.replaceAllFn(ctx, txs)
}

func (f *fakeTransactionRepo) Create(ctx context.Context, tx *models.Transaction) error {
	f.record("Create")
	return f.createFn(ctx, tx)
}

func (f *fakeTransactionRepo) Search(ctx context.Context, q repository.SearchQuery) (*repository.SearchResult, error) {
	f.record("Search")
	return f.searchFn(ctx, q)
}

func (f *fakeTransactionRepo) Stats(ctx context.Context, start, end time.Time) (*models.MonthlyStatistics, error) {
	f.record("Stats")
	return f.statsFn(ctx, start, end)
}

func (f *fakeTransactionRepo) PriceHistogram(ctx context.Context, start, end time.Time) (models.PriceHistogram, error) {
	f.record("PriceHistogram")
	return f.priceHistogramFn(ctx, start, end)
}

func (f *fakeTransactionRepo) CategoryCounts(ctx context.Context, start, end time.Time) (models.CategoryBreakdown, error) {
	f.record("CategoryCounts")
	return f.categoryCountsFn(ctx, start, end)
}

// fakeRedis is an in-memory stand-in for the Redis client.
type fakeRedis struct {
	mu    sync.Mutex
	store map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{store: map[string]string{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.store[key]
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return val, nil
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = value.(string)
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.store, key)
	return nil
}

func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.store[key], 10, 64)
	n++
	f.store[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeRedis) Close() error { return nil }

// fakeProducer records published events.
type fakeProducer struct {
	mu     sync.Mutex
	events []fakeEvent
	sent   chan struct{}
}

type fakeEvent struct {
	Topic string
	Key   string
	Value []byte
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{sent: make(chan struct{}, 16)}
}

func (f *fakeProducer) Send(ctx context.Context, topic, key string, value []byte) error {
	f.mu.Lock()
	f.events = append(f.events, fakeEvent{Topic: topic, Key: key, Value: value})
	f.mu.Unlock()
	f.sent <- struct{}{}
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func (f *fakeProducer) lastEvent() (fakeEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return fakeEvent{}, false
	}
	return f.events[len(f.events)-1], true
}

type fakeFetcher struct {
	txs []models.Transaction
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context) ([]models.Transaction, error) {
	return f.txs, f.err
}
