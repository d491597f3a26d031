package seed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/mkravets/sales-insights-service/pkg/errors"
	"github.com/stretchr/testify/assert"
)

const feedPayload = `[
	{
		"id": 1,
		"title": "Wireless Mouse",
		"price": 329.85,
		"description": "Ergonomic wireless mouse",
		"category": "electronics",
		"image": "https://example.com/1.jpg",
		"sold": false,
		"dateOfSale": "2021-11-27T20:29:54+05:30"
	},
	{
		"id": 2,
		"title": "Jacket",
		"price": 719.25,
		"description": "Winter jacket",
		"category": "men's clothing",
		"image": "https://example.com/2.jpg",
		"sold": true,
		"dateOfSale": "2022-06-15T10:00:00Z"
	}
]`

func TestFetcher_Fetch(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(feedPayload))
		}))
		defer srv.Close()

		txs, err := NewFetcher(srv.URL).Fetch(context.Background())
		assert.NoError(t, err)
		assert.Len(t, txs, 2)
		assert.Equal(t, int64(1), txs[0].ID)
		assert.Equal(t, "men's clothing", txs[1].Category)
		assert.True(t, txs[1].Sold)
		assert.Equal(t, 2021, txs[0].DateOfSale.Year())
	})

	t.Run("Non200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewFetcher(srv.URL).Fetch(context.Background())
		assert.ErrorIs(t, err, pkgerrors.ErrSeedFetch)
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"not":"an array"}`))
		}))
		defer srv.Close()

		_, err := NewFetcher(srv.URL).Fetch(context.Background())
		assert.ErrorIs(t, err, pkgerrors.ErrSeedFetch)
	})

	t.Run("Unreachable", func(t *testing.T) {
		_, err := NewFetcher("http://127.0.0.1:1/feed.json").Fetch(context.Background())
		assert.ErrorIs(t, err, pkgerrors.ErrSeedFetch)
	})
}
