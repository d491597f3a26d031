package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketFor(t *testing.T) {
	cases := []struct {
		price float64
		want  string
	}{
		{0, "0-100"},
		{100, "0-100"},
		{100.5, "101-200"},
		{101, "101-200"},
		{500, "401-500"},
		{900, "801-900"},
		{901, "901-above"},
		{1000, "901-above"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, BucketFor(c.price), "price %v", c.price)
	}
}

func TestPriceHistogramMarshalJSON(t *testing.T) {
	h := PriceHistogram{"0-100": 3, "901-above": 7}
	raw, err := json.Marshal(h)
	assert.NoError(t, err)
	// All ten labels present, in bucket order, missing ones zero-filled.
	assert.JSONEq(t, `{
		"0-100":3,"101-200":0,"201-300":0,"301-400":0,"401-500":0,
		"501-600":0,"601-700":0,"701-800":0,"801-900":0,"901-above":7
	}`, string(raw))
	assert.Equal(t, byte('{'), raw[0])
	assert.Contains(t, string(raw), `"0-100":3,"101-200":0`)
}

func TestCategoryBreakdownRoundTrip(t *testing.T) {
	breakdown := CategoryBreakdown{
		{Category: "electronics", Count: 5},
		{Category: "Electronics", Count: 2}, // case is not normalized
		{Category: "men's clothing", Count: 1},
	}
	raw, err := json.Marshal(breakdown)
	assert.NoError(t, err)
	assert.Equal(t, `{"electronics":5,"Electronics":2,"men's clothing":1}`, string(raw))

	var decoded CategoryBreakdown
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, breakdown, decoded)
}

func TestCategoryBreakdownEmpty(t *testing.T) {
	raw, err := json.Marshal(CategoryBreakdown{})
	assert.NoError(t, err)
	assert.Equal(t, `{}`, string(raw))
}
