package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// MonthlyStatistics summarizes one calendar month of sales.
type MonthlyStatistics struct {
	TotalSaleAmount   float64 `json:"totalSaleAmount"`
	TotalSoldItems    int64   `json:"totalSoldItems"`
	TotalNotSoldItems int64   `json:"totalNotSoldItems"`
}

// PriceBucket is one fixed histogram range. Upper is the inclusive upper
// bound; the last bucket is open-ended.
type PriceBucket struct {
	Label string
	Upper float64
}

// PriceBuckets are the ten histogram ranges, in emission order. Together they
// cover every non-negative price: a price falls into the first bucket whose
// upper bound it does not exceed.
var PriceBuckets = []PriceBucket{
	{"0-100", 100},
	{"101-200", 200},
	{"201-300", 300},
	{"301-400", 400},
	{"401-500", 500},
	{"501-600", 600},
	{"601-700", 700},
	{"701-800", 800},
	{"801-900", 900},
	{"901-above", math.Inf(1)},
}

// BucketFor returns the histogram label for a price.
func BucketFor(price float64) string {
	for _, b := range PriceBuckets {
		if price <= b.Upper {
			return b.Label
		}
	}
	return PriceBuckets[len(PriceBuckets)-1].Label
}

// PriceHistogram maps bucket label to count. All ten labels are emitted even
// when zero, in bucket order.
type PriceHistogram map[string]int64

func (h PriceHistogram) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, b := range PriceBuckets {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:%d", b.Label, h[b.Label])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// CategoryCount is one category slice of the pie chart.
type CategoryCount struct {
	Category string
	Count    int64
}

// CategoryBreakdown lists observed categories with counts, in first-occurrence
// order. It marshals as a JSON object to keep the original wire shape.
type CategoryBreakdown []CategoryCount

func (c CategoryBreakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cc := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(cc.Category)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		fmt.Fprintf(&buf, ":%d", cc.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores the object form produced by MarshalJSON, preserving
// key order. Needed to round-trip cached reports.
func (c *CategoryBreakdown) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("category breakdown: expected object, got %v", tok)
	}
	out := CategoryBreakdown{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("category breakdown: expected string key, got %v", keyTok)
		}
		var count int64
		if err := dec.Decode(&count); err != nil {
			return err
		}
		out = append(out, CategoryCount{Category: key, Count: count})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// CombinedReport composes the three monthly reports into one payload.
type CombinedReport struct {
	Statistics   MonthlyStatistics `json:"statistics"`
	BarChartData PriceHistogram    `json:"barChartData"`
	PieChartData CategoryBreakdown `json:"pieChartData"`
}
