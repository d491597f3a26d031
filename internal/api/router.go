package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	stderrors "errors"

	"github.com/mkravets/sales-insights-service/internal/models"
	service "github.com/mkravets/sales-insights-service/internal/services"
	pkgerrors "github.com/mkravets/sales-insights-service/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(RequestCounter, RequestDuration)
}

type transactionsResponse struct {
	Transactions []models.Transaction `json:"transactions"`
	Total        int64                `json:"total"`
	TotalPages   int64                `json:"totalPages"`
	Page         int                  `json:"page"`
	PerPage      int                  `json:"perPage"`
}

func SetupRouter(reportSvc service.ReportService, seedSvc service.SeedService, metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	// Middleware for metrics and CORS. The original consumer is a browser
	// dashboard, so cross-origin GETs must be allowed.
	wrap := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			endpoint := r.URL.Path
			method := r.Method

			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			recorder := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			status := fmt.Sprintf("%d", recorder.status)
			RequestCounter.WithLabelValues(method, endpoint, status).Inc()
			RequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
		}
	}

	mux.HandleFunc("/initialize", wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		count, err := seedSvc.Reseed(r.Context())
		if err != nil {
			slog.Error("reseed failed", "error", err)
			http.Error(w, "failed to initialize database", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "database initialized with %d transactions", count)
	}))

	mux.HandleFunc("/transactions", wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		year, month, err := parseYearMonth(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		page, err := parsePositive(r, "page", 1)
		if err != nil {
			http.Error(w, pkgerrors.ErrInvalidPage.Error(), http.StatusBadRequest)
			return
		}
		perPage, err := parsePositive(r, "perPage", 10)
		if err != nil {
			http.Error(w, pkgerrors.ErrInvalidPerPage.Error(), http.StatusBadRequest)
			return
		}
		result, err := reportSvc.ListTransactions(r.Context(), year, month, r.URL.Query().Get("search"), page, perPage)
		if err != nil {
			slog.Error("list transactions failed", "year", year, "month", month, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, transactionsResponse{
			Transactions: result.Transactions,
			Total:        result.Total,
			TotalPages:   result.TotalPages,
			Page:         result.Page,
			PerPage:      result.PerPage,
		})
	}))

	mux.HandleFunc("/statistics", wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		year, month, err := parseYearMonth(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		stats, err := reportSvc.MonthlyStatistics(r.Context(), year, month)
		if err != nil {
			slog.Error("statistics failed", "year", year, "month", month, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, stats)
	}))

	mux.HandleFunc("/bar-chart", wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		year, month, err := parseYearMonth(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		histogram, err := reportSvc.PriceHistogram(r.Context(), year, month)
		if err != nil {
			slog.Error("bar chart failed", "year", year, "month", month, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, histogram)
	}))

	mux.HandleFunc("/pie-chart", wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		year, month, err := parseYearMonth(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		breakdown, err := reportSvc.CategoryBreakdown(r.Context(), year, month)
		if err != nil {
			slog.Error("pie chart failed", "year", year, "month", month, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, breakdown)
	}))

	mux.HandleFunc("/combined-data", wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		year, month, err := parseYearMonth(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		combined, err := reportSvc.CombinedReport(r.Context(), year, month)
		if err != nil {
			slog.Error("combined report failed", "year", year, "month", month, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, combined)
	}))

	mux.HandleFunc("/create-transaction", wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var tx models.Transaction
		if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		if err := tx.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := seedSvc.CreateTransaction(r.Context(), &tx); err != nil {
			slog.Error("create transaction failed", "id", tx.ID, "error", err)
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(tx)
	}))

	mux.HandleFunc("/healthz", wrap(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	mux.Handle("/metrics", metricsHandler)
	return mux
}

func parseYearMonth(r *http.Request) (int, int, error) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		return 0, 0, pkgerrors.ErrInvalidYear
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		return 0, 0, pkgerrors.ErrInvalidMonth
	}
	return year, month, nil
}

func parsePositive(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps service errors onto the observed HTTP contract: argument
// errors are 400, duplicate ids 409, everything else a generic 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, pkgerrors.ErrInvalidYear),
		stderrors.Is(err, pkgerrors.ErrInvalidMonth),
		stderrors.Is(err, pkgerrors.ErrInvalidPage),
		stderrors.Is(err, pkgerrors.ErrInvalidPerPage),
		stderrors.Is(err, pkgerrors.ErrInvalidTransaction):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case stderrors.Is(err, pkgerrors.ErrDuplicateID):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
