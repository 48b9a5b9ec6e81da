// Package api exposes the planner over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alejandrodnm/cardplanner/internal/adapters/snapshot"
	"github.com/alejandrodnm/cardplanner/internal/adapters/storage"
	"github.com/alejandrodnm/cardplanner/internal/application/planner"
	"github.com/alejandrodnm/cardplanner/internal/domain"
	"github.com/alejandrodnm/cardplanner/internal/metrics"
)

// maxBodyBytes caps snapshot uploads.
const maxBodyBytes = 10 << 20

// Planner is the part of planner.Planner the API serves.
type Planner interface {
	Plan(ctx context.Context, snap domain.Snapshot) (*planner.Result, error)
	HotList(ctx context.Context, snap domain.Snapshot) ([]domain.IPSResult, error)
	MarkPurchased(ctx context.Context, runID, sellerID, cardID string, realizedPrice float64) error
	Run(ctx context.Context, runID string) (domain.RunReport, error)
}

// Handler serves the HTTP endpoints.
type Handler struct {
	planner Planner
}

// NewRouter builds the chi router. m may be nil, in which case /metrics is
// not mounted.
func NewRouter(p Planner, m *metrics.Metrics) http.Handler {
	h := &Handler{planner: p}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if m != nil {
		r.Use(m.Middleware)
		r.Handle("/metrics", m.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "cardplanner"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/plans", h.CreatePlan)
		r.Post("/hotlist", h.HotList)
		r.Get("/runs/{runID}", h.GetRun)
		r.Post("/runs/{runID}/items/{cardID}/purchased", h.MarkPurchased)
	})
	return r
}

// NewServer wraps the router in an http.Server with sane timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// CreatePlan handles POST /api/v1/plans.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	snap, err := decodeSnapshot(w, r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := h.planner.Plan(r.Context(), snap)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HotList handles POST /api/v1/hotlist.
func (h *Handler) HotList(w http.ResponseWriter, r *http.Request) {
	snap, err := decodeSnapshot(w, r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	hot, err := h.planner.HotList(r.Context(), snap)
	if err != nil {
		writeErr(w, err)
		return
	}
	if hot == nil {
		hot = []domain.IPSResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hot_list": hot})
}

// GetRun handles GET /api/v1/runs/{runID}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	rep, err := h.planner.Run(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// PurchaseRequest is the body of a mark-purchased call.
type PurchaseRequest struct {
	SellerID      string   `json:"seller_id"`
	RealizedPrice *float64 `json:"realized_price"`
}

// MarkPurchased handles POST /api/v1/runs/{runID}/items/{cardID}/purchased.
func (h *Handler) MarkPurchased(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SellerID == "" {
		writeError(w, "seller_id is required", http.StatusBadRequest)
		return
	}
	if req.RealizedPrice == nil {
		writeError(w, "realized_price is required", http.StatusBadRequest)
		return
	}

	runID, cardID := chi.URLParam(r, "runID"), chi.URLParam(r, "cardID")
	if err := h.planner.MarkPurchased(r.Context(), runID, req.SellerID, cardID, *req.RealizedPrice); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":         runID,
		"seller_id":      req.SellerID,
		"card_id":        cardID,
		"realized_price": *req.RealizedPrice,
		"purchased":      true,
	})
}

func decodeSnapshot(w http.ResponseWriter, r *http.Request) (domain.Snapshot, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read body: %w", err)
	}
	return snapshot.Parse(body, ".json")
}

// statusFor maps planner errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidDirective), errors.Is(err, planner.ErrInvalidPrice):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrRunNotFound), errors.Is(err, storage.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, planner.ErrNoLedger):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("api: request failed", "err", err)
	}
	writeError(w, err.Error(), status)
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// requestLogger logs one line per request through slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("api: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}
