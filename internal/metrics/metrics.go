// Package metrics provides Prometheus instrumentation for the planner.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// Metrics holds every collector on its own registry so tests and multiple
// servers never collide on the global one.
type Metrics struct {
	reg *prometheus.Registry

	PlansTotal       *prometheus.CounterVec
	PlanDuration     prometheus.Histogram
	PlanSpend        prometheus.Histogram
	UnmetUnits       prometheus.Gauge
	BudgetExceeded   prometheus.Counter
	HotListCards     *prometheus.GaugeVec
	SourceFetches    *prometheus.CounterVec
	SourceLatency    *prometheus.HistogramVec
	OffersFetched    *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	ItemsPurchased   prometheus.Counter
	HTTPRequests     *prometheus.CounterVec
	HTTPRequestDelay *prometheus.HistogramVec
}

// New registers the planner collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		PlansTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardplanner_plans_total",
			Help: "Planning runs by mode and outcome",
		}, []string{"mode", "outcome"}),
		PlanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardplanner_plan_duration_seconds",
			Help:    "End-to-end planning duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PlanSpend: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardplanner_plan_spend_dollars",
			Help:    "Predicted total spend per plan",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		UnmetUnits: f.NewGauge(prometheus.GaugeOpts{
			Name: "cardplanner_unmet_units",
			Help: "Demand units left unmet by the last plan",
		}),
		BudgetExceeded: f.NewCounter(prometheus.CounterOpts{
			Name: "cardplanner_hard_budget_exceeded_total",
			Help: "Plans whose STRICT budget was exceeded",
		}),
		HotListCards: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cardplanner_hotlist_cards",
			Help: "Cards in the last hot list by tier",
		}, []string{"tier"}),
		SourceFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardplanner_source_fetches_total",
			Help: "Marketplace fetches by source and status",
		}, []string{"source", "status"}),
		SourceLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cardplanner_source_fetch_seconds",
			Help:    "Marketplace fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		OffersFetched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardplanner_offers_fetched_total",
			Help: "Offers returned per marketplace",
		}, []string{"source"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardplanner_offer_cache_lookups_total",
			Help: "Offer cache lookups by result",
		}, []string{"result"}),
		ItemsPurchased: f.NewCounter(prometheus.CounterOpts{
			Name: "cardplanner_items_purchased_total",
			Help: "Run items marked purchased",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardplanner_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDelay: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cardplanner_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "path"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// SourceFetched implements marketplace.Recorder.
func (m *Metrics) SourceFetched(source string, took time.Duration, offers int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SourceFetches.WithLabelValues(source, status).Inc()
	m.SourceLatency.WithLabelValues(source).Observe(took.Seconds())
	if err == nil {
		m.OffersFetched.WithLabelValues(source).Add(float64(offers))
	}
}

// CacheLookup implements marketplace.Recorder.
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// PlanCompleted records a finished plan.
func (m *Metrics) PlanCompleted(plan *domain.PurchasePlan, took time.Duration) {
	m.PlansTotal.WithLabelValues(string(plan.Meta.Mode), "ok").Inc()
	m.PlanDuration.Observe(took.Seconds())
	m.PlanSpend.Observe(plan.Summary.OverallTotal)
	m.UnmetUnits.Set(float64(plan.UnmetUnits()))
	if plan.Budget != nil && plan.Budget.HardBudgetExceeded {
		m.BudgetExceeded.Inc()
	}
}

// PlanFailed records a planning run that returned an error.
func (m *Metrics) PlanFailed(mode domain.PlanMode) {
	m.PlansTotal.WithLabelValues(string(mode), "error").Inc()
}

// HotListGenerated records the tier mix of a hot list.
func (m *Metrics) HotListGenerated(results []domain.IPSResult) {
	counts := map[domain.Tier]int{domain.TierA: 0, domain.TierB: 0, domain.TierC: 0}
	for _, r := range results {
		counts[r.Tier]++
	}
	for tier, n := range counts {
		m.HotListCards.WithLabelValues(string(tier)).Set(float64(n))
	}
}

// ItemPurchased records a run item marked purchased.
func (m *Metrics) ItemPurchased() {
	m.ItemsPurchased.Inc()
}

// Handler returns the Prometheus metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Middleware returns an HTTP middleware that records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// route pattern keeps label cardinality bounded
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		m.HTTPRequestDelay.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
