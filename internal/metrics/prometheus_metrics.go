package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics handles all Prometheus metrics for the market scanner.
type PrometheusMetrics struct {
	// Strategy Detection Metrics
	StrategiesDetected *prometheus.CounterVec
	ScanLatency        *prometheus.HistogramVec

	// Phase / Scheduler Metrics
	PhaseDuration    *prometheus.HistogramVec
	SymbolsScanned   *prometheus.CounterVec
	VolumeFiltered   *prometheus.CounterVec
	SchedulerState   *prometheus.GaugeVec

	// Venue Metrics
	VenueStatus       *prometheus.GaugeVec
	VenueRequestsFail *prometheus.CounterVec

	// Event Sink Metrics
	EventsInserted *prometheus.CounterVec
	EventsDeduped  *prometheus.CounterVec

	// Service Health
	ServiceUptime *prometheus.GaugeVec

	server *http.Server
}

// NewPrometheusMetrics creates a new Prometheus metrics instance.
func NewPrometheusMetrics() *PrometheusMetrics {
	metrics := &PrometheusMetrics{
		StrategiesDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketscanner_strategies_detected_total",
				Help: "Total number of strategy detections, by strategy and timeframe",
			},
			[]string{"venue", "timeframe", "strategy"},
		),

		ScanLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketscanner_symbol_scan_latency_seconds",
				Help:    "Per-symbol scan latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"venue", "timeframe"},
		),

		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketscanner_phase_duration_seconds",
				Help:    "Per-priority-group phase duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"timeframe", "group"},
		),

		SymbolsScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketscanner_symbols_scanned_total",
				Help: "Total number of symbols scanned",
			},
			[]string{"venue", "timeframe"},
		),

		VolumeFiltered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketscanner_symbols_volume_filtered_total",
				Help: "Total number of symbols skipped by the USD volume gate",
			},
			[]string{"venue", "timeframe"},
		),

		SchedulerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketscanner_scheduler_state",
				Help: "Scheduler state (0=idle, 1=scanning, 2=cooling_down)",
			},
			[]string{},
		),

		VenueStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketscanner_venue_status",
				Help: "Venue reachability status (1=healthy, 0=unhealthy)",
			},
			[]string{"venue"},
		),

		VenueRequestsFail: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketscanner_venue_requests_failed_total",
				Help: "Total number of failed venue HTTP requests",
			},
			[]string{"venue", "reason"},
		),

		EventsInserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketscanner_events_inserted_total",
				Help: "Total number of event records newly inserted into the store",
			},
			[]string{"venue", "timeframe"},
		),

		EventsDeduped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketscanner_events_deduped_total",
				Help: "Total number of event records skipped as already present",
			},
			[]string{"venue", "timeframe"},
		),

		ServiceUptime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketscanner_service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
			[]string{"service"},
		),
	}

	prometheus.MustRegister(
		metrics.StrategiesDetected,
		metrics.ScanLatency,
		metrics.PhaseDuration,
		metrics.SymbolsScanned,
		metrics.VolumeFiltered,
		metrics.SchedulerState,
		metrics.VenueStatus,
		metrics.VenueRequestsFail,
		metrics.EventsInserted,
		metrics.EventsDeduped,
		metrics.ServiceUptime,
	)

	return metrics
}

// Start starts the Prometheus metrics HTTP server.
func (m *PrometheusMetrics) Start(port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	m.server = &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	log.Printf("starting prometheus metrics server on port %s", port)

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("prometheus server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the Prometheus metrics server.
func (m *PrometheusMetrics) Stop() error {
	if m.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return m.server.Shutdown(ctx)
}

// RecordStrategyDetected records one strategy detection.
func (m *PrometheusMetrics) RecordStrategyDetected(venue, timeframe, strategy string) {
	m.StrategiesDetected.WithLabelValues(venue, timeframe, strategy).Inc()
}

// RecordScanLatency records one symbol scan's latency.
func (m *PrometheusMetrics) RecordScanLatency(venue, timeframe string, d time.Duration) {
	m.ScanLatency.WithLabelValues(venue, timeframe).Observe(d.Seconds())
}

// RecordPhaseDuration records one priority group's wall-clock duration.
func (m *PrometheusMetrics) RecordPhaseDuration(timeframe, group string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(timeframe, group).Observe(d.Seconds())
}

// RecordSymbolScanned increments the scanned-symbol counter.
func (m *PrometheusMetrics) RecordSymbolScanned(venue, timeframe string) {
	m.SymbolsScanned.WithLabelValues(venue, timeframe).Inc()
}

// RecordVolumeFiltered increments the volume-gated counter.
func (m *PrometheusMetrics) RecordVolumeFiltered(venue, timeframe string) {
	m.VolumeFiltered.WithLabelValues(venue, timeframe).Inc()
}

// SetSchedulerState records the scheduler's current numeric state.
func (m *PrometheusMetrics) SetSchedulerState(state int) {
	m.SchedulerState.WithLabelValues().Set(float64(state))
}

// SetVenueStatus sets one venue's reachability status.
func (m *PrometheusMetrics) SetVenueStatus(venue string, healthy bool) {
	status := 0.0
	if healthy {
		status = 1.0
	}
	m.VenueStatus.WithLabelValues(venue).Set(status)
}

// RecordVenueRequestFailed increments the venue HTTP failure counter.
func (m *PrometheusMetrics) RecordVenueRequestFailed(venue, reason string) {
	m.VenueRequestsFail.WithLabelValues(venue, reason).Inc()
}

// RecordEventInserted increments the newly-inserted event counter.
func (m *PrometheusMetrics) RecordEventInserted(venue, timeframe string) {
	m.EventsInserted.WithLabelValues(venue, timeframe).Inc()
}

// RecordEventDeduped increments the already-present event counter.
func (m *PrometheusMetrics) RecordEventDeduped(venue, timeframe string) {
	m.EventsDeduped.WithLabelValues(venue, timeframe).Inc()
}

// SetServiceUptime sets the service uptime.
func (m *PrometheusMetrics) SetServiceUptime(service string, uptime time.Duration) {
	m.ServiceUptime.WithLabelValues(service).Set(uptime.Seconds())
}
