// Package observability — metrics.go
//
// Prometheus metrics for the polykernel agent.
//
// Endpoint: GET /metrics on 127.0.0.1:9091 (configurable).
// Format: Prometheus text exposition format (OpenMetrics compatible).
// Bind: loopback only — no external exposure.
//
// Metric naming convention: polykernel_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process.
//
// Cardinality control:
//   - State labels use the string state name (bounded small enums).
//   - Agent ID is NOT used as a label (unbounded cardinality).
//   - Per-agent metrics are aggregated before recording.

package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric descriptors for polykernel.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Pipeline ─────────────────────────────────────────────────────────────

	// ActionsProcessedTotal counts actions run through ProcessAction.
	// Labels: decision (allow, transform, block)
	ActionsProcessedTotal *prometheus.CounterVec

	// ActionsRejectedTotal counts actions rejected at the input-shape stage.
	ActionsRejectedTotal prometheus.Counter

	// TrackedAgents is the current number of agent entries held in memory.
	TrackedAgents prometheus.Gauge

	// ─── Detection bank ───────────────────────────────────────────────────────

	// CombinedRiskHistogram records the distribution of combined detection scores.
	CombinedRiskHistogram prometheus.Histogram

	// DetectorFlagsTotal counts per-detector flags raised.
	// Labels: detector (phase, curvature, lissajous, decimal_drift, six_tonic)
	DetectorFlagsTotal *prometheus.CounterVec

	// ─── Immune model ─────────────────────────────────────────────────────────

	// ImmuneStateTransitionsTotal counts immune-state transitions.
	// Labels: from_state, to_state
	ImmuneStateTransitionsTotal *prometheus.CounterVec

	// QuarantinedAgents is the current number of agents in the quarantined state.
	QuarantinedAgents prometheus.Gauge

	// ─── Flux controller ──────────────────────────────────────────────────────

	// FluxValueHistogram records the distribution of post-evolve flux values.
	FluxValueHistogram prometheus.Histogram

	// FluxSnapsTotal counts flux-contraction snap events.
	FluxSnapsTotal prometheus.Counter

	// ─── Key chain / geodesic monitor ─────────────────────────────────────────

	// IntrusionsTotal counts geodesic-monitor intrusion flags.
	IntrusionsTotal prometheus.Counter

	// LanguesEscalationsTotal counts monitor-window escalations.
	LanguesEscalationsTotal prometheus.Counter

	// ─── Dual lattice ──────────────────────────────────────────────────────────

	// LatticeCoherenceHistogram records the distribution of coherence scores.
	LatticeCoherenceHistogram prometheus.Histogram

	// LatticeRejectionsTotal counts lattice validations that failed.
	LatticeRejectionsTotal prometheus.Counter

	// ─── Torus memory gate ─────────────────────────────────────────────────────

	// TorusSnapsTotal counts torus gate snap (memory-write) events.
	TorusSnapsTotal prometheus.Counter

	// ─── Quorum ────────────────────────────────────────────────────────────────

	// QuorumEvaluationsTotal counts quorum evaluations performed.
	// Labels: reached (true, false)
	QuorumEvaluationsTotal *prometheus.CounterVec

	// ─── Transport ─────────────────────────────────────────────────────────────

	// EnvelopesReceivedTotal counts received broadcast envelopes.
	// Labels: accepted (true, false)
	EnvelopesReceivedTotal *prometheus.CounterVec

	// EnvelopesSentTotal counts sent broadcast envelopes.
	EnvelopesSentTotal prometheus.Counter

	// ─── Audit / storage ────────────────────────────────────────────────────────

	// StorageWriteLatency records BoltDB write transaction latency.
	StorageWriteLatency prometheus.Histogram

	// AuditChainLength is the current number of retained audit entries.
	AuditChainLength prometheus.Gauge

	// ─── Agent runtime ──────────────────────────────────────────────────────────

	// UptimeSeconds is the number of seconds since the kernel started.
	UptimeSeconds prometheus.Gauge

	// startTime records when the kernel started (for uptime calculation).
	startTime time.Time
}

// NewMetrics creates and registers all polykernel Prometheus metrics.
// Returns a *Metrics with all descriptors initialised.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		ActionsProcessedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polykernel",
			Subsystem: "pipeline",
			Name:      "actions_processed_total",
			Help:      "Total actions run through the kernel pipeline, by decision.",
		}, []string{"decision"}),

		ActionsRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polykernel",
			Subsystem: "pipeline",
			Name:      "actions_rejected_total",
			Help:      "Total actions rejected at the input-shape validation stage.",
		}),

		TrackedAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "polykernel",
			Subsystem: "pipeline",
			Name:      "tracked_agents",
			Help:      "Current number of agent entries held in memory.",
		}),

		CombinedRiskHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "polykernel",
			Subsystem: "detection",
			Name:      "combined_risk",
			Help:      "Distribution of combined detection-bank risk scores.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.85, 0.95},
		}),

		DetectorFlagsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polykernel",
			Subsystem: "detection",
			Name:      "detector_flags_total",
			Help:      "Total flags raised, by detector.",
		}, []string{"detector"}),

		ImmuneStateTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polykernel",
			Subsystem: "immune",
			Name:      "state_transitions_total",
			Help:      "Total immune-model state transitions, by from_state and to_state.",
		}, []string{"from_state", "to_state"}),

		QuarantinedAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "polykernel",
			Subsystem: "immune",
			Name:      "quarantined_agents",
			Help:      "Current number of agents in the quarantined immune state.",
		}),

		FluxValueHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "polykernel",
			Subsystem: "flux",
			Name:      "value",
			Help:      "Distribution of post-evolve flux values in [0,1].",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),

		FluxSnapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polykernel",
			Subsystem: "flux",
			Name:      "snaps_total",
			Help:      "Total flux-contraction snap events.",
		}),

		IntrusionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polykernel",
			Subsystem: "keychain",
			Name:      "intrusions_total",
			Help:      "Total geodesic-monitor intrusion flags.",
		}),

		LanguesEscalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polykernel",
			Subsystem: "keychain",
			Name:      "languues_escalations_total",
			Help:      "Total monitor-window escalations triggered by intrusion rate.",
		}),

		LatticeCoherenceHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "polykernel",
			Subsystem: "lattice",
			Name:      "coherence",
			Help:      "Distribution of dual-lattice coherence scores.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),

		LatticeRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polykernel",
			Subsystem: "lattice",
			Name:      "rejections_total",
			Help:      "Total lattice validations that failed the coherence threshold.",
		}),

		TorusSnapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polykernel",
			Subsystem: "torus",
			Name:      "snaps_total",
			Help:      "Total torus memory-gate snap events.",
		}),

		QuorumEvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polykernel",
			Subsystem: "quorum",
			Name:      "evaluations_total",
			Help:      "Total BFT quorum evaluations, by whether quorum was reached.",
		}, []string{"reached"}),

		EnvelopesReceivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polykernel",
			Subsystem: "transport",
			Name:      "envelopes_received_total",
			Help:      "Total broadcast envelopes received, by acceptance status.",
		}, []string{"accepted"}),

		EnvelopesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polykernel",
			Subsystem: "transport",
			Name:      "envelopes_sent_total",
			Help:      "Total broadcast envelopes sent to peers.",
		}),

		StorageWriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "polykernel",
			Subsystem: "storage",
			Name:      "write_latency_seconds",
			Help:      "BoltDB write transaction latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		AuditChainLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "polykernel",
			Subsystem: "audit",
			Name:      "chain_length",
			Help:      "Current number of retained audit log entries.",
		}),

		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "polykernel",
			Subsystem: "kernel",
			Name:      "uptime_seconds",
			Help:      "Number of seconds since the kernel started.",
		}),
	}

	// Register all metrics with the dedicated registry.
	reg.MustRegister(
		m.ActionsProcessedTotal,
		m.ActionsRejectedTotal,
		m.TrackedAgents,
		m.CombinedRiskHistogram,
		m.DetectorFlagsTotal,
		m.ImmuneStateTransitionsTotal,
		m.QuarantinedAgents,
		m.FluxValueHistogram,
		m.FluxSnapsTotal,
		m.IntrusionsTotal,
		m.LanguesEscalationsTotal,
		m.LatticeCoherenceHistogram,
		m.LatticeRejectionsTotal,
		m.TorusSnapsTotal,
		m.QuorumEvaluationsTotal,
		m.EnvelopesReceivedTotal,
		m.EnvelopesSentTotal,
		m.StorageWriteLatency,
		m.AuditChainLength,
		m.UptimeSeconds,
		// Standard Go runtime metrics.
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on the given address.
// Blocks until ctx is cancelled or the server fails.
// The server binds to addr (e.g., "127.0.0.1:9091") and serves GET /metrics.
// Returns an error only if the server fails to start or encounters a fatal error.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start uptime updater goroutine.
	go m.updateUptime(ctx)

	// Shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

// updateUptime periodically updates the UptimeSeconds gauge.
func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.UptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}
