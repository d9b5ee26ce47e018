// Package metrics records run statistics as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/sawpanic/pinevolume/internal/exchange"
)

// Recorder holds all Prometheus metrics of one generation run
type Recorder struct {
	registry *prometheus.Registry

	PairsFetched   *prometheus.GaugeVec
	PairsKept      *prometheus.GaugeVec
	FetchFailures  *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	ScriptBranches prometheus.Gauge
	ScriptScopes   prometheus.Gauge
	ScopeExceeded  prometheus.Gauge
}

// NewRecorder creates a recorder backed by its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		PairsFetched: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pinevolume_pairs_fetched",
				Help: "Pairs listed by each exchange before pruning",
			},
			[]string{"exchange"},
		),

		PairsKept: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pinevolume_pairs_kept",
				Help: "Pairs remaining per exchange after each pruning stage",
			},
			[]string{"exchange", "stage"},
		),

		FetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinevolume_fetch_failures_total",
				Help: "Failed pair listing fetches by exchange and kind",
			},
			[]string{"exchange", "kind"},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pinevolume_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),

		ScriptBranches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pinevolume_script_branches",
				Help: "Conditional branches in the generated script",
			},
		),

		ScriptScopes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pinevolume_script_scopes",
				Help: "Estimated local scopes in the generated script",
			},
		),

		ScopeExceeded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pinevolume_script_scope_limit_exceeded",
				Help: "1 if the generated script exceeds the platform scope limit",
			},
		),
	}

	r.registry.MustRegister(
		r.PairsFetched,
		r.PairsKept,
		r.FetchFailures,
		r.StageDuration,
		r.ScriptBranches,
		r.ScriptScopes,
		r.ScopeExceeded,
	)
	return r
}

// RecordFetched sets the raw pair count of ex
func (r *Recorder) RecordFetched(ex exchange.Exchange, n int) {
	r.PairsFetched.WithLabelValues(ex.String()).Set(float64(n))
}

// RecordKept sets the pair count of ex after stage
func (r *Recorder) RecordKept(ex exchange.Exchange, stage string, n int) {
	r.PairsKept.WithLabelValues(ex.String(), stage).Set(float64(n))
}

// RecordFailure counts a failed fetch of the given kind
func (r *Recorder) RecordFailure(ex exchange.Exchange, kind string) {
	r.FetchFailures.WithLabelValues(ex.String(), kind).Inc()
}

// RecordStage observes how long stage took since start
func (r *Recorder) RecordStage(stage string, start time.Time) {
	r.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordScript sets the generated script statistics
func (r *Recorder) RecordScript(branches, scopes int, exceeded bool) {
	r.ScriptBranches.Set(float64(branches))
	r.ScriptScopes.Set(float64(scopes))
	if exceeded {
		r.ScopeExceeded.Set(1)
	} else {
		r.ScopeExceeded.Set(0)
	}
}

// WriteTextfile writes every metric in the text exposition format, for node_exporter's
// textfile collector
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Value returns the current value of the gauge or counter name whose labels match exactly
func (r *Recorder) Value(name string, labels map[string]string) (float64, bool) {
	families, err := r.registry.Gather()
	if err != nil {
		return 0, false
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if !labelsMatch(m, labels) {
				continue
			}
			switch family.GetType() {
			case dto.MetricType_GAUGE:
				return m.GetGauge().GetValue(), true
			case dto.MetricType_COUNTER:
				return m.GetCounter().GetValue(), true
			case dto.MetricType_HISTOGRAM:
				return float64(m.GetHistogram().GetSampleCount()), true
			}
		}
	}
	return 0, false
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	if len(m.GetLabel()) != len(want) {
		return false
	}
	for _, pair := range m.GetLabel() {
		if want[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}
