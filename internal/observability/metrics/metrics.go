package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	namespace = "astracare"
	subsystem = "pipeline"
)

// Run outcomes recorded by ObserveRun.
const (
	OutcomeHeld           = "held"
	OutcomeNoMatch        = "no_match"
	OutcomeNoSlots        = "no_slots"
	OutcomeIntegrityError = "integrity_error"
)

// PipelineMetrics exposes counters/histograms for booking pipeline runs.
type PipelineMetrics struct {
	runsTotal          *prometheus.CounterVec
	runLatency         *prometheus.HistogramVec
	shortlistSize      prometheus.Histogram
	relaxationsTotal   *prometheus.CounterVec
	confirmationsTotal prometheus.Counter
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Total pipeline runs by outcome",
		}, []string{"outcome"}),
		runLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_latency_seconds",
			Help:      "Latency of a pipeline run including session load and save",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"outcome"}),
		shortlistSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "shortlist_size",
			Help:      "Number of providers shortlisted per run",
			Buckets:   prometheus.LinearBuckets(0, 1, 6),
		}),
		relaxationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slot_relaxations_total",
			Help:      "Slot constraints relaxed to find a hold",
		}, []string{"constraint"}),
		confirmationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "confirmations_total",
			Help:      "Held drafts confirmed into appointments",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.runLatency, m.shortlistSize, m.relaxationsTotal, m.confirmationsTotal)
	return m
}

func (m *PipelineMetrics) ObserveRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *PipelineMetrics) ObserveShortlist(size int) {
	if m == nil {
		return
	}
	m.shortlistSize.Observe(float64(size))
}

func (m *PipelineMetrics) ObserveRelaxed(constraints ...string) {
	if m == nil {
		return
	}
	for _, c := range constraints {
		m.relaxationsTotal.WithLabelValues(c).Inc()
	}
}

func (m *PipelineMetrics) ObserveConfirmation() {
	if m == nil {
		return
	}
	m.confirmationsTotal.Inc()
}

// Snapshot is a point-in-time summary of the pipeline counters.
type Snapshot struct {
	Runs          map[string]int64 `json:"runs"`
	Relaxations   map[string]int64 `json:"relaxations"`
	Confirmations int64            `json:"confirmations"`
	MeanLatencyMs float64          `json:"mean_latency_ms"`
}

// TakeSnapshot reads the pipeline families from gatherer. Missing families
// leave their fields zero.
func TakeSnapshot(gatherer prometheus.Gatherer) Snapshot {
	out := Snapshot{Runs: map[string]int64{}, Relaxations: map[string]int64{}}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return out
	}

	var latencySum float64
	var latencyCount uint64
	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case prometheus.BuildFQName(namespace, subsystem, "runs_total"):
			sumCounters(mf, "outcome", out.Runs)
		case prometheus.BuildFQName(namespace, subsystem, "slot_relaxations_total"):
			sumCounters(mf, "constraint", out.Relaxations)
		case prometheus.BuildFQName(namespace, subsystem, "confirmations_total"):
			for _, metric := range mf.Metric {
				if c := metric.GetCounter(); c != nil {
					out.Confirmations += int64(c.GetValue())
				}
			}
		case prometheus.BuildFQName(namespace, subsystem, "run_latency_seconds"):
			for _, metric := range mf.Metric {
				if h := metric.GetHistogram(); h != nil {
					latencySum += h.GetSampleSum()
					latencyCount += h.GetSampleCount()
				}
			}
		}
	}
	if latencyCount > 0 {
		out.MeanLatencyMs = latencySum / float64(latencyCount) * 1000
	}
	return out
}

func sumCounters(mf *dto.MetricFamily, label string, into map[string]int64) {
	for _, metric := range mf.Metric {
		if metric == nil || metric.GetCounter() == nil {
			continue
		}
		into[labelValue(metric, label)] += int64(metric.GetCounter().GetValue())
	}
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
