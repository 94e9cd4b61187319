package world

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records generation runs. A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec
	phaseSeconds  *prometheus.HistogramVec
	growthPasses  prometheus.Histogram
	mandatoryTier *prometheus.CounterVec
	zonesByRole   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zonegrid",
			Name:      "generations_total",
			Help:      "World generation runs by result.",
		}, []string{"result"}),
		phaseSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zonegrid",
			Name:      "phase_duration_seconds",
			Help:      "Wall time spent per generation phase.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"phase"}),
		growthPasses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "zonegrid",
			Name:      "growth_passes",
			Help:      "Raster passes needed for region growth to cover the grid.",
			Buckets:   prometheus.LinearBuckets(1, 4, 12),
		}),
		mandatoryTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zonegrid",
			Name:      "mandatory_placements_total",
			Help:      "Mandatory zones placed, by fallback tier.",
		}, []string{"tier"}),
		zonesByRole: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zonegrid",
			Name:      "zones_total",
			Help:      "Published zones by role.",
		}, []string{"role"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.phaseSeconds, m.growthPasses, m.mandatoryTier, m.zonesByRole)
	}
	return m
}

func (m *Metrics) observePhase(phase string, start time.Time) {
	if m == nil {
		return
	}
	m.phaseSeconds.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeRun(err error, st Stats) {
	if m == nil {
		return
	}
	if err != nil {
		m.runs.WithLabelValues("error").Inc()
		return
	}
	m.runs.WithLabelValues("ok").Inc()
	m.growthPasses.Observe(float64(st.GrowthPasses))
	for i, n := range st.MandatoryPerTier {
		m.mandatoryTier.WithLabelValues(tierLabels[i]).Add(float64(n))
	}
	for role, n := range st.Roles {
		m.zonesByRole.WithLabelValues(role).Add(float64(n))
	}
}

var tierLabels = [3]string{"same_type", "adjacent", "exhausted"}
