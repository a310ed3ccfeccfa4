// Package metrics exposes build and cache counters as Prometheus metrics.
// There is no HTTP endpoint; the registry is written out in the text
// exposition format after a run.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/afero"

	"github.com/specialistvlad/stackmark/internal/cache"
	"github.com/specialistvlad/stackmark/internal/incremental"
)

const namespace = "stackmark"

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	nodes         *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec
	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram

	cacheHits      *prometheus.GaugeVec
	cacheMisses    *prometheus.GaugeVec
	cacheEvictions *prometheus.GaugeVec
	cacheErrors    *prometheus.GaugeVec
	cacheSize      *prometheus.GaugeVec
}

var _ incremental.Observer = (*Metrics)(nil)

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	cacheGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, []string{"cache"})
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		nodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "nodes_total",
			Help:      "Nodes processed by incremental builds, by final status.",
		}, []string{"status"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "node_duration_seconds",
			Help:      "Time spent on a single node.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to ~1.6s
		}, []string{"status"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Incremental builds, by result.",
		}, []string{"result"}), // "success" or "failure"
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "duration_seconds",
			Help:      "Wall time of an incremental build.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheHits:      cacheGauge("hits", "Cache hits since start."),
		cacheMisses:    cacheGauge("misses", "Cache misses since start."),
		cacheEvictions: cacheGauge("evictions", "Entries evicted to make room."),
		cacheErrors:    cacheGauge("errors", "Swallowed cache I/O errors."),
		cacheSize:      cacheGauge("size", "Entries currently stored."),
	}

	m.registry.MustRegister(
		m.nodes, m.nodeDuration, m.builds, m.buildDuration,
		m.cacheHits, m.cacheMisses, m.cacheEvictions, m.cacheErrors, m.cacheSize,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// NodeFinished records one node outcome.
func (m *Metrics) NodeFinished(status incremental.Status, d time.Duration) {
	m.nodes.WithLabelValues(string(status)).Inc()
	m.nodeDuration.WithLabelValues(string(status)).Observe(d.Seconds())
}

// BuildFinished records one build outcome.
func (m *Metrics) BuildFinished(stats incremental.Stats) {
	result := "success"
	if !stats.Success {
		result = "failure"
	}
	m.builds.WithLabelValues(result).Inc()
	m.buildDuration.Observe(stats.Duration.Seconds())
}

// ObserveCache copies a cache snapshot into the gauges. Layers of a
// composite cache are reported as "<name>/<layer>".
func (m *Metrics) ObserveCache(name string, s cache.Stats) {
	m.cacheHits.WithLabelValues(name).Set(float64(s.Hits))
	m.cacheMisses.WithLabelValues(name).Set(float64(s.Misses))
	m.cacheEvictions.WithLabelValues(name).Set(float64(s.Evictions))
	m.cacheErrors.WithLabelValues(name).Set(float64(s.Errors))
	m.cacheSize.WithLabelValues(name).Set(float64(s.Size))
	for layer, ls := range s.Layers {
		m.ObserveCache(name+"/"+layer, ls)
	}
}

// WriteText writes every metric in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteFile writes the text format to path.
func (m *Metrics) WriteFile(fs afero.Fs, path string) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	if err := m.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
