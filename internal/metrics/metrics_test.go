package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/stackmark/internal/cache"
	"github.com/specialistvlad/stackmark/internal/incremental"
)

func TestNodeAndBuildMetrics(t *testing.T) {
	m := New()

	m.NodeFinished(incremental.StatusCompiled, 2*time.Millisecond)
	m.NodeFinished(incremental.StatusCompiled, time.Millisecond)
	m.NodeFinished(incremental.StatusSkipped, 0)
	m.BuildFinished(incremental.Stats{Success: true, Duration: time.Second})
	m.BuildFinished(incremental.Stats{Success: false})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.nodes.WithLabelValues("compiled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nodes.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.buildDuration))
}

func TestObserveCache(t *testing.T) {
	m := New()
	m.ObserveCache("compiled", cache.Stats{
		Hits: 3, Misses: 1, Size: 2,
		Layers: map[string]cache.Stats{"disk": {Hits: 1, Errors: 2}},
	})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("compiled")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheSize.WithLabelValues("compiled")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheErrors.WithLabelValues("compiled/disk")))

	expected := `
# HELP stackmark_cache_misses Cache misses since start.
# TYPE stackmark_cache_misses gauge
stackmark_cache_misses{cache="compiled"} 1
stackmark_cache_misses{cache="compiled/disk"} 0
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "stackmark_cache_misses"))
}

func TestWriteText(t *testing.T) {
	m := New()
	m.NodeFinished(incremental.StatusFailed, time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	assert.Contains(t, buf.String(), `stackmark_build_nodes_total{status="failed"} 1`)

	fs := afero.NewMemMapFs()
	require.NoError(t, m.WriteFile(fs, "/metrics.prom"))
	b, err := afero.ReadFile(fs, "/metrics.prom")
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(b))
}
