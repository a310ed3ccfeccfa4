package invalidate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/specialistvlad/stackmark/internal/depgraph"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	evicted []string
	cleared int
}

func (r *recorder) Evict(_ context.Context, n depgraph.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted = append(r.evicted, n.ID)
}

func (r *recorder) Clear(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared++
}

var modTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// site builds:
//
//	file:/p/tokens.hcl <- token:color.primary <- component:button <- component:page
//	file:/p/components/button.hcl <- component:button
//	file:/p/components/card.hcl <- component:card
func site(t *testing.T) (*Engine, afero.Fs, *recorder) {
	t.Helper()
	fs := afero.NewMemMapFs()
	g := depgraph.New()

	files := map[string]string{
		"/p/tokens.hcl":            `tokens { color = { primary = "#00f" } }`,
		"/p/components/button.hcl": `component "button" {}`,
		"/p/components/card.hcl":   `component "card" {}`,
	}
	for path, body := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(body), 0o644))
		require.NoError(t, fs.Chtimes(path, modTime, modTime))
		g.AddNode(depgraph.Node{ID: depgraph.FileID(path), Kind: depgraph.KindFile, Meta: depgraph.Meta{
			Path: path, ContentHash: digest.FromString(body), ModTime: modTime,
		}})
	}
	g.AddNode(depgraph.Node{ID: "token:color.primary", Kind: depgraph.KindToken})
	for _, c := range []string{"button", "card", "page"} {
		g.AddNode(depgraph.Node{ID: depgraph.ComponentID(c), Kind: depgraph.KindComponent, Meta: depgraph.Meta{Component: c}})
	}
	require.NoError(t, g.AddEdge("token:color.primary", "file:/p/tokens.hcl"))
	require.NoError(t, g.AddEdge("component:button", "token:color.primary"))
	require.NoError(t, g.AddEdge("component:button", "file:/p/components/button.hcl"))
	require.NoError(t, g.AddEdge("component:card", "file:/p/components/card.hcl"))
	require.NoError(t, g.AddEdge("component:page", "component:button"))

	e := NewEngine(g, fs)
	rec := &recorder{}
	e.RegisterEvictor(depgraph.KindComponent, rec)
	e.RegisterEvictor(depgraph.KindToken, rec)
	e.RegisterClearer(rec)
	return e, fs, rec
}

func TestDependencyBased_Closure(t *testing.T) {
	e, _, rec := site(t)

	res, err := e.Invalidate(context.Background(), Request{Strategy: DependencyBased, Targets: []string{"/p/tokens.hcl"}})
	require.NoError(t, err)

	assert.Equal(t, DependencyBased, res.Strategy)
	assert.Equal(t, []string{"component:button", "component:page", "file:/p/tokens.hcl", "token:color.primary"}, res.Invalidated)
	assert.Equal(t, []string{"file:/p/tokens.hcl"}, res.Metadata.Seeds)
	assert.Equal(t, 3, res.Metadata.Expanded)
	assert.ElementsMatch(t, []string{"component:button", "component:page", "token:color.primary"}, rec.evicted)
	assert.Equal(t, 3, res.Metadata.Evictions)

	// No transitive dependent escapes.
	for _, id := range res.Invalidated {
		for _, dep := range e.Graph().TransitiveDependents(id) {
			assert.Contains(t, res.Invalidated, dep)
		}
	}
}

func TestDependencyBased_UnknownTargets(t *testing.T) {
	e, _, _ := site(t)
	res, err := e.Invalidate(context.Background(), Request{Strategy: DependencyBased, Targets: []string{"component:card", "nope"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"component:card"}, res.Invalidated)
	assert.Equal(t, []string{"nope"}, res.Metadata.Unknown)
}

func TestContentHash(t *testing.T) {
	e, fs, _ := site(t)
	ctx := context.Background()

	res, err := e.Invalidate(ctx, Request{Strategy: ContentHash, Targets: []string{"/p/tokens.hcl", "/p/components/card.hcl"}})
	require.NoError(t, err)
	assert.Empty(t, res.Invalidated, "nothing changed yet")

	require.NoError(t, afero.WriteFile(fs, "/p/components/card.hcl", []byte(`component "card" { v = 2 }`), 0o644))
	res, err = e.Invalidate(ctx, Request{Strategy: ContentHash, Targets: []string{"/p/tokens.hcl", "/p/components/card.hcl"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"component:card", "file:/p/components/card.hcl"}, res.Invalidated)
}

func TestTimestamp(t *testing.T) {
	e, fs, _ := site(t)
	ctx := context.Background()

	later := modTime.Add(time.Hour)
	require.NoError(t, fs.Chtimes("/p/components/button.hcl", later, later))

	res, err := e.Invalidate(ctx, Request{Strategy: Timestamp})
	require.NoError(t, err)
	assert.Equal(t, []string{"component:button", "component:page", "file:/p/components/button.hcl"}, res.Invalidated)

	res, err = e.Invalidate(ctx, Request{Strategy: Timestamp, Since: later.Add(time.Minute)})
	require.NoError(t, err)
	assert.Empty(t, res.Invalidated)

	require.NoError(t, fs.Remove("/p/components/card.hcl"))
	res, err = e.Invalidate(ctx, Request{Strategy: Timestamp, Targets: []string{"/p/components/card.hcl"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"component:card", "file:/p/components/card.hcl"}, res.Invalidated)
}

func TestPattern(t *testing.T) {
	e, _, _ := site(t)
	ctx := context.Background()

	res, err := e.Invalidate(ctx, Request{Strategy: Pattern, Targets: []string{"component:ca*"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"component:card"}, res.Invalidated)

	res, err = e.Invalidate(ctx, Request{Strategy: Pattern, Targets: []string{"/p/components/**"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"component:button", "component:card", "component:page", "file:/p/components/button.hcl", "file:/p/components/card.hcl"}, res.Invalidated)

	res, err = e.Invalidate(ctx, Request{Strategy: Pattern, Targets: []string{"primary", "zzz"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"component:button", "component:page", "token:color.primary"}, res.Invalidated)
	assert.Equal(t, []string{"zzz"}, res.Metadata.Unknown)

	_, err = e.Invalidate(ctx, Request{Strategy: Pattern, Targets: []string{"component:["}})
	assert.ErrorContains(t, err, "invalid pattern")
}

func TestSelective(t *testing.T) {
	e, _, _ := site(t)
	res, err := e.Invalidate(context.Background(), Request{
		Strategy:   Selective,
		Files:      []string{"/p/components/card.hcl"},
		Tokens:     []string{"color.primary"},
		Components: []string{"page", "ghost"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"component:button", "component:card", "component:page", "file:/p/components/card.hcl", "token:color.primary"}, res.Invalidated)
	assert.Equal(t, []string{"ghost"}, res.Metadata.Unknown)
}

func TestBatch_DeduplicatesAndAggregatesErrors(t *testing.T) {
	e, _, rec := site(t)
	res, err := e.Invalidate(context.Background(), Request{Strategy: Batch, Parts: []Request{
		{Strategy: DependencyBased, Targets: []string{"component:button"}},
		{Strategy: Selective, Components: []string{"button", "page"}},
		{Strategy: "mystery"},
	}})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	require.NotNil(t, res, "resolved parts are still evicted")
	assert.Equal(t, []string{"component:button", "component:page"}, res.Invalidated)
	assert.Equal(t, []string{"component:button", "component:page"}, res.Metadata.Seeds)
	assert.Len(t, rec.evicted, 2, "each node evicted once")
}

func TestGlobal(t *testing.T) {
	e, _, rec := site(t)
	res, err := e.Invalidate(context.Background(), Request{Strategy: Global})
	require.NoError(t, err)
	assert.Len(t, res.Invalidated, 7)
	assert.Equal(t, 1, rec.cleared)
	assert.Empty(t, rec.evicted)
}

func TestUnknownStrategy(t *testing.T) {
	e, _, _ := site(t)
	_, err := e.Invalidate(context.Background(), Request{Strategy: "regex"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestAuto(t *testing.T) {
	ctx := context.Background()

	t.Run("all", func(t *testing.T) {
		e, _, rec := site(t)
		res, err := e.Auto(ctx, ":all")
		require.NoError(t, err)
		assert.Equal(t, Global, res.Strategy)
		assert.Equal(t, 1, rec.cleared)
	})

	t.Run("pattern", func(t *testing.T) {
		e, _, _ := site(t)
		res, err := e.Auto(ctx, "component:c*")
		require.NoError(t, err)
		assert.Equal(t, Pattern, res.Strategy)
	})

	t.Run("plain", func(t *testing.T) {
		e, _, _ := site(t)
		res, err := e.Auto(ctx, "/p/components/card.hcl")
		require.NoError(t, err)
		assert.Equal(t, DependencyBased, res.Strategy)
		assert.Equal(t, []string{"component:card", "file:/p/components/card.hcl"}, res.Invalidated)
	})

	t.Run("mixed", func(t *testing.T) {
		e, _, _ := site(t)
		res, err := e.Auto(ctx, "component:c*", "component:page")
		require.NoError(t, err)
		assert.Equal(t, Batch, res.Strategy)
		assert.Equal(t, []string{"component:card", "component:page"}, res.Invalidated)
	})
}
