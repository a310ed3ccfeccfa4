package incremental

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/stackmark/internal/depgraph"
)

var modTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// project builds:
//
//	file:/p/a.hcl <- component:a <- component:page
//	file:/p/b.hcl <- component:b
func project(t *testing.T) (*depgraph.Graph, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	g := depgraph.New()

	for _, name := range []string{"a", "b"} {
		path := "/p/" + name + ".hcl"
		body := "component \"" + name + "\" {}"
		require.NoError(t, afero.WriteFile(fs, path, []byte(body), 0o644))
		require.NoError(t, fs.Chtimes(path, modTime, modTime))
		g.AddNode(depgraph.Node{ID: depgraph.FileID(path), Kind: depgraph.KindFile, Meta: depgraph.Meta{
			Path: path, ContentHash: digest.FromString(body), ModTime: modTime,
		}})
		g.AddNode(depgraph.Node{ID: depgraph.ComponentID(name), Kind: depgraph.KindComponent, Meta: depgraph.Meta{Component: name}})
		require.NoError(t, g.AddEdge(depgraph.ComponentID(name), depgraph.FileID(path)))
	}
	g.AddNode(depgraph.Node{ID: depgraph.ComponentID("page"), Kind: depgraph.KindComponent, Meta: depgraph.Meta{Component: "page"}})
	require.NoError(t, g.AddEdge(depgraph.ComponentID("page"), depgraph.ComponentID("a")))
	return g, fs
}

var paths = []string{"/p/a.hcl", "/p/b.hcl"}

func TestPlan_ChangedFileRebuildsDependents(t *testing.T) {
	g, fs := project(t)
	require.NoError(t, afero.WriteFile(fs, "/p/a.hcl", []byte(`component "a" { changed = true }`), 0o644))

	plan, err := NewPlanner(g, fs).Plan(context.Background(), paths, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"/p/a.hcl"}, plan.Changes.Changed)
	assert.Equal(t, []string{"/p/b.hcl"}, plan.Changes.Unchanged)
	assert.Equal(t, []string{"file:/p/a.hcl"}, plan.Affected.Direct)
	assert.Equal(t, []string{"component:a", "component:page"}, plan.Affected.Transitive)
	assert.Equal(t, []string{"file:/p/a.hcl", "component:a", "component:page"}, plan.MustRebuild)
	assert.Equal(t, []string{"component:b", "file:/p/b.hcl"}, plan.CanSkip)
}

func TestPlan_NothingChanged(t *testing.T) {
	g, fs := project(t)

	plan, err := NewPlanner(g, fs).Plan(context.Background(), paths, Options{})
	require.NoError(t, err)

	assert.Empty(t, plan.BuildOrder)
	assert.Len(t, plan.CanSkip, g.Len())
	assert.Equal(t, paths, plan.Changes.Unchanged)
}

func TestPlan_NewAndDeletedFiles(t *testing.T) {
	g, fs := project(t)
	require.NoError(t, afero.WriteFile(fs, "/p/c.hcl", []byte(`component "c" {}`), 0o644))
	require.NoError(t, fs.Remove("/p/b.hcl"))

	plan, err := NewPlanner(g, fs).Plan(context.Background(), append(paths, "/p/c.hcl", "/p/gone.hcl"), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"/p/c.hcl"}, plan.Changes.New)
	assert.Equal(t, []string{"/p/b.hcl"}, plan.Changes.Deleted)
	assert.True(t, g.Has("file:/p/c.hcl"), "new paths get a file node")
	assert.Equal(t, []string{"file:/p/c.hcl"}, plan.Affected.Direct)
	assert.Equal(t, []string{"component:b"}, plan.Affected.Transitive)
	assert.NotContains(t, plan.CanSkip, "file:/p/b.hcl")
	assert.Equal(t, []string{"file:/p/b.hcl"}, plan.Deleted())
}

func TestPlan_RegisteredButNeverObservedIsNew(t *testing.T) {
	g, fs := project(t)
	g.AddNode(depgraph.Node{ID: "file:/p/a.hcl", Kind: depgraph.KindFile, Meta: depgraph.Meta{Path: "/p/a.hcl"}})

	plan, err := NewPlanner(g, fs).Plan(context.Background(), paths, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/p/a.hcl"}, plan.Changes.New)
}

func TestPlan_TimestampComparator(t *testing.T) {
	g, fs := project(t)
	// Same content, newer mtime.
	later := modTime.Add(time.Hour)
	require.NoError(t, fs.Chtimes("/p/b.hcl", later, later))

	plan, err := NewPlanner(g, fs).Plan(context.Background(), paths, Options{Comparator: CompareTimestamp})
	require.NoError(t, err)
	assert.Equal(t, []string{"/p/b.hcl"}, plan.Changes.Changed)

	plan, err = NewPlanner(g, fs).Plan(context.Background(), paths, Options{Comparator: CompareContentHash})
	require.NoError(t, err)
	assert.Empty(t, plan.Changes.Changed)

	_, err = NewPlanner(g, fs).Plan(context.Background(), paths, Options{Comparator: "size"})
	assert.Error(t, err)
}

func TestPlan_Force(t *testing.T) {
	g, fs := project(t)

	plan, err := NewPlanner(g, fs).Plan(context.Background(), paths, Options{Force: []string{"component:a", "/p/b.hcl", "nope"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"component:a", "file:/p/b.hcl"}, plan.Affected.Direct)
	assert.Equal(t, []string{"component:a", "file:/p/b.hcl"}, plan.Forced)
	assert.Equal(t, []string{"component:b", "component:page"}, plan.Affected.Transitive)
}

func TestPlan_CircularDependency(t *testing.T) {
	g, fs := project(t)
	require.NoError(t, g.AddEdge("component:a", "component:page"))
	require.NoError(t, afero.WriteFile(fs, "/p/a.hcl", []byte("x"), 0o644))

	_, err := NewPlanner(g, fs).Plan(context.Background(), paths, Options{})

	var cycle *CircularDependencyError
	require.True(t, errors.As(err, &cycle), "got %v", err)
	assert.Equal(t, []string{"component:a", "component:page"}, cycle.Stuck)
}
