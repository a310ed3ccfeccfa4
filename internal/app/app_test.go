package app_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/stackmark/internal/app"
	"github.com/specialistvlad/stackmark/internal/depgraph"
	"github.com/specialistvlad/stackmark/internal/invalidate"
	"github.com/specialistvlad/stackmark/internal/testutil"
)

const site = testutil.Site

func newFixture(t *testing.T) afero.Fs {
	t.Helper()
	return testutil.NewSite(t)
}

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	testutil.WriteFiles(t, fs, site, files)
}

func newTestApp(t *testing.T, fs afero.Fs, mutate ...func(*app.Config)) (*app.App, *testutil.SafeBuffer) {
	t.Helper()
	cfg := app.Config{ProjectDir: site, LogLevel: "debug"}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := app.NewConfig(cfg)
	require.NoError(t, err)

	logs := &testutil.SafeBuffer{}
	a, err := app.NewApp(&bytes.Buffer{}, logs, fs, c)
	require.NoError(t, err)
	return a, logs
}

func readOutput(t *testing.T, fs afero.Fs, name string) string {
	t.Helper()
	b, err := afero.ReadFile(fs, filepath.Join(site, "dist", name))
	require.NoError(t, err)
	return string(b)
}

func TestNewConfig(t *testing.T) {
	_, err := app.NewConfig(app.Config{})
	assert.Error(t, err)

	c, err := app.NewConfig(app.Config{ProjectDir: site})
	require.NoError(t, err)
	assert.Equal(t, "/site/.stackmark/cache", c.CacheDir)
	assert.Equal(t, "content-hash", c.Comparator)

	_, err = app.NewConfig(app.Config{ProjectDir: site, Comparator: "size"})
	assert.ErrorContains(t, err, "invalid comparator")

	_, err = app.NewConfig(app.Config{ProjectDir: site, CacheSize: -1})
	assert.Error(t, err)
}

func TestNewApp_MissingProject(t *testing.T) {
	c, err := app.NewConfig(app.Config{ProjectDir: "/nowhere"})
	require.NoError(t, err)

	_, err = app.NewApp(&bytes.Buffer{}, &bytes.Buffer{}, afero.NewMemMapFs(), c)
	assert.ErrorContains(t, err, "failed to load project")
}

func TestBuild_WritesOutputs(t *testing.T) {
	fs := newFixture(t)
	a, _ := newTestApp(t, fs)
	ctx := context.Background()

	report, err := a.Build(ctx)
	require.NoError(t, err)

	assert.True(t, report.Stats.Success)
	assert.Equal(t, a.Graph().Len(), report.Stats.Compiled)
	assert.Empty(t, report.Skipped)
	assert.Contains(t, report.Compiled, "component:button")
	assert.Contains(t, report.Compiled, "file:/site/platforms/html.hcl")

	assert.Less(t, indexOf(report.BuildOrder, "component:button"), indexOf(report.BuildOrder, "component:card"))
	assert.Less(t, indexOf(report.BuildOrder, "token:color.primary"), indexOf(report.BuildOrder, "component:button"))

	assert.Equal(t, `<button style="background:#00f; padding:1rem">Click</button>`, readOutput(t, fs, "button.html"))
	assert.Equal(t, `<section class="card"><button style="background:#00f; padding:1rem">Click</button></section>`, readOutput(t, fs, "card.html"))
}

func TestBuild_SecondRunSkipsEverything(t *testing.T) {
	fs := newFixture(t)
	a, _ := newTestApp(t, fs)
	ctx := context.Background()

	_, err := a.Build(ctx)
	require.NoError(t, err)

	report, err := a.Build(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.BuildOrder)
	assert.Equal(t, 0, report.Stats.Total)
	assert.Len(t, report.Changes.Unchanged, len(a.Graph().NodesOfKind(depgraph.KindFile)))
}

func TestBuild_FreshProcessReusesDiskCache(t *testing.T) {
	fs := newFixture(t)
	ctx := context.Background()

	first, _ := newTestApp(t, fs)
	_, err := first.Build(ctx)
	require.NoError(t, err)

	second, _ := newTestApp(t, fs)
	report, err := second.Build(ctx)
	require.NoError(t, err)

	assert.Empty(t, report.Compiled, "fingerprints on disk must match")
	assert.Equal(t, second.Graph().Len(), report.Stats.Skipped)
}

func TestBuild_NoDiskCacheRebuildsInFreshProcess(t *testing.T) {
	fs := newFixture(t)
	ctx := context.Background()
	noDisk := func(c *app.Config) { c.NoDiskCache = true }

	first, _ := newTestApp(t, fs, noDisk)
	_, err := first.Build(ctx)
	require.NoError(t, err)

	second, _ := newTestApp(t, fs, noDisk)
	report, err := second.Build(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)

	exists, err := afero.DirExists(fs, "/site/.stackmark/cache")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBuild_TokenChangeRebuildsDependents(t *testing.T) {
	fs := newFixture(t)
	a, _ := newTestApp(t, fs)
	ctx := context.Background()

	_, err := a.Build(ctx)
	require.NoError(t, err)

	writeFiles(t, fs, map[string]string{"tokens.hcl": `
tokens {
  color = { primary = "#f00" }
  space = { md = "1rem" }
}
`})

	report, err := a.Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"/site/tokens.hcl"}, report.Changes.Changed)
	assert.Contains(t, report.Compiled, "token:color.primary")
	assert.Contains(t, report.Compiled, "component:button")
	assert.Contains(t, report.Compiled, "component:card")
	assert.NotContains(t, report.Compiled, "file:/site/platforms/html.hcl")

	assert.Equal(t, `<button style="background:#f00; padding:1rem">Click</button>`, readOutput(t, fs, "button.html"))
	assert.Contains(t, readOutput(t, fs, "card.html"), "background:#f00")
}

func TestBuild_PlatformChangeRebuildsComponents(t *testing.T) {
	fs := newFixture(t)
	a, _ := newTestApp(t, fs)
	ctx := context.Background()

	_, err := a.Build(ctx)
	require.NoError(t, err)

	writeFiles(t, fs, map[string]string{"platforms/html.hcl": `
platform "html" {
  output_formats        = ["html", "json"]
  default_output_format = "html"

  element "button" {
    tag           = "button"
    default_attrs = { type = "button" }
  }
  element "section" {
    tag = "section"
  }
}
`})

	report, err := a.Build(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"component:button", "component:card", "file:/site/platforms/html.hcl"}, report.Compiled)
	assert.Equal(t, `<button style="background:#00f; padding:1rem" type="button">Click</button>`, readOutput(t, fs, "button.html"))
}

func TestBuild_PlatformFormatChangeAppliesToSameBuild(t *testing.T) {
	fs := newFixture(t)
	a, _ := newTestApp(t, fs)
	ctx := context.Background()

	_, err := a.Build(ctx)
	require.NoError(t, err)

	writeFiles(t, fs, map[string]string{"platforms/html.hcl": `
platform "html" {
  output_formats        = ["html", "json"]
  default_output_format = "json"

  element "button" {
    tag = "button"
  }
  element "section" {
    tag = "section"
  }
}
`})

	report, err := a.Build(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"component:button", "component:card", "file:/site/platforms/html.hcl"}, report.Compiled)

	ok, err := afero.Exists(fs, "/site/dist/card.json")
	require.NoError(t, err)
	assert.True(t, ok, "the edited default format must be used by the build that notices the edit")
}

func TestBuild_MissingOutputIsRebuilt(t *testing.T) {
	fs := newFixture(t)
	a, _ := newTestApp(t, fs)
	ctx := context.Background()

	_, err := a.Build(ctx)
	require.NoError(t, err)
	require.NoError(t, fs.Remove("/site/dist/card.html"))

	report, err := a.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"component:card"}, report.Compiled)
	assert.Contains(t, readOutput(t, fs, "card.html"), "<section")
}

func TestBuild_JSONFormat(t *testing.T) {
	fs := newFixture(t)
	a, _ := newTestApp(t, fs, func(c *app.Config) { c.OutputFormat = "json" })

	_, err := a.Build(context.Background())
	require.NoError(t, err)

	out := readOutput(t, fs, "button.json")
	assert.Contains(t, out, `"button"`)
	assert.Contains(t, out, "background:#00f; padding:1rem")
}

func TestBuild_UnsupportedFormat(t *testing.T) {
	fs := newFixture(t)
	a, _ := newTestApp(t, fs, func(c *app.Config) { c.OutputFormat = "pdf" })

	_, err := a.Build(context.Background())
	assert.Error(t, err)
}

func TestBuild_FailureDoesNotAbort(t *testing.T) {
	fs := newFixture(t)
	writeFiles(t, fs, map[string]string{"components/hero.hcl": `
component "hero" {
  element "image" {
    text { value = "void elements cannot hold text" }
  }
}
`})
	a, _ := newTestApp(t, fs)

	report, err := a.Build(context.Background())
	require.Error(t, err)
	require.NotNil(t, report)

	assert.False(t, report.Stats.Success)
	assert.Equal(t, 1, report.Stats.Failed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "component:hero", report.Errors[0].ID)
	assert.Contains(t, report.Compiled, "component:card")

	_, err = afero.ReadFile(fs, "/site/dist/hero.html")
	assert.Error(t, err)
}

func TestPlan(t *testing.T) {
	fs := newFixture(t)
	a, _ := newTestApp(t, fs)
	ctx := context.Background()

	plan, err := a.Plan(ctx)
	require.NoError(t, err)
	assert.Len(t, plan.MustRebuild, a.Graph().Len())
	assert.Contains(t, plan.Changes.New, "/site/components/card.hcl")

	_, err = a.Build(ctx)
	require.NoError(t, err)

	plan, err = a.Plan(ctx)
	require.NoError(t, err)
	assert.Empty(t, plan.MustRebuild)
	assert.Len(t, plan.CanSkip, a.Graph().Len())

	_, err = afero.ReadFile(fs, "/site/dist/button.html")
	require.NoError(t, err)
}

func TestInvalidate(t *testing.T) {
	fs := newFixture(t)
	a, _ := newTestApp(t, fs)
	ctx := context.Background()

	_, err := a.Build(ctx)
	require.NoError(t, err)

	res, err := a.Invalidate(ctx, "button")
	require.NoError(t, err)
	assert.Equal(t, invalidate.DependencyBased, res.Strategy)
	assert.Equal(t, []string{"component:button", "component:card"}, res.Invalidated)

	report, err := a.Build(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"component:button", "component:card"}, report.Compiled)

	report, err = a.Build(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Compiled, "forced ids are consumed by one build")
}

func TestInvalidate_ByRelativePath(t *testing.T) {
	fs := newFixture(t)
	a, _ := newTestApp(t, fs)
	ctx := context.Background()

	_, err := a.Build(ctx)
	require.NoError(t, err)

	res, err := a.Invalidate(ctx, "components/card.hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{"component:card", "file:/site/components/card.hcl"}, res.Invalidated)
}

func TestInvalidate_AllThenFreshProcess(t *testing.T) {
	fs := newFixture(t)
	ctx := context.Background()

	first, _ := newTestApp(t, fs)
	_, err := first.Build(ctx)
	require.NoError(t, err)

	res, err := first.Invalidate(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, invalidate.Global, res.Strategy)

	second, _ := newTestApp(t, fs)
	report, err := second.Build(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Skipped, "cleared disk cache cannot vouch for anything")
}

func TestGraphTree(t *testing.T) {
	fs := newFixture(t)
	a, _ := newTestApp(t, fs)
	ctx := context.Background()

	tree, err := a.GraphTree(ctx, false)
	require.NoError(t, err)
	assert.Contains(t, tree, "demo")
	assert.Contains(t, tree, "component:card")
	assert.Contains(t, tree, "token:color.primary")
	assert.Contains(t, tree, "file:/site/platforms/css.hcl")

	tree, err = a.GraphTree(ctx, true)
	require.NoError(t, err)
	assert.Contains(t, tree, "file:/site/tokens.hcl")
	assert.Contains(t, tree, "component:button")
}

func TestBuild_WritesMetrics(t *testing.T) {
	fs := newFixture(t)
	a, _ := newTestApp(t, fs, func(c *app.Config) { c.MetricsOut = "/site/metrics.prom" })

	_, err := a.Build(context.Background())
	require.NoError(t, err)

	b, err := afero.ReadFile(fs, "/site/metrics.prom")
	require.NoError(t, err)
	assert.Contains(t, string(b), "stackmark_builds_total")
	assert.Contains(t, string(b), `cache="builds/memory"`)
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
