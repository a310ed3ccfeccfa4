package fsutil

import (
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, body := range map[string]string{
		"/site/stackmark.hcl":           `project "site" {}`,
		"/site/tokens.hcl":              `tokens {}`,
		"/site/components/button.hcl":   `component "button" {}`,
		"/site/components/nested/a.hcl": `component "a" {}`,
		"/site/components/readme.md":    `# notes`,
		"/site/platforms/web.yaml":      `name: web`,
		"/site/platforms/native.json":   `{}`,
		"/site/dist/button.html":        `<button></button>`,
	} {
		require.NoError(t, afero.WriteFile(fs, path, []byte(body), 0o644))
	}
	return fs
}

func TestFindFilesByExtension(t *testing.T) {
	fs := fixture(t)

	files, err := FindFilesByExtension(fs, "/site/components", ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{"/site/components/button.hcl", "/site/components/nested/a.hcl"}, files)

	files, err = FindFilesByExtension(fs, "/nope", ".hcl")
	require.NoError(t, err)
	assert.Empty(t, files)

	assert.Panics(t, func() { _, _ = FindFilesByExtension(fs, "/site", "") })
}

func TestGlob(t *testing.T) {
	fs := fixture(t)

	files, err := Glob(fs, "/site", "*.hcl", "components/**/*.hcl", "platforms/*.{yaml,json}")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/site/components/button.hcl",
		"/site/components/nested/a.hcl",
		"/site/platforms/native.json",
		"/site/platforms/web.yaml",
		"/site/stackmark.hcl",
		"/site/tokens.hcl",
	}, files)

	_, err = Glob(fs, "/site", "[")
	assert.ErrorContains(t, err, "invalid glob pattern")
}

func TestHasMeta(t *testing.T) {
	assert.True(t, HasMeta("component:*"))
	assert.True(t, HasMeta("file:{a,b}"))
	assert.False(t, HasMeta("button"))
}

func TestObserve(t *testing.T) {
	fs := fixture(t)
	mod := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, fs.Chtimes("/site/tokens.hcl", mod, mod))

	obs, err := Observe(fs, "/site/tokens.hcl")
	require.NoError(t, err)
	assert.True(t, obs.Exists)
	assert.Equal(t, digest.FromString(`tokens {}`), obs.Hash)
	assert.True(t, obs.ModTime.Equal(mod))

	obs, err = Observe(fs, "/site/gone.hcl")
	require.NoError(t, err)
	assert.False(t, obs.Exists)

	_, err = Observe(fs, "/site/components")
	assert.ErrorContains(t, err, "is a directory")
}
