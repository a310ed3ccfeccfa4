package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/stackmark/internal/cli"
	"github.com/specialistvlad/stackmark/internal/testutil"
)

func TestRun_BuildOnDisk(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	testutil.WriteFiles(t, afero.NewOsFs(), dir, testutil.SiteFiles())
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	// --- Act ---
	err := run(out, errOut, []string{"build", "-project", dir})

	// --- Assert ---
	require.NoError(t, err, errOut.String())
	require.Contains(t, out.String(), "failed 0")

	b, err := os.ReadFile(filepath.Join(dir, "dist", "card.html"))
	require.NoError(t, err)
	require.Contains(t, string(b), `<section class="card">`)

	_, err = os.Stat(filepath.Join(dir, ".stackmark", "cache", "builds"))
	require.NoError(t, err, "build results should be cached on disk")
}

func TestRun_Help(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, &bytes.Buffer{}, []string{"-h"})

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when help is requested")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"--this-is-not-a-valid-flag"}

	// --- Act ---
	err := run(&bytes.Buffer{}, &bytes.Buffer{}, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
}

func TestRun_InvalidProject(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stackmark.hcl"), []byte(`project "broken" {`), 0o600))
	errOut := &bytes.Buffer{}

	// --- Act ---
	err := run(&bytes.Buffer{}, errOut, []string{"build", "-project", dir})

	// --- Assert ---
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 1, exitErr.Code)
	require.Contains(t, errOut.String(), "failed to load project")
}
