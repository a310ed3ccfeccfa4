package cli_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mitchellh/cli"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stackcli "github.com/specialistvlad/stackmark/internal/cli"
	"github.com/specialistvlad/stackmark/internal/testutil"
)

func TestExecute_GlobalFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantMsg  string
	}{
		{name: "bad log format", args: []string{"-log-format=xml", "build"}, wantCode: 2, wantMsg: "invalid log-format"},
		{name: "bad log level", args: []string{"-log-level=loud", "build"}, wantCode: 2, wantMsg: "invalid log-level"},
		{name: "unknown flag", args: []string{"-nope"}, wantCode: 2, wantMsg: "flag provided but not defined"},
		{name: "unknown command", args: []string{"deploy"}, wantCode: 127},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut strings.Builder
			err := stackcli.Execute(tt.args, &out, &errOut, afero.NewMemMapFs())

			var exitErr *stackcli.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, tt.wantCode, exitErr.Code)
			assert.Contains(t, exitErr.Message, tt.wantMsg)
		})
	}
}

func TestExecute_HelpAndVersion(t *testing.T) {
	var out, errOut strings.Builder
	require.NoError(t, stackcli.Execute([]string{"-h"}, &out, &errOut, afero.NewMemMapFs()))
	assert.Contains(t, out.String(), "build")
	assert.Contains(t, out.String(), "invalidate")

	out.Reset()
	require.NoError(t, stackcli.Execute([]string{"-version"}, &out, &errOut, afero.NewMemMapFs()))
	assert.Contains(t, out.String(), stackcli.Version)
}

func TestBuildCommand(t *testing.T) {
	fs := testutil.NewSite(t)

	result := testutil.RunCLI(t, fs, "build", "-project", testutil.Site)
	require.NoError(t, result.Err, result.LogOutput)
	assert.Contains(t, result.Output, "failed 0")
	testutil.AssertCompiled(t, result, "component:card")

	b, err := afero.ReadFile(fs, "/site/dist/button.html")
	require.NoError(t, err)
	assert.Contains(t, string(b), "<button")

	result = testutil.RunCLI(t, fs, "build", "-project", testutil.Site)
	require.NoError(t, result.Err)
	testutil.AssertNotCompiled(t, result, "component:card")
	assert.Contains(t, result.Output, "Compiled 0")
}

func TestBuildCommand_ForceAndJSON(t *testing.T) {
	fs := testutil.NewSite(t)
	require.NoError(t, testutil.RunCLI(t, fs, "build", "-project", testutil.Site).Err)

	result := testutil.RunCLI(t, fs, "build", "-project", testutil.Site, "-force", "component:button", "-json")
	require.NoError(t, result.Err, result.LogOutput)

	var report struct {
		RunID    string   `json:"runId"`
		Compiled []string `json:"compiled"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Output), &report))
	assert.Equal(t, []string{"component:button"}, report.Compiled)
	testutil.AssertCompiled(t, result, "component:button")
}

func TestBuildCommand_Failure(t *testing.T) {
	fs := testutil.NewSite(t)
	testutil.WriteFiles(t, fs, testutil.Site, map[string]string{"components/hero.hcl": `
component "hero" {
  element "image" {
    text { value = "x" }
  }
}
`})

	result := testutil.RunCLI(t, fs, "build", "-project", testutil.Site)
	assert.Equal(t, 1, result.ExitCode())
	assert.Contains(t, result.Output, "failed 1")
	assert.Contains(t, result.LogOutput, "component:hero")
}

func TestBuildCommand_MissingProject(t *testing.T) {
	result := testutil.RunCLI(t, afero.NewMemMapFs(), "build", "-project", "/nowhere")
	assert.Equal(t, 1, result.ExitCode())
}

func TestBuildCommand_BadFlagShowsHelp(t *testing.T) {
	ui := cli.NewMockUi()
	c := &stackcli.BuildCommand{Meta: &stackcli.Meta{Ui: ui, Fs: afero.NewMemMapFs()}}

	assert.Equal(t, cli.RunResultHelp, c.Run([]string{"-cache-size", "many"}))
	assert.Contains(t, ui.ErrorWriter.String(), "invalid value")
	assert.Contains(t, c.Help(), "-no-disk-cache")
	assert.NotEmpty(t, c.Synopsis())
}

func TestPlanCommand(t *testing.T) {
	fs := testutil.NewSite(t)

	result := testutil.RunCLI(t, fs, "plan", "-project", testutil.Site)
	require.NoError(t, result.Err, result.LogOutput)

	var plan struct {
		Changes struct {
			New []string `json:"new"`
		} `json:"changes"`
		BuildOrder []string `json:"buildOrder"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Output), &plan))
	assert.Contains(t, plan.Changes.New, "/site/components/button.hcl")
	assert.Contains(t, plan.BuildOrder, "component:card")

	_, err := fs.Stat("/site/dist")
	assert.Error(t, err, "plan must not write outputs")
}

func TestGraphCommand(t *testing.T) {
	fs := testutil.NewSite(t)

	result := testutil.RunCLI(t, fs, "graph", "-project", testutil.Site)
	require.NoError(t, result.Err, result.LogOutput)
	assert.True(t, strings.HasPrefix(result.Output, "demo"))
	assert.Contains(t, result.Output, "component:card")

	result = testutil.RunCLI(t, fs, "graph", "-project", testutil.Site, "-reverse")
	require.NoError(t, result.Err)
	assert.Contains(t, result.Output, "file:/site/tokens.hcl")
}

func TestInvalidateCommand(t *testing.T) {
	fs := testutil.NewSite(t)
	require.NoError(t, testutil.RunCLI(t, fs, "build", "-project", testutil.Site).Err)

	result := testutil.RunCLI(t, fs, "invalidate", "-project", testutil.Site, "button")
	require.NoError(t, result.Err, result.LogOutput)
	assert.Equal(t, "component:button\ncomponent:card\n", result.Output)

	result = testutil.RunCLI(t, fs, "build", "-project", testutil.Site)
	require.NoError(t, result.Err)
	testutil.AssertCompiled(t, result, "component:button")
	testutil.AssertCompiled(t, result, "component:card")
	testutil.AssertNotCompiled(t, result, "token:color.primary")
}

func TestInvalidateCommand_AllAndUnknown(t *testing.T) {
	fs := testutil.NewSite(t)
	require.NoError(t, testutil.RunCLI(t, fs, "build", "-project", testutil.Site).Err)

	result := testutil.RunCLI(t, fs, "invalidate", "-project", testutil.Site, "-json", "all")
	require.NoError(t, result.Err, result.LogOutput)
	assert.Contains(t, result.Output, `"strategy": "global"`)

	result = testutil.RunCLI(t, fs, "invalidate", "-project", testutil.Site, "ghost")
	require.NoError(t, result.Err)
	assert.Contains(t, result.LogOutput, "No node matches ghost")

	result = testutil.RunCLI(t, fs, "invalidate", "-project", testutil.Site)
	assert.Equal(t, 1, result.ExitCode())

	result = testutil.RunCLI(t, fs, "invalidate", "-project", testutil.Site, "-strategy", "sideways", "x")
	assert.Equal(t, 1, result.ExitCode())
}
