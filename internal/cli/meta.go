package cli

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/specialistvlad/stackmark/internal/app"
)

// Meta holds what every command shares: the ui, the filesystem and the
// global logging flags.
type Meta struct {
	Ui   cli.Ui
	Fs   afero.Fs
	Out  io.Writer
	Logs io.Writer

	LogLevel  string
	LogFormat string
}

// stringSlice is a repeatable string flag.
type stringSlice []string

func (s *stringSlice) String() string { return strings.Join(*s, ",") }

func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// projectFlags are the flags every command accepts.
type projectFlags struct {
	project       string
	platformPaths stringSlice
	cacheDir      string
	noDiskCache   bool
	cacheSize     int
	cacheTTL      time.Duration
	comparator    string
	force         stringSlice
	format        string
	metricsOut    string
}

// flagSet returns a flag set with the project flags registered. Usage output
// is left to the command's Help.
func (m *Meta) flagSet(name string, pf *projectFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&pf.project, "project", ".", "Project directory containing stackmark.hcl.")
	fs.Var(&pf.platformPaths, "platform-path", "Shared platform directory. May be repeated.")
	fs.StringVar(&pf.cacheDir, "cache-dir", "", "Disk cache directory. Defaults to <project>/.stackmark/cache.")
	fs.BoolVar(&pf.noDiskCache, "no-disk-cache", false, "Keep caches in memory only.")
	fs.IntVar(&pf.cacheSize, "cache-size", 0, "Maximum entries per memory cache. 0 uses the default.")
	fs.DurationVar(&pf.cacheTTL, "cache-ttl", 0, "Cache entry lifetime. 0 never expires.")
	fs.StringVar(&pf.comparator, "comparator", "content-hash", "Change detection. Options: 'content-hash' or 'timestamp'.")
	fs.Var(&pf.force, "force", "Node id or file path to rebuild regardless of changes. May be repeated.")
	fs.StringVar(&pf.format, "format", "", "Output format. Defaults to the project's, then the platform stack's.")
	fs.StringVar(&pf.metricsOut, "metrics-out", "", "Write Prometheus text metrics to this file after a build.")
	return fs
}

// config validates the parsed flags into an app configuration.
func (m *Meta) config(pf *projectFlags) (*app.Config, error) {
	dir, err := filepath.Abs(pf.project)
	if err != nil {
		return nil, fmt.Errorf("invalid project directory %q: %w", pf.project, err)
	}
	return app.NewConfig(app.Config{
		ProjectDir:    dir,
		PlatformPaths: pf.platformPaths,
		OutputFormat:  pf.format,
		CacheDir:      pf.cacheDir,
		NoDiskCache:   pf.noDiskCache,
		CacheSize:     pf.cacheSize,
		CacheTTL:      pf.cacheTTL,
		Comparator:    pf.comparator,
		Force:         forceTargets(dir, pf.force),
		MetricsOut:    pf.metricsOut,
		LogFormat:     m.LogFormat,
		LogLevel:      m.LogLevel,
	})
}

// forceTargets anchors relative file paths at the project directory. Node
// ids pass through.
func forceTargets(dir string, targets []string) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if !strings.Contains(t, ":") && !filepath.IsAbs(t) {
			t = filepath.Join(dir, t)
		}
		out = append(out, t)
	}
	return out
}

// app parses args with fs and builds the application. Problems are reported
// on the ui; the returned code is the exit status to use when a is nil.
func (m *Meta) app(fs *flag.FlagSet, pf *projectFlags, args []string) (*app.App, int) {
	if err := fs.Parse(args); err != nil {
		m.Ui.Error(err.Error())
		return nil, cli.RunResultHelp
	}
	cfg, err := m.config(pf)
	if err != nil {
		m.Ui.Error(err.Error())
		return nil, 1
	}
	a, err := app.NewApp(m.Out, m.Logs, m.Fs, cfg)
	if err != nil {
		m.Ui.Error(err.Error())
		return nil, 1
	}
	return a, 0
}

// projectHelp documents the flags added by flagSet.
const projectHelp = `
Project options:

  -project=dir           Project directory containing stackmark.hcl.
                         Defaults to the current directory.

  -platform-path=dir     Shared platform directory searched after the
                         project's own platforms directory. May be repeated.

  -format=name           Output format (html or json). Defaults to the
                         project's output_format, then the platform stack's.

  -cache-dir=dir         Disk cache directory. Defaults to
                         <project>/.stackmark/cache.

  -no-disk-cache         Keep caches in memory only.

  -cache-size=n          Maximum entries per memory cache.

  -cache-ttl=duration    Cache entry lifetime, e.g. 10m. 0 never expires.

  -comparator=name       Change detection: content-hash or timestamp.

  -force=target          Node id or file path rebuilt regardless of
                         changes. May be repeated.

  -metrics-out=file      Write Prometheus text metrics after a build.
`
