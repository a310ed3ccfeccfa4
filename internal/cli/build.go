package cli

import (
	"fmt"
	"strings"
)

// BuildCommand is a Command implementation that runs an incremental build
// and writes component outputs.
type BuildCommand struct {
	*Meta
}

func (c *BuildCommand) Run(args []string) int {
	var pf projectFlags
	fs := c.flagSet("build", &pf)
	jsonOut := fs.Bool("json", false, "Print the build report as JSON.")

	a, code := c.app(fs, &pf, args)
	if a == nil {
		return code
	}

	report, err := a.Build(a.Context())
	if report == nil {
		c.Ui.Error(err.Error())
		return 1
	}

	if *jsonOut {
		b, jerr := report.JSON()
		if jerr != nil {
			c.Ui.Error(jerr.Error())
			return 1
		}
		c.Ui.Output(string(b))
	} else {
		c.Ui.Output(fmt.Sprintf("Compiled %d, skipped %d, failed %d of %d nodes in %s.",
			report.Stats.Compiled, report.Stats.Skipped, report.Stats.Failed, report.Stats.Total, report.Stats.Duration))
	}

	if err != nil {
		for _, ne := range report.Errors {
			c.Ui.Error(ne.Error())
		}
		return 1
	}
	return 0
}

func (c *BuildCommand) Help() string {
	helpText := `
Usage: stackmark build [options]

  Compiles every component whose inputs changed since the last build and
  writes the output under the project's out_dir. Unchanged nodes are
  skipped using the build cache.

Options:

  -json                  Print the build report as JSON.
` + projectHelp
	return strings.TrimSpace(helpText)
}

func (c *BuildCommand) Synopsis() string {
	return "Compile changed components"
}
