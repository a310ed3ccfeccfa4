package cli

import (
	"encoding/json"
	"strings"

	"github.com/mitchellh/cli"

	"github.com/specialistvlad/stackmark/internal/invalidate"
)

// InvalidateCommand is a Command implementation that evicts cached build
// results so the next build recompiles them.
type InvalidateCommand struct {
	*Meta
}

func (c *InvalidateCommand) Run(args []string) int {
	var pf projectFlags
	fs := c.flagSet("invalidate", &pf)
	strategy := fs.String("strategy", "", "Invalidation strategy. Picked from the targets when empty.")
	jsonOut := fs.Bool("json", false, "Print the result as JSON.")

	a, code := c.app(fs, &pf, args)
	if a == nil {
		return code
	}
	targets := fs.Args()
	if len(targets) == 0 && *strategy == "" {
		c.Ui.Error("At least one target is required. Use \"all\" to clear every cache.")
		return cli.RunResultHelp
	}

	var res *invalidate.Result
	var err error
	if *strategy != "" {
		res, err = a.InvalidateRequest(a.Context(), invalidate.Request{Strategy: invalidate.Strategy(*strategy), Targets: targets})
	} else {
		res, err = a.Invalidate(a.Context(), targets...)
	}
	if err != nil {
		c.Ui.Error(err.Error())
		if res == nil {
			return 1
		}
	}

	if *jsonOut {
		b, jerr := json.MarshalIndent(res, "", "  ")
		if jerr != nil {
			c.Ui.Error(jerr.Error())
			return 1
		}
		c.Ui.Output(string(b))
	} else {
		for _, id := range res.Invalidated {
			c.Ui.Output(id)
		}
		for _, u := range res.Metadata.Unknown {
			c.Ui.Warn("No node matches " + u)
		}
	}
	if err != nil {
		return 1
	}
	return 0
}

func (c *InvalidateCommand) Help() string {
	helpText := `
Usage: stackmark invalidate [options] TARGET...

  Evicts cached results for the targets and everything that depends on
  them. Targets are component names, node ids, file paths, glob patterns or
  "all".

Options:

  -strategy=name         content-hash, timestamp, dependency-based, pattern
                         or global. Picked from the targets when empty.

  -json                  Print the result as JSON.
` + projectHelp
	return strings.TrimSpace(helpText)
}

func (c *InvalidateCommand) Synopsis() string {
	return "Evict cached build results"
}
