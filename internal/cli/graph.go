package cli

import (
	"strings"
)

// GraphCommand is a Command implementation that prints the dependency graph
// as a tree.
type GraphCommand struct {
	*Meta
}

func (c *GraphCommand) Run(args []string) int {
	var pf projectFlags
	fs := c.flagSet("graph", &pf)
	reverse := fs.Bool("reverse", false, "List dependents of each file instead of dependencies of each component.")

	a, code := c.app(fs, &pf, args)
	if a == nil {
		return code
	}

	tree, err := a.GraphTree(a.Context(), *reverse)
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}
	c.Ui.Output(strings.TrimRight(tree, "\n"))
	return 0
}

func (c *GraphCommand) Help() string {
	helpText := `
Usage: stackmark graph [options]

  Prints the dependency graph of the project. Each component lists the
  files, tokens and components it depends on.

Options:

  -reverse               List what depends on each file instead.
` + projectHelp
	return strings.TrimSpace(helpText)
}

func (c *GraphCommand) Synopsis() string {
	return "Print the dependency graph"
}
