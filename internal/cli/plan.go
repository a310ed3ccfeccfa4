package cli

import (
	"encoding/json"
	"strings"
)

// PlanCommand is a Command implementation that prints what a build would
// rebuild, without building.
type PlanCommand struct {
	*Meta
}

func (c *PlanCommand) Run(args []string) int {
	var pf projectFlags
	fs := c.flagSet("plan", &pf)

	a, code := c.app(fs, &pf, args)
	if a == nil {
		return code
	}

	plan, err := a.Plan(a.Context())
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}
	b, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}
	c.Ui.Output(string(b))
	return 0
}

func (c *PlanCommand) Help() string {
	helpText := `
Usage: stackmark plan [options]

  Detects changed, new and deleted files, derives the affected nodes and
  prints the plan as JSON: changes, affected sets, build order and the nodes
  that can be skipped.
` + projectHelp
	return strings.TrimSpace(helpText)
}

func (c *PlanCommand) Synopsis() string {
	return "Show what a build would rebuild"
}
