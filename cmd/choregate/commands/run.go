package commands

import (
	"fmt"

	"git.home.luguber.info/inful/choregate/internal/monitor"
)

// RunCmd implements the default 'run' command: one chore check, then exit.
type RunCmd struct {
	Summary bool `help:"Print a one line summary per child to stdout"`
}

// Run exits 0 once the check has completed, whatever the external services
// answered. Only configuration problems fail the command.
func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	recorder, prom := newRecorder(cfg)
	rt, err := buildRuntime(cfg, g, recorder)
	if err != nil {
		return configError(err)
	}
	defer rt.Close()

	ctx, cancel := signalContext()
	defer cancel()

	report := rt.Invoker.Run(ctx)
	writeTextfile(prom, cfg.Metrics.TextfilePath, g.Logger)

	if r.Summary {
		printSummary(g, report)
	}
	return nil
}

func printSummary(g *Global, report monitor.Report) {
	w := g.out()
	for _, c := range report.Children {
		applied := "applied"
		if !c.Applied {
			applied = "not applied"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Child.Name, c.Decision.State, c.Decision.Reason, applied)
	}
	for _, a := range report.Actions {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", a.Action.Key(), a.Status)
	}
}
