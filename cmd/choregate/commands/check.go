package commands

import (
	"fmt"
	"io"

	"git.home.luguber.info/inful/choregate/internal/clock"
	"git.home.luguber.info/inful/choregate/internal/foundation/errors"
	"git.home.luguber.info/inful/choregate/internal/logfields"
	"git.home.luguber.info/inful/choregate/internal/sophos"
	"git.home.luguber.info/inful/choregate/internal/todoist"
)

// CheckCmd implements the 'check' command: a read-only connectivity test.
// It never changes a firewall rule.
type CheckCmd struct{}

func (c *CheckCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	w := g.out()
	failures := 0
	fail := func(what string, err error) {
		failures++
		g.Logger.Error("Connectivity check failed", "check", what, logfields.Error(err))
		_, _ = fmt.Fprintf(w, "FAIL  %s: %v\n", what, err)
	}

	firewall := sophos.NewFromConfig(cfg.Sophos, g.Logger)
	if err := firewall.Login(ctx); err != nil {
		fail("firewall login "+firewall.Endpoint(), err)
	} else {
		_, _ = fmt.Fprintf(w, "OK    firewall login %s\n", firewall.Endpoint())
		for _, rule := range cfg.RuleNames() {
			enabled, err := firewall.GetRuleEnabled(ctx, rule)
			if err != nil {
				fail("rule "+rule, err)
				continue
			}
			_, _ = fmt.Fprintf(w, "OK    rule %s: %s\n", rule, describeRule(enabled))
		}
	}

	today := clock.New(g.Clock, cfg.Location()).Today()
	tasks := todoist.NewFromConfig(cfg.Todoist, g.Logger)
	for _, child := range cfg.Children {
		incomplete, err := tasks.HasIncompleteTasks(ctx, child.SectionID, today)
		if err != nil {
			fail(fmt.Sprintf("tasks for %s (section %s)", child.Name, child.SectionID), err)
			continue
		}
		printTasks(w, child.Name, child.SectionID, incomplete)
	}

	if failures > 0 {
		return errors.NetworkError("connectivity check failed").
			WithContext("failures", failures).
			Build()
	}
	_, _ = fmt.Fprintln(w, "All checks passed")
	return nil
}

func describeRule(enabled bool) string {
	if enabled {
		return "enabled (internet blocked)"
	}
	return "disabled (internet allowed)"
}

func printTasks(w io.Writer, child, section string, incomplete bool) {
	status := "all tasks due today are complete"
	if incomplete {
		status = "has incomplete tasks due today"
	}
	_, _ = fmt.Fprintf(w, "OK    tasks for %s (section %s): %s\n", child, section, status)
}
