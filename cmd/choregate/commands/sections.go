package commands

import (
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/choregate/internal/todoist"
)

// SectionsCmd lists Todoist projects and their sections, to find the section
// ID to configure for each child.
type SectionsCmd struct {
	Project string `help:"Only list sections of this project ID"`
}

func (s *SectionsCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	client := todoist.NewFromConfig(cfg.Todoist, g.Logger)
	projects, err := client.ListProjects(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PROJECT\tPROJECT ID\tSECTION\tSECTION ID")
	for _, p := range projects {
		if s.Project != "" && p.ID != s.Project {
			continue
		}
		sections, err := client.ListSections(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(sections) == 0 {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t-\t-\n", p.Name, p.ID)
			continue
		}
		for _, sec := range sections {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.ID, sec.Name, sec.ID)
		}
	}
	return tw.Flush()
}
