package commands

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/choregate/internal/clock"
	"git.home.luguber.info/inful/choregate/internal/history"
	"git.home.luguber.info/inful/choregate/internal/state"
)

// StatusCmd prints the daily state files and the most recent journal entries.
type StatusCmd struct {
	Limit int `help:"Number of journal entries to show" default:"20"`
}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	w := g.out()
	today := clock.New(g.Clock, cfg.Location()).Today()

	completion, err := state.OpenCompletionStore(cfg.State.CompletionPath)
	if err != nil {
		return err
	}
	actions, err := state.OpenActionStore(cfg.State.ActionPath)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "Today: %s\n\n", today)
	printDates(w, "Chores completed ("+completion.Path()+")", "CHILD", completion.Entries(), today)
	printDates(w, "Scheduled actions ("+actions.Path()+")", "ACTION", actions.Entries(), today)

	if cfg.History.DBPath == "" {
		_, _ = fmt.Fprintln(w, "History journal: not configured (set HISTORY_DB_PATH)")
		return nil
	}
	store, err := history.OpenSQLite(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signalContext()
	defer cancel()
	entries, err := store.Recent(ctx, s.Limit)
	if err != nil {
		return err
	}
	printJournal(w, entries, cfg.Location())
	return nil
}

func printDates(w io.Writer, title, column string, entries map[string]string, today string) {
	_, _ = fmt.Fprintln(w, title+":")
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "  (none)")
		_, _ = fmt.Fprintln(w)
		return
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "  %s\tLAST DATE\tTODAY\n", column)
	for _, k := range keys {
		mark := "no"
		if entries[k] == today {
			mark = "yes"
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\n", k, entries[k], mark)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintln(w)
}

func printJournal(w io.Writer, entries []history.Entry, loc *time.Location) {
	_, _ = fmt.Fprintln(w, "Recent decisions:")
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "  (none)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "  AT\tKIND\tSUBJECT\tRULE\tSTATE\tREASON\tAPPLIED\tERROR")
	for _, e := range entries {
		errText := e.Error
		if errText == "" {
			errText = "-"
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			e.At.In(loc).Format(time.DateTime), e.Kind, e.Subject, e.Rule, e.State, e.Reason, e.Applied, errText)
	}
	_ = tw.Flush()
}
