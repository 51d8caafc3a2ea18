package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/choregate/internal/config"
	"git.home.luguber.info/inful/choregate/internal/foundation/errors"
	"git.home.luguber.info/inful/choregate/internal/version"
)

// Global carries process wide state shared by every command.
type Global struct {
	Logger *slog.Logger
	// Out receives command output; logs go to LogOut.
	Out    io.Writer
	LogOut io.Writer
	// Clock overrides the real clock.
	Clock clockwork.Clock
}

func (g *Global) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Global) logOut() io.Writer {
	if g.LogOut == nil {
		return os.Stderr
	}
	return g.LogOut
}

// CLI definition & global flags.
type CLI struct {
	Children  string           `help:"YAML file listing children and scheduled disables (overrides CHILDREN_FILE)" type:"path"`
	NoDotEnv  bool             `name:"no-dotenv" help:"Do not load .env and .env.local"`
	LogFormat string           `name:"log-format" help:"Log format: text or json (overrides LOG_FORMAT)"`
	Verbose   bool             `short:"v" help:"Enable debug logging (overrides LOG_LEVEL)"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run        RunCmd      `cmd:"" default:"withargs" help:"Check chores once and apply firewall rules (default)"`
	Daemon     DaemonCmd   `cmd:"" help:"Check chores on an interval until stopped"`
	Check      CheckCmd    `cmd:"" help:"Test connectivity to Todoist and the firewall"`
	Sections   SectionsCmd `cmd:"" help:"List Todoist projects and sections with their IDs"`
	Status     StatusCmd   `cmd:"" help:"Show daily state and recent decisions"`
	VersionCmd VersionCmd  `cmd:"" name:"version" help:"Print version information"`
}

// NewParser builds the kong parser shared by main and tests.
func NewParser(cli *CLI, g *Global, options ...kong.Option) (*kong.Kong, error) {
	opts := []kong.Option{
		kong.Name("choregate"),
		kong.Description("Keeps a child's internet rule enabled until their chores are done."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(g),
	}
	return kong.New(cli, append(opts, options...)...)
}

// AfterApply runs after flag parsing; setup logging once. The level and
// format from the environment are applied later by loadConfig unless a flag
// already chose them.
func (c *CLI) AfterApply(g *Global) error {
	if c.LogFormat != "" {
		if _, err := config.ParseLogFormat(c.LogFormat); err != nil {
			return errors.ValidationError("invalid --log-format").WithCause(err).Build()
		}
	}
	level := config.LogLevelInfo
	if c.Verbose {
		level = config.LogLevelDebug
	}
	c.setLogger(g, config.LoggingConfig{Level: level, Format: config.NormalizeLogFormat(c.LogFormat)})
	return nil
}

func (c *CLI) setLogger(g *Global, lc config.LoggingConfig) {
	opts := &slog.HandlerOptions{Level: lc.Level.SlogLevel()}
	var handler slog.Handler
	if lc.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(g.logOut(), opts)
	} else {
		handler = slog.NewTextHandler(g.logOut(), opts)
	}
	g.Logger = slog.New(handler)
	slog.SetDefault(g.Logger)
}

// loadConfig resolves the configuration and re-applies logging from it.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ChildrenFile: c.Children, SkipDotEnv: c.NoDotEnv})
	if err != nil {
		return nil, err
	}
	lc := cfg.Logging
	if c.Verbose {
		lc.Level = config.LogLevelDebug
	}
	if c.LogFormat != "" {
		lc.Format = config.NormalizeLogFormat(c.LogFormat)
	}
	c.setLogger(g, lc)
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
