package config

import (
	"os"
	"time"
)

// Config is the fully resolved configuration for one choregate process.
type Config struct {
	Todoist  TodoistConfig
	Sophos   SophosConfig
	Schedule ScheduleConfig
	State    StateConfig
	Logging  LoggingConfig
	Daemon   DaemonConfig
	History  HistoryConfig
	Metrics  MetricsConfig
	NATS     NATSConfig

	// ChildrenFile is the YAML file the children were read from, empty when
	// they came from the legacy environment variables.
	ChildrenFile      string
	Children          []ChildConfig
	ScheduledDisables []ScheduledDisableConfig
}

// TodoistConfig holds the task service credentials and client tuning.
type TodoistConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Retry   RetryConfig
}

// SophosConfig holds the firewall XML API endpoint and credentials.
type SophosConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	VerifyTLS bool
	Timeout   time.Duration
}

// ScheduleConfig holds the decision windows that are configurable.
type ScheduleConfig struct {
	Timezone   string
	CutoffHour int
}

type StateConfig struct {
	CompletionPath string
	ActionPath     string
}

type DaemonConfig struct {
	Interval      time.Duration
	MetricsListen string
}

type HistoryConfig struct {
	DBPath string
}

type MetricsConfig struct {
	TextfilePath string
}

type NATSConfig struct {
	URL     string
	Subject string
}

// ChildConfig is one monitored child as written in the children file.
type ChildConfig struct {
	Name             string `yaml:"name"`
	SectionID        string `yaml:"section_id"`
	RuleName         string `yaml:"rule_name"`
	SuppressBlocking bool   `yaml:"suppress_blocking"`
}

// ScheduledDisableConfig is a rule that gets disabled once a day at At (HH:MM).
type ScheduledDisableConfig struct {
	Rule string `yaml:"rule"`
	At   string `yaml:"at"`
}

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// LoadOptions tune Load.
type LoadOptions struct {
	// ChildrenFile overrides CHILDREN_FILE.
	ChildrenFile string
	// SkipDotEnv disables .env/.env.local loading.
	SkipDotEnv bool
}

// Load resolves the configuration from the process environment, the .env
// files and the optional children file. Process variables win over .env
// values. The returned error is a classified config error listing every
// problem found.
func Load(opts LoadOptions) (*Config, error) {
	lookup := LookupFunc(os.LookupEnv)
	if !opts.SkipDotEnv {
		lookup = dotEnvLookup(".env", ".env.local")
	}
	return LoadFrom(lookup, opts.ChildrenFile)
}

// LoadFrom resolves the configuration from lookup without touching .env files.
func LoadFrom(lookup LookupFunc, childrenFile string) (*Config, error) {
	env := envReader{lookup: lookup}
	cfg := &Config{}
	applyEnv(cfg, &env)
	applyDefaults(cfg)

	if childrenFile == "" {
		childrenFile = env.str("CHILDREN_FILE")
	}
	if childrenFile != "" {
		if err := loadChildrenFile(cfg, childrenFile, lookup); err != nil {
			env.problem(err)
		}
	} else {
		applyLegacyChildren(cfg, &env)
	}

	if err := validate(cfg, env.problems); err != nil {
		return nil, err
	}
	return cfg, nil
}
