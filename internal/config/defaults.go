package config

import "time"

const (
	DefaultTimezone            = "Europe/London"
	DefaultCutoffHour          = 14
	DefaultCompletionStatePath = "daily_completion_state.json"
	DefaultActionStatePath     = "scheduled_actions_state.json"
	DefaultSophosPort          = 4444
	DefaultTodoistBaseURL      = "https://api.todoist.com/api/v1"
	DefaultHTTPTimeout         = 10 * time.Second
	DefaultRunInterval         = 5 * time.Minute
	DefaultNATSSubject         = "choregate.rules"
	DefaultManualDisableTime   = "19:30"
)

func applyDefaults(cfg *Config) {
	if cfg.Todoist.BaseURL == "" {
		cfg.Todoist.BaseURL = DefaultTodoistBaseURL
	}
	if cfg.Todoist.Timeout <= 0 {
		cfg.Todoist.Timeout = DefaultHTTPTimeout
	}
	applyRetryDefaults(&cfg.Todoist.Retry)

	if cfg.Sophos.Port == 0 {
		cfg.Sophos.Port = DefaultSophosPort
	}
	if cfg.Sophos.Timeout <= 0 {
		cfg.Sophos.Timeout = DefaultHTTPTimeout
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = DefaultTimezone
	}
	if cfg.State.CompletionPath == "" {
		cfg.State.CompletionPath = DefaultCompletionStatePath
	}
	if cfg.State.ActionPath == "" {
		cfg.State.ActionPath = DefaultActionStatePath
	}
	if cfg.Daemon.Interval <= 0 {
		cfg.Daemon.Interval = DefaultRunInterval
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = DefaultNATSSubject
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}
