package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// dotEnvLookup resolves a key from the process environment first, then from
// each dotenv file that exists, in order. The files are read on every call
// and never copied into the process environment, so a later Load sees edits.
func dotEnvLookup(paths ...string) LookupFunc {
	var files []map[string]string
	for _, p := range paths {
		vals, err := godotenv.Read(p)
		if err != nil {
			continue
		}
		slog.Debug("Loaded environment file", "path", p)
		files = append(files, vals)
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		for _, vals := range files {
			if v, ok := vals[key]; ok {
				return v, true
			}
		}
		return "", false
	}
}

// envReader reads typed values and collects parse problems instead of
// failing on the first one.
type envReader struct {
	lookup   LookupFunc
	problems []error
}

func (r *envReader) problem(err error) {
	r.problems = append(r.problems, err)
}

func (r *envReader) str(key string) string {
	v, ok := r.lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func (r *envReader) int(key string, def int) int {
	raw := r.str(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.problem(fmt.Errorf("%s: %q is not an integer", key, raw))
		return def
	}
	return n
}

func (r *envReader) bool(key string, def bool) bool {
	raw := r.str(key)
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	r.problem(fmt.Errorf("%s: %q is not a boolean", key, raw))
	return def
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	raw := r.str(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.problem(fmt.Errorf("%s: %q is not a duration", key, raw))
		return def
	}
	return d
}

func applyEnv(cfg *Config, env *envReader) {
	cfg.Todoist.APIKey = env.str("TODOIST_API_KEY")
	cfg.Todoist.BaseURL = env.str("TODOIST_API_URL")
	cfg.Todoist.Timeout = env.duration("TODOIST_TIMEOUT", 0)
	cfg.Todoist.Retry.MaxAttempts = env.int("TODOIST_RETRY_ATTEMPTS", 0)
	cfg.Todoist.Retry.InitialDelay = env.duration("TODOIST_RETRY_DELAY", 0)
	if raw := env.str("TODOIST_RETRY_BACKOFF"); raw != "" {
		mode := NormalizeRetryBackoff(raw)
		if mode == "" {
			env.problem(fmt.Errorf("TODOIST_RETRY_BACKOFF: %q is not one of fixed, linear, exponential", raw))
		}
		cfg.Todoist.Retry.Backoff = mode
	}

	cfg.Sophos.Host = env.str("SOPHOS_HOST")
	cfg.Sophos.Port = env.int("SOPHOS_PORT", 0)
	cfg.Sophos.User = env.str("SOPHOS_API_USER")
	cfg.Sophos.Password = env.str("SOPHOS_API_PASSWORD")
	cfg.Sophos.VerifyTLS = env.bool("SOPHOS_VERIFY_TLS", false)
	cfg.Sophos.Timeout = env.duration("SOPHOS_TIMEOUT", 0)

	cfg.Schedule.Timezone = env.str("TIMEZONE")
	cfg.Schedule.CutoffHour = env.int("CUTOFF_HOUR", DefaultCutoffHour)

	cfg.State.CompletionPath = env.str("STATE_FILE_PATH")
	cfg.State.ActionPath = env.str("ACTION_STATE_FILE_PATH")

	cfg.Daemon.Interval = env.duration("RUN_INTERVAL", 0)
	cfg.Daemon.MetricsListen = env.str("METRICS_LISTEN")
	cfg.History.DBPath = env.str("HISTORY_DB_PATH")
	cfg.Metrics.TextfilePath = env.str("METRICS_TEXTFILE_PATH")
	cfg.NATS.URL = env.str("NATS_URL")
	cfg.NATS.Subject = env.str("NATS_SUBJECT")

	if raw := env.str("LOG_LEVEL"); raw != "" {
		level, err := logLevelNormalizer.NormalizeWithError(raw)
		if err != nil {
			env.problem(fmt.Errorf("LOG_LEVEL: %w", err))
		}
		cfg.Logging.Level = level
	}
	if raw := env.str("LOG_FORMAT"); raw != "" {
		format, err := logFormatNormalizer.NormalizeWithError(raw)
		if err != nil {
			env.problem(fmt.Errorf("LOG_FORMAT: %w", err))
		}
		cfg.Logging.Format = format
	}
}
