package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyChild      = "child"
	KeyRule       = "rule"
	KeySection    = "section"
	KeyAction     = "action"
	KeyDate       = "date"
	KeyHour       = "hour"
	KeyState      = "state"
	KeyReason     = "reason"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyAttempt    = "attempt"
	KeyStatus     = "status"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Child(name string) slog.Attr     { return slog.String(KeyChild, name) }
func Rule(name string) slog.Attr      { return slog.String(KeyRule, name) }
func Section(id string) slog.Attr     { return slog.String(KeySection, id) }
func Action(key string) slog.Attr     { return slog.String(KeyAction, key) }
func Date(d string) slog.Attr         { return slog.String(KeyDate, d) }
func Hour(h int) slog.Attr            { return slog.Int(KeyHour, h) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
