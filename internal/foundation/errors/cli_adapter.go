package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for the CLI.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		out:     os.Stderr,
		exit:    os.Exit,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if classified, ok := AsClassified(err); ok {
		return a.exitCodeFromClassified(classified)
	}

	return 1
}

// exitCodeFromClassified maps ClassifiedError to exit codes.
func (a *CLIErrorAdapter) exitCodeFromClassified(err *ClassifiedError) int {
	switch err.Category() {
	case CategoryConfig, CategoryValidation:
		return 2
	case CategoryAuth:
		return 3
	default:
		return 1
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	classified, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}

	if a.verbose {
		return classified.Error()
	}

	switch classified.Category() {
	case CategoryConfig, CategoryValidation:
		if classified.Cause() != nil {
			return fmt.Sprintf("Configuration error: %s: %v", classified.Message(), classified.Cause())
		}
		return "Configuration error: " + classified.Message()
	case CategoryAuth:
		return "Authentication error: " + classified.Message()
	default:
		return "Error: " + classified.Message() + " (use -v for details)"
	}
}

// HandleError logs and prints an error, then exits with the mapped code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	if a.shouldLog(err) {
		a.logError(err)
	}

	_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

// shouldLog determines if an error should be logged.
func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if classified, ok := AsClassified(err); ok {
		return classified.Severity() == SeverityFatal
	}
	return true
}

// logError logs an error with appropriate level and context.
func (a *CLIErrorAdapter) logError(err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}

	attrs := []slog.Attr{
		slog.String("category", string(classified.Category())),
	}
	for k, v := range classified.Context() {
		attrs = append(attrs, slog.Any(k, v))
	}
	if classified.Cause() != nil {
		attrs = append(attrs, slog.String("cause", classified.Cause().Error()))
	}
	a.logger.LogAttrs(context.Background(), a.slogLevelFromSeverity(classified.Severity()), classified.Message(), attrs...)
}

// slogLevelFromSeverity converts ClassifiedError severity to slog level.
func (a *CLIErrorAdapter) slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
