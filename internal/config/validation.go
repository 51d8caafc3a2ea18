package config

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/choregate/internal/foundation/errors"
	"git.home.luguber.info/inful/choregate/internal/policy"
	"git.home.luguber.info/inful/choregate/internal/schedule"
)

// validate collects every configuration problem into a single config error.
func validate(cfg *Config, problems []error) error {
	required := []struct{ key, value string }{
		{"TODOIST_API_KEY", cfg.Todoist.APIKey},
		{"SOPHOS_HOST", cfg.Sophos.Host},
		{"SOPHOS_API_USER", cfg.Sophos.User},
		{"SOPHOS_API_PASSWORD", cfg.Sophos.Password},
	}
	for _, r := range required {
		if r.value == "" {
			problems = append(problems, fmt.Errorf("%s is required", r.key))
		}
	}

	if cfg.Schedule.CutoffHour < 0 || cfg.Schedule.CutoffHour > 23 {
		problems = append(problems, fmt.Errorf("CUTOFF_HOUR must be between 0 and 23, got %d", cfg.Schedule.CutoffHour))
	}
	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		problems = append(problems, fmt.Errorf("TIMEZONE %q: %w", cfg.Schedule.Timezone, err))
	}
	if cfg.Sophos.Port < 1 || cfg.Sophos.Port > 65535 {
		problems = append(problems, fmt.Errorf("SOPHOS_PORT must be between 1 and 65535, got %d", cfg.Sophos.Port))
	}

	problems = append(problems, validateChildren(cfg.Children)...)
	for i, sd := range cfg.ScheduledDisables {
		if strings.TrimSpace(sd.Rule) == "" {
			problems = append(problems, fmt.Errorf("scheduled disable %d: rule is required", i+1))
		}
		if _, err := schedule.ParseTimeOfDay(sd.At); err != nil {
			problems = append(problems, fmt.Errorf("scheduled disable %q: %w", sd.Rule, err))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.ConfigError("invalid configuration").
		WithCause(stderrors.Join(problems...)).
		WithContext("problems", len(problems)).
		Build()
}

func validateChildren(children []ChildConfig) []error {
	if len(children) == 0 {
		return []error{fmt.Errorf("no children configured")}
	}
	var problems []error
	seen := make(map[string]bool, len(children))
	for i, c := range children {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			problems = append(problems, fmt.Errorf("child %d: name is required", i+1))
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			problems = append(problems, fmt.Errorf("duplicate child name %q", name))
		}
		seen[key] = true
		if strings.TrimSpace(c.SectionID) == "" {
			problems = append(problems, fmt.Errorf("child %q: section id is required", name))
		}
		if strings.TrimSpace(c.RuleName) == "" {
			problems = append(problems, fmt.Errorf("child %q: rule name is required", name))
		}
	}
	return problems
}

// Location returns the configured zone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PolicyChildren converts the configured children for the decision engine.
func (c *Config) PolicyChildren() []policy.Child {
	out := make([]policy.Child, 0, len(c.Children))
	for _, ch := range c.Children {
		out = append(out, policy.Child{
			Name:             strings.TrimSpace(ch.Name),
			SectionID:        strings.TrimSpace(ch.SectionID),
			RuleName:         strings.TrimSpace(ch.RuleName),
			SuppressBlocking: ch.SuppressBlocking,
		})
	}
	return out
}

// DailyDisables converts the scheduled disables for the action runner.
func (c *Config) DailyDisables() []schedule.DailyDisable {
	out := make([]schedule.DailyDisable, 0, len(c.ScheduledDisables))
	for _, sd := range c.ScheduledDisables {
		at, err := schedule.ParseTimeOfDay(sd.At)
		if err != nil {
			continue
		}
		out = append(out, schedule.DailyDisable{RuleName: strings.TrimSpace(sd.Rule), At: at})
	}
	return out
}

// RuleNames lists every rule the process touches, children first.
func (c *Config) RuleNames() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, ch := range c.Children {
		add(ch.RuleName)
	}
	for _, sd := range c.ScheduledDisables {
		add(sd.Rule)
	}
	return out
}
