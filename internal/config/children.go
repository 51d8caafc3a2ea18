package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type childrenFile struct {
	Children          []ChildConfig            `yaml:"children"`
	ScheduledDisables []ScheduledDisableConfig `yaml:"scheduled_disables"`
}

// loadChildrenFile reads children and scheduled disables from a YAML file.
// ${VAR} references are expanded through lookup before parsing.
func loadChildrenFile(cfg *Config, path string, lookup LookupFunc) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("children file %s: %w", path, err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		v, _ := lookup(key)
		return v
	})

	var parsed childrenFile
	if err := yaml.Unmarshal([]byte(expanded), &parsed); err != nil {
		return fmt.Errorf("children file %s: %w", path, err)
	}

	for i := range parsed.ScheduledDisables {
		if parsed.ScheduledDisables[i].At == "" {
			parsed.ScheduledDisables[i].At = DefaultManualDisableTime
		}
	}

	cfg.ChildrenFile = path
	cfg.Children = parsed.Children
	cfg.ScheduledDisables = parsed.ScheduledDisables
	return nil
}

type legacyChild struct {
	name, sectionVar, ruleVar, suppressVar string
}

var legacyChildren = []legacyChild{
	{"daniel", "TODOIST_DANIEL_SECTION_ID", "SOPHOS_DANIEL_RULE_NAME", "DANIEL_SUPPRESS_BLOCKING"},
	{"sophie", "TODOIST_SOPHIE_SECTION_ID", "SOPHOS_SOPHIE_RULE_NAME", "SOPHIE_SUPPRESS_BLOCKING"},
}

// applyLegacyChildren builds the children from the per-child variables used
// before the children file existed. A child with neither variable set is
// skipped; a child with only one is kept so validation can report it.
func applyLegacyChildren(cfg *Config, env *envReader) {
	for _, lc := range legacyChildren {
		section := env.str(lc.sectionVar)
		rule := env.str(lc.ruleVar)
		if section == "" && rule == "" {
			continue
		}
		cfg.Children = append(cfg.Children, ChildConfig{
			Name:             lc.name,
			SectionID:        section,
			RuleName:         rule,
			SuppressBlocking: env.bool(lc.suppressVar, false),
		})
	}

	if rule := env.str("SOPHOS_SOPHIE_MANUAL_ALLOW_RULE_NAME"); rule != "" {
		at := env.str("SOPHOS_SOPHIE_MANUAL_ALLOW_DISABLE_TIME")
		if at == "" {
			at = DefaultManualDisableTime
		}
		cfg.ScheduledDisables = append(cfg.ScheduledDisables, ScheduledDisableConfig{Rule: rule, At: at})
	}
}
