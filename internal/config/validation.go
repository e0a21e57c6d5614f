package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for semantic errors.
func Validate(cfg Config) error {
	var errs []string

	if cfg.Repo == "" {
		errs = append(errs, "repo must name the active repo")
	}
	if cfg.Org == "" {
		errs = append(errs, "org must name the active org")
	}
	for name, path := range cfg.Repos {
		if name == "" {
			errs = append(errs, "repos entries must be named")
		}
		if strings.TrimSpace(path) == "" {
			errs = append(errs, fmt.Sprintf("repos.%s must be a path", name))
		}
	}

	if cfg.Runner.Command == "" {
		errs = append(errs, "runner.command must not be empty")
	}
	if cfg.Runner.BaseBranch == "" {
		errs = append(errs, "runner.base_branch must not be empty")
	}

	if cfg.History.RetentionDays < 0 {
		errs = append(errs, "history.retention_days cannot be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
