// Package config implements hierarchical configuration for idev.
// Precedence: defaults < user (~/.idev/config.toml) < project (.idev/config.toml) < env (IDEV_*) < flags.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Config is the top-level configuration structure.
type Config struct {
	// Repo names the active integrations repo in Repos.
	Repo string `toml:"repo" mapstructure:"repo"`
	// Org names the active org in Orgs.
	Org     string               `toml:"org" mapstructure:"org"`
	Repos   map[string]string    `toml:"repos" mapstructure:"repos"`
	Orgs    map[string]OrgConfig `toml:"orgs" mapstructure:"orgs"`
	Runner  RunnerConfig         `toml:"runner" mapstructure:"runner"`
	History HistoryConfig        `toml:"history" mapstructure:"history"`
}

// OrgConfig holds per-org credentials and endpoints.
type OrgConfig struct {
	APIKey string `toml:"api_key" mapstructure:"api_key"`
	Site   string `toml:"site" mapstructure:"site"`
}

// RunnerConfig holds task-runner settings shared by every test run.
type RunnerConfig struct {
	Command        string `toml:"command" mapstructure:"command"`
	BaseBranch     string `toml:"base_branch" mapstructure:"base_branch"`
	DDTraceService string `toml:"ddtrace_service" mapstructure:"ddtrace_service"`
}

// HistoryConfig holds run-history persistence settings.
type HistoryConfig struct {
	DatabasePath  string `toml:"database_path" mapstructure:"database_path"`
	RetentionDays int    `toml:"retention_days" mapstructure:"retention_days"`
}

// ActiveOrg returns the org section selected by the org key. A zero value
// is returned when the org is not configured.
func (c Config) ActiveOrg() OrgConfig {
	return c.Orgs[c.Org]
}

// RepoRoot returns the configured path of the active repo with a leading
// ~ expanded, or "" when no path is configured.
func (c Config) RepoRoot() string {
	return expandUser(c.Repos[c.Repo])
}

// Scrubbed returns a copy with org API keys masked for display.
func (c Config) Scrubbed() Config {
	out := c
	out.Orgs = make(map[string]OrgConfig, len(c.Orgs))
	for name, org := range c.Orgs {
		if org.APIKey != "" {
			org.APIKey = strings.Repeat("*", len(org.APIKey))
		}
		out.Orgs[name] = org
	}
	return out
}

func expandUser(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
