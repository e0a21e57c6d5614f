package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// LoadOptions controls configuration loading.
type LoadOptions struct {
	// ProjectDir is used to locate .idev/config.toml. Defaults to CWD when empty.
	ProjectDir string
	// ConfigPath overrides the project config path if provided.
	ConfigPath string
	// FlagOverrides are highest-priority overrides from CLI flags (dot-notated keys).
	FlagOverrides map[string]any
}

// Load returns the effective configuration after applying precedence:
// defaults < user (~/.idev/config.toml) < project (.idev/config.toml) < env (IDEV_*) < flags.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	projectDir := opts.ProjectDir
	if projectDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			projectDir = cwd
		}
	}

	layers := []string{
		userConfigPath(),
		projectConfigPath(projectDir, opts.ConfigPath),
	}
	for _, path := range layers {
		if err := mergeFile(v, path); err != nil {
			return Config{}, err
		}
	}

	for _, binding := range envBindings {
		raw := os.Getenv(binding.Env)
		if raw == "" {
			continue
		}
		parsed, err := binding.Kind.parse(raw)
		if err != nil {
			return Config{}, fmt.Errorf("env %s: %w", binding.Env, err)
		}
		v.Set(binding.Key, parsed)
	}

	for key, val := range opts.FlagOverrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Repos == nil {
		cfg.Repos = map[string]string{}
	}
	if cfg.Orgs == nil {
		cfg.Orgs = map[string]OrgConfig{}
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("repo", def.Repo)
	v.SetDefault("org", def.Org)
	v.SetDefault("repos", def.Repos)
	for name, org := range def.Orgs {
		v.SetDefault("orgs."+name+".api_key", org.APIKey)
		v.SetDefault("orgs."+name+".site", org.Site)
	}

	v.SetDefault("runner.command", def.Runner.Command)
	v.SetDefault("runner.base_branch", def.Runner.BaseBranch)
	v.SetDefault("runner.ddtrace_service", def.Runner.DDTraceService)

	v.SetDefault("history.database_path", def.History.DatabasePath)
	v.SetDefault("history.retention_days", def.History.RetentionDays)
}

// mergeFile merges one TOML layer into v. A missing file is not an error,
// so fresh checkouts work without any config at all.
func mergeFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

// ConfigPaths returns the user and project config file paths.
func ConfigPaths(projectDir, configOverride string) (string, string) {
	return userConfigPath(), projectConfigPath(projectDir, configOverride)
}

func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".idev", "config.toml")
}

// projectConfigPath walks from projectDir toward the filesystem root looking
// for an existing .idev/config.toml, so the CLI works from inside a check
// directory. Falls back to projectDir/.idev/config.toml.
func projectConfigPath(projectDir, override string) string {
	if override != "" {
		return override
	}
	if projectDir == "" {
		return filepath.Join(".idev", "config.toml")
	}
	dir := projectDir
	for {
		candidate := filepath.Join(dir, ".idev", "config.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return filepath.Join(projectDir, ".idev", "config.toml")
}

// ParseValue parses a raw string into the expected type for a given config key.
func ParseValue(key, raw string) (any, error) {
	kind, ok := keyKinds[key]
	if !ok {
		kind, ok = dynamicKeyKind(key)
	}
	if !ok {
		return nil, fmt.Errorf("unsupported key %q", key)
	}
	return kind.parse(raw)
}

// dynamicKeyKind resolves keys under the open-ended repos and orgs tables.
func dynamicKeyKind(key string) (valueKind, bool) {
	parts := strings.Split(key, ".")
	switch {
	case len(parts) == 2 && parts[0] == "repos" && parts[1] != "":
		return kindString, true
	case len(parts) == 3 && parts[0] == "orgs" && parts[1] != "" &&
		(parts[2] == "api_key" || parts[2] == "site"):
		return kindString, true
	}
	return 0, false
}

// GetValue retrieves a dot-notated value from the Config.
func GetValue(cfg Config, key string) (any, bool) {
	segments := strings.Split(key, ".")
	if len(segments) == 0 {
		return nil, false
	}
	var current any = cfg
	for _, seg := range segments {
		switch c := current.(type) {
		case Config:
			switch seg {
			case "repo":
				current = c.Repo
			case "org":
				current = c.Org
			case "repos":
				current = c.Repos
			case "orgs":
				current = c.Orgs
			case "runner":
				current = c.Runner
			case "history":
				current = c.History
			default:
				return nil, false
			}
		case map[string]string:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]OrgConfig:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			current = v
		case OrgConfig:
			switch seg {
			case "api_key":
				return c.APIKey, true
			case "site":
				return c.Site, true
			default:
				return nil, false
			}
		case RunnerConfig:
			switch seg {
			case "command":
				return c.Command, true
			case "base_branch":
				return c.BaseBranch, true
			case "ddtrace_service":
				return c.DDTraceService, true
			default:
				return nil, false
			}
		case HistoryConfig:
			switch seg {
			case "database_path":
				return c.DatabasePath, true
			case "retention_days":
				return c.RetentionDays, true
			default:
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return current, true
}

// WriteValue rewrites the TOML file at path with key set to value,
// preserving everything else the file already holds.
func WriteValue(path, key string, value any) error {
	if path == "" {
		return fmt.Errorf("no config file to write to")
	}

	doc := map[string]any{}
	if _, err := toml.DecodeFile(path, &doc); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := setNested(doc, key, strings.Split(key, "."), value); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	enc.Indent = "  "
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

// setNested descends table by table, creating intermediate tables as
// needed. key is the full dot-notated key, kept for error messages.
func setNested(table map[string]any, key string, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid key %q", key)
	}
	if len(parts) == 1 {
		table[parts[0]] = value
		return nil
	}
	child, ok := table[parts[0]]
	if !ok {
		sub := map[string]any{}
		table[parts[0]] = sub
		return setNested(sub, key, parts[1:], value)
	}
	sub, ok := child.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set %s: %s is not a table", key, parts[0])
	}
	return setNested(sub, key, parts[1:], value)
}

// valueKind is the scalar type expected for a config key.
type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindInt
	kindStringSlice
)

var keyKinds = map[string]valueKind{
	"repo": kindString,
	"org":  kindString,

	"runner.command":         kindString,
	"runner.base_branch":     kindString,
	"runner.ddtrace_service": kindString,

	"history.database_path":  kindString,
	"history.retention_days": kindInt,
}

var envBindings = []struct {
	Env  string
	Key  string
	Kind valueKind
}{
	{"IDEV_REPO", "repo", kindString},
	{"IDEV_ORG", "org", kindString},

	{"IDEV_RUNNER_COMMAND", "runner.command", kindString},
	{"IDEV_BASE_BRANCH", "runner.base_branch", kindString},
	{"IDEV_DDTRACE_SERVICE", "runner.ddtrace_service", kindString},

	{"IDEV_HISTORY_DB_PATH", "history.database_path", kindString},
	{"IDEV_HISTORY_RETENTION_DAYS", "history.retention_days", kindInt},
}

func (k valueKind) parse(raw string) (any, error) {
	switch k {
	case kindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", raw)
		}
		return v, nil
	case kindInt:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return v, nil
	case kindStringSlice:
		var result []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		return result, nil
	default:
		return raw, nil
	}
}
