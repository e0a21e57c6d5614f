package config

// DefaultConfig returns the built-in default configuration.
func DefaultConfig() Config {
	return Config{
		Repo:  "core",
		Org:   "default",
		Repos: map[string]string{},
		Orgs: map[string]OrgConfig{
			"default": {
				APIKey: "",
				Site:   "datadoghq.com",
			},
		},
		Runner: RunnerConfig{
			Command:        "tox",
			BaseBranch:     "master",
			DDTraceService: "idev-integrations",
		},
		History: HistoryConfig{
			DatabasePath:  "",
			RetentionDays: 90,
		},
	}
}
