package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/joshholl/integrations-core/internal/config"
	"github.com/joshholl/integrations-core/internal/console"
	"github.com/joshholl/integrations-core/internal/output"
)

var (
	flagConfigShowAll  bool
	flagConfigShowJSON bool
	flagConfigSetUser  bool
)

func init() {
	configShowCmd.Flags().BoolVarP(&flagConfigShowAll, "all", "a", false, "do not scrub secrets")
	configShowCmd.Flags().BoolVar(&flagConfigShowJSON, "json", false, "output as JSON")
	configSetCmd.Flags().BoolVar(&flagConfigSetUser, "user", false, "write to the user config instead of the project config")

	configCmd.AddCommand(configFindCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config files",
}

var configFindCmd = &cobra.Command{
	Use:   "find",
	Short: "Show the locations of the config files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return writeError(cmd, err, 1)
		}

		userPath, projectPath := config.ConfigPaths(cwd, flagConfig)
		console.Info("User config: %s", userPath)
		console.Info("Project config: %s", projectPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging defaults, the user config, the
project config, environment variables and flags. Secrets are scrubbed
unless --all is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output.SetJSON(flagConfigShowJSON)

		cfg, err := loadConfig()
		if err != nil {
			return writeError(cmd, err, 1)
		}
		if !flagConfigShowAll {
			cfg = cfg.Scrubbed()
		}

		if output.IsJSON() {
			return output.JSON(cfg)
		}

		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		enc.Indent = "  "
		if err := enc.Encode(cfg); err != nil {
			return writeError(cmd, err, 1)
		}
		fmt.Fprint(cmd.OutOrStdout(), buf.String())
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show a single configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return writeError(cmd, err, 1)
		}

		value, ok := config.GetValue(cfg, args[0])
		if !ok {
			return writeError(cmd, fmt.Errorf("unknown config key %q", args[0]), 1)
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatConfigValue(value))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the project config file, creating the file
when missing. With --user the value is written to the user config
instead, which is where org credentials belong.

Examples:

  idev config set repo extras
  idev config set runner.command hatch
  idev config set --user orgs.default.api_key <key>`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, raw := args[0], args[1]

		value, err := config.ParseValue(key, raw)
		if err != nil {
			return writeError(cmd, err, 1)
		}

		cwd, err := os.Getwd()
		if err != nil {
			return writeError(cmd, err, 1)
		}
		userPath, projectPath := config.ConfigPaths(cwd, flagConfig)
		target := projectPath
		if flagConfigSetUser {
			target = userPath
		}

		if err := config.WriteValue(target, key, value); err != nil {
			return writeError(cmd, err, 1)
		}

		display := raw
		if strings.HasSuffix(key, "api_key") {
			display = strings.Repeat("*", len(raw))
		}
		console.Success("Set `%s = %s` in %s", key, display, target)
		return nil
	},
}

func formatConfigValue(value any) string {
	switch v := value.(type) {
	case []string:
		return strings.Join(v, ", ")
	case string, bool, int:
		return fmt.Sprintf("%v", v)
	default:
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		enc.Indent = "  "
		if err := enc.Encode(v); err != nil {
			return fmt.Sprintf("%+v", v)
		}
		return strings.TrimRight(buf.String(), "\n")
	}
}
