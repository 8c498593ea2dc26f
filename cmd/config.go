package cmd

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/keystone/internal/config"
	"github.com/zjrosen/keystone/internal/flags"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration",
		// Config commands must work while the config itself is invalid.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}
	cmd.AddCommand(
		newConfigInitCmd(a),
		newConfigSetCmd(a),
		newConfigShowCmd(a),
	)
	return cmd
}

// targetPath is the file config commands write: --config, else the local
// project config.
func (a *app) targetPath() string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	return localConfigPath
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.targetPath()
			if _, err := os.Stat(path); err == nil && !force {
				return errors.WithHint(errors.Newf("%s already exists", path), "pass --force to overwrite it")
			}
			if err := config.WriteDefaultConfig(path); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one config value, keeping comments",
		Long: `Set one dotted config key in the config file. Comments and other
settings are kept.

Examples:
  keystone config set catalog_dir ./content
  keystone config set watch.debounce 1s
  keystone config set flags.registry-events true`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if name, ok := strings.CutPrefix(key, "flags."); ok {
				if _, known := flags.Known[name]; !known {
					return errors.WithHintf(errors.Newf("unknown feature flag %q", name),
						"known flags: %s", strings.Join(slices.Sorted(maps.Keys(flags.Known)), ", "))
				}
			}
			path := a.targetPath()
			if err := config.SetValue(path, key, value); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "set %s in %s\n", key, path)
			return err
		},
	}
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			settings := a.v.AllSettings()
			if used := a.v.ConfigFileUsed(); used != "" {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", used); err != nil {
					return err
				}
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(settings); err != nil {
				return errors.Wrap(err, "encoding config")
			}
			return enc.Close()
		},
	}
}
