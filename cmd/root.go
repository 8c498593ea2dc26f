package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/keystone/internal/config"
	"github.com/zjrosen/keystone/internal/flags"
	"github.com/zjrosen/keystone/internal/log"
	"github.com/zjrosen/keystone/internal/presentation"
	"github.com/zjrosen/keystone/internal/tracing"
)

// localConfigPath is checked before the user config directory.
const localConfigPath = ".keystone/config.yaml"

// errReported marks failures whose details were already written to stdout.
var errReported = errors.New("problems reported")

var version = "dev"

// app holds the state shared by every command of one invocation.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     config.Config
	flags   *flags.Registry
	tracing *tracing.Provider
	cleanup []func()
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "keystone",
		Short: "Load, validate, and query a keyed catalog",
		Long: `keystone loads catalog definition files (YAML and HCL) into a frozen
registry of namespaced items, resolves relations between them, and lets you
check, list, and inspect the result.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default: .keystone/config.yaml, then ~/.config/keystone/config.yaml)")
	pf.StringP("catalog-dir", "d", "", "directory holding catalog files")
	pf.StringP("output", "o", "", "output format: text or json")
	pf.Bool("no-color", false, "disable colored output")
	pf.Bool("debug", false, "enable debug logging")

	_ = a.v.BindPFlag("catalog_dir", pf.Lookup("catalog-dir"))
	_ = a.v.BindPFlag("output.format", pf.Lookup("output"))
	_ = a.v.BindPFlag("output.no_color", pf.Lookup("no-color"))
	_ = a.v.BindPFlag("debug", pf.Lookup("debug"))

	root.AddCommand(
		newCheckCmd(a),
		newListCmd(a),
		newGetCmd(a),
		newLabelsCmd(a),
		newWatchCmd(a),
		newConfigCmd(a),
	)
	return root, a
}

// init loads configuration and sets up logging and tracing.
func (a *app) init(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "loading .env")
	}
	if err := a.loadConfig(); err != nil {
		return err
	}

	if a.cfg.Debug {
		if a.cfg.LogFile != "" {
			closeLog, err := log.Init(a.cfg.LogFile)
			if err != nil {
				return errors.Wrap(err, "opening log file")
			}
			a.cleanup = append(a.cleanup, closeLog)
		} else {
			log.InitWithWriter(cmd.ErrOrStderr())
		}
	}
	log.Debug(log.CatCLI, "command started", "command", cmd.CommandPath(), "config", a.v.ConfigFileUsed())

	if a.cfg.Output.NoColor || os.Getenv("NO_COLOR") != "" {
		presentation.DisableColor()
	}
	a.flags = flags.New(a.cfg.Flags)

	provider, err := tracing.NewProvider(a.cfg.Tracing)
	if err != nil {
		return errors.Wrap(err, "setting up tracing")
	}
	a.tracing = provider
	return nil
}

// loadConfig reads defaults, the config file, KEYSTONE_* env vars, and flags.
func (a *app) loadConfig() error {
	v := a.v
	defaults := config.Defaults()
	v.SetDefault("catalog_dir", defaults.CatalogDir)
	v.SetDefault("debug", defaults.Debug)
	v.SetDefault("log_file", defaults.LogFile)
	v.SetDefault("output.format", defaults.Output.Format)
	v.SetDefault("output.no_color", defaults.Output.NoColor)
	v.SetDefault("output.width", defaults.Output.Width)
	v.SetDefault("output.markdown_style", defaults.Output.MarkdownStyle)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)
	v.SetDefault("cache.ttl", defaults.Cache.TTL)
	v.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.file_path", config.DefaultTracesFilePath())
	v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	v.SetEnvPrefix("KEYSTONE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		// Config lookup order:
		// 1. .keystone/config.yaml (current directory)
		// 2. ~/.config/keystone/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			v.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			v.AddConfigPath(filepath.Join(home, ".config", "keystone"))
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "reading config")
		}
		log.Debug(log.CatConfig, "no config file, using defaults")
	}

	if err := v.Unmarshal(&a.cfg); err != nil {
		return errors.Wrap(err, "decoding config")
	}
	if err := a.cfg.Validate(); err != nil {
		return errors.WithHint(errors.Wrap(err, "invalid configuration"),
			"run 'keystone config init' to write a commented default config")
	}
	return nil
}

// close flushes traces and releases the log file.
func (a *app) close(ctx context.Context) error {
	var err error
	if a.tracing != nil {
		err = a.tracing.Shutdown(ctx)
	}
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
	return err
}

// formatter builds the output formatter for cmd from the output settings.
func (a *app) formatter(cmd *cobra.Command) (*presentation.Formatter, error) {
	f, err := presentation.NewFormatter(cmd.OutOrStdout(), a.cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	f.SetWidth(a.cfg.Output.Width)
	f.SetMarkdownStyle(a.cfg.Output.MarkdownStyle)
	return f, nil
}

// Execute runs the root command
func Execute() error {
	root, a := newRootCmd()
	err := root.Execute()
	if closeErr := a.close(context.Background()); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintln(root.ErrOrStderr(), "Hint:", hint)
		}
	}
	return err
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
}
