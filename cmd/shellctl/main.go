package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/shellstore/config"
	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cfg is loaded once flags are parsed, before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "shellctl",
	Short: "Browse, watch and change files through the native shell bridge",
	Long: `shellctl drives the shell storage bridge from the command line.

Configuration precedence (highest to lowest):
  1. Flags
  2. Environment variables (SHELLSTORE_*)
  3. Configuration file (--config, YAML, JSON or TOML)
  4. Default values

Examples:
  # List a folder with content types
  shellctl ls ~/Downloads --mime

  # Watch a folder and expose metrics
  shellctl watch ~/src --metrics-addr localhost:9090

  # Copy two files, renaming on collision
  shellctl cp a.txt b.txt ~/backup --rename-on-collision
`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// v binds environment variables and changed flags to override keys.
var v = viper.New()

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to a YAML, JSON or TOML config file")
	flags.IntP("verbose", "v", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace)")
	flags.String("log-file", "", "Also write JSON logs to this file, rotated by size")
	flags.Int("debounce-ms", int(config.DefaultDebounceInterval.Milliseconds()), "Watcher quiet window in milliseconds")
	flags.Bool("allow-undo", config.DefaultAllowUndo, "Recycle deletions when a recycle directory is set")
	flags.Bool("no-confirmation", config.DefaultNoConfirmation, "Overwrite colliding items")
	flags.Bool("rename-on-collision", config.DefaultRenameOnCollision, "Give colliding items a \"name (n)\" suffix")
	flags.String("recycle-dir", "", "Directory that receives recycled items")

	v.SetEnvPrefix("SHELLSTORE")
	v.AutomaticEnv()
	for key, flag := range map[string]string{
		"verbose":             "verbose",
		"log_file":            "log-file",
		"debounce_ms":         "debounce-ms",
		"allow_undo":          "allow-undo",
		"no_confirmation":     "no-confirmation",
		"rename_on_collision": "rename-on-collision",
		"recycle_dir":         "recycle-dir",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	// env only
	if err := v.BindEnv("notify_queue_size"); err != nil {
		panic(err)
	}
}

// setup loads the configuration and initializes logging.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	path, _ := cmd.Flags().GetString("config")
	cfg, err = loadConfig(path)
	if err != nil {
		return err
	}
	util.InitializeLogger(cfg.LogLvl, cfg.LogFile)
	logger := util.GetLogger("main")
	logger.Debug().Str("config", path).Interface("settings", cfg).Msg("configuration loaded")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	override := &config.ConfigOverride{}
	if path != "" {
		var err error
		if override, err = config.LoadConfigOverrideFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	c := config.NewConfig(override)
	c.Merge(viperOverride())
	if err := config.Validate(c); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return c, nil
}

// viperOverride collects the keys set through the environment or changed
// flags.
func viperOverride() *config.ConfigOverride {
	o := &config.ConfigOverride{}
	if v.IsSet("verbose") {
		o.LogLvl = util.Pointer(v.GetInt("verbose"))
	}
	if v.IsSet("log_file") {
		o.LogFile = util.Pointer(v.GetString("log_file"))
	}
	if v.IsSet("debounce_ms") {
		o.DebounceMs = util.Pointer(v.GetInt("debounce_ms"))
	}
	if v.IsSet("notify_queue_size") {
		o.NotifyQueueSize = util.Pointer(v.GetInt("notify_queue_size"))
	}
	if v.IsSet("allow_undo") {
		o.AllowUndo = util.Pointer(v.GetBool("allow_undo"))
	}
	if v.IsSet("no_confirmation") {
		o.NoConfirmation = util.Pointer(v.GetBool("no_confirmation"))
	}
	if v.IsSet("rename_on_collision") {
		o.RenameOnCollision = util.Pointer(v.GetBool("rename_on_collision"))
	}
	if v.IsSet("recycle_dir") {
		o.RecycleDir = util.Pointer(v.GetString("recycle_dir"))
	}
	if v.IsSet("metrics_addr") {
		o.MetricsAddr = util.Pointer(v.GetString("metrics_addr"))
	}
	return o
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
