package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/voicebio/internal/config"
)

var (
	cfgFile   string
	activeCfg config.Config
)

// NewRootCmd builds the voicebiod command tree: a PersistentPreRunE
// layers flags/env/file into one Config and configures the
// process-wide logger before any subcommand runs.
func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "voicebiod",
		Short: "Voice biometric authentication engine",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newEnrollCmd())
	cmd.AddCommand(newAuthenticateCmd())
	cmd.AddCommand(newTrainCmd())
	cmd.AddCommand(newModelCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func setupLogger(levelStr string) {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(levelStr)})
	slog.SetDefault(slog.New(h))
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func requireConfig() (config.Config, error) {
	if activeCfg.Runtime.ModelDir == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}
