package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/recwire/pkg/settings"
	"github.com/openfroyo/recwire/pkg/telemetry"
)

var (
	// Global flags
	configPath string

	// Loaded before any subcommand runs.
	current *settings.Settings
	tel     *telemetry.Telemetry
	version = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, ver, commit, buildDate string) error {
	version = ver
	rootCmd := newRootCommand(ver, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "recwire",
		Short: "recwire - audio recorder wiring compiler",
		Long: `recwire compiles audio recorder declarations into wiring plans.

For every recorder in a device document it:
  - Validates the declaration and its cross-field rules
  - Resolves microphone, speaker and media player references
  - Emits a deterministic wiring plan
  - Builds the recorder actions and conditions used by automations

Documents may be written in YAML, JSON, CUE or Starlark.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if tel == nil {
				return nil
			}
			return tel.Shutdown(context.WithoutCancel(cmd.Context()))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file (default ./recwire.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console, json)")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newCompileCommand())
	rootCmd.AddCommand(newPrimitivesCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

// setup loads settings and builds telemetry for the running command.
func setup(cmd *cobra.Command) error {
	v := settings.New()
	if err := settings.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	s, err := settings.Load(v, configPath)
	if err != nil {
		return err
	}

	t, err := telemetry.NewTelemetry(s.Telemetry(version))
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}

	current = s
	tel = t
	log.Logger = tel.Logger.Zerolog()
	zerolog.SetGlobalLevel(telemetry.ParseLevel(s.Log.Level))

	log.Debug().
		Str("command", cmd.Name()).
		Str("config", v.ConfigFileUsed()).
		Msg("Settings loaded")

	return nil
}
