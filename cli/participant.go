package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/absmach/flparticipant/coordinator"
	"github.com/absmach/flparticipant/pkg/state"
	"github.com/spf13/cobra"
)

var (
	configPath = ""
	logLevel   = ""
)

var errMissingParticipantID = errors.New("participant id is required, set PARTICIPANT_ID or pass --config")

// NewStartCmd returns the command that runs the participant loop.
func NewStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start participant",
		Long:  `Start the federated learning participant loop and its status API.`,
		// Errors are returned so the binary exits non-zero.
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			cfg.setIdentity()

			if err := StartParticipant(cmd.Context(), cfg); err != nil {
				return fmt.Errorf("failed to start participant: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(
		&logLevel,
		"log-level",
		"l",
		logLevel,
		"Log level, overrides PARTICIPANT_LOG_LEVEL",
	)

	return cmd
}

// NewConfigCmd prints the resolved configuration.
func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long:  `Show the configuration resolved from the environment and the config file. Secrets are redacted.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, cfg.Redacted())
		},
	}
}

var stateCmd = []cobra.Command{
	{
		Use:   "show",
		Short: "Show saved session",
		Long:  `Show the coordinator session saved for this participant.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			withStore(cmd, func(ctx context.Context, store state.Store, key string) error {
				data, err := store.Load(ctx, key)
				if err != nil {
					return err
				}
				info, err := coordinator.Inspect(data)
				if err != nil {
					return err
				}
				logJSONCmd(*cmd, info)

				return nil
			})
		},
	},
	{
		Use:   "clear",
		Short: "Clear saved session",
		Long:  `Delete the coordinator session saved for this participant.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			withStore(cmd, func(ctx context.Context, store state.Store, key string) error {
				if err := store.Delete(ctx, key); err != nil {
					return err
				}
				logSuccessCmd(*cmd, "Session cleared for participant "+key)

				return nil
			})
		},
	},
}

// NewStateCmd returns the command group managing persisted session state.
func NewStateCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "state [show|clear]",
		Short: "Session state management",
		Long:  `Show or clear the session state persisted between runs.`,
	}

	for i := range stateCmd {
		cmd.AddCommand(&stateCmd[i])
	}

	return &cmd
}

// AddPersistentFlags registers flags shared by every participant command.
func AddPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(
		&configPath,
		"config",
		"c",
		configPath,
		"Path to a TOML config file",
	)

	cmd.PersistentFlags().BoolVarP(
		&RawOutput,
		"raw",
		"r",
		RawOutput,
		"Print raw JSON",
	)
}

func withStore(cmd *cobra.Command, fn func(ctx context.Context, store state.Store, key string) error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		logErrorCmd(*cmd, err)

		return
	}
	key := cfg.Participant.ID
	if key == "" {
		logErrorCmd(*cmd, errMissingParticipantID)

		return
	}

	store, err := state.New(cfg.State)
	if err != nil {
		logErrorCmd(*cmd, err)

		return
	}
	defer store.Close()

	if err := fn(cmd.Context(), store, key); err != nil {
		logErrorCmd(*cmd, err)
	}
}
