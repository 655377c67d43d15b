package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/absmach/flparticipant"
	"github.com/absmach/flparticipant/coordinator"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

const (
	defConfigPath  = "config.toml"
	modeStandalone = "standalone"
)

var (
	errEmptyValue    = errors.New("value must not be empty")
	errInvalidScalar = errors.New("scalar must be a positive number")
)

// NewInitCmd returns the command that interactively writes a config file.
func NewInitCmd() *cobra.Command {
	output := defConfigPath

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file",
		Long:  `Interactively create a TOML config file for the participant.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, err := runInitForm()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if err := cfg.Save(output); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, fmt.Sprintf("Config written to %s", output))
		},
	}

	cmd.Flags().StringVarP(
		&output,
		"output",
		"o",
		output,
		"Path of the config file to write",
	)

	return cmd
}

func runInitForm() (flparticipant.Config, error) {
	var (
		cfg    flparticipant.Config
		mode   = coordinator.TransportHTTP
		scalar = "1"
	)
	cfg.Participant.ID = namegen.Generate()
	cfg.Participant.HTTPAddress = ":9099"
	cfg.Coordinator.Address = "http://localhost:7070"
	cfg.MQTT.Address = "tcp://localhost:1883"

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Participant ID").
				Value(&cfg.Participant.ID).
				Validate(notEmpty),
			huh.NewSelect[string]().
				Title("Coordinator").
				Options(
					huh.NewOption("HTTP coordinator", coordinator.TransportHTTP),
					huh.NewOption("MQTT coordinator", coordinator.TransportMQTT),
					huh.NewOption("Standalone (in-process)", modeStandalone),
				).
				Value(&mode),
			huh.NewInput().
				Title("Scalar weight").
				Value(&scalar).
				Validate(validScalar),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Coordinator address").
				Value(&cfg.Coordinator.Address).
				Validate(validURL),
		).WithHideFunc(func() bool { return mode != coordinator.TransportHTTP }),
		huh.NewGroup(
			huh.NewInput().
				Title("MQTT broker address").
				Value(&cfg.MQTT.Address).
				Validate(validURL),
			huh.NewInput().
				Title("MQTT username").
				Value(&cfg.MQTT.Username),
			huh.NewInput().
				Title("MQTT password").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.MQTT.Password),
			huh.NewInput().
				Title("Domain ID").
				Value(&cfg.MQTT.DomainID).
				Validate(notEmpty),
			huh.NewInput().
				Title("Channel ID").
				Value(&cfg.MQTT.ChannelID).
				Validate(notEmpty),
		).WithHideFunc(func() bool { return mode != coordinator.TransportMQTT }),
		huh.NewGroup(
			huh.NewInput().
				Title("Trainer WASM file").
				Description("Leave empty to pull the trainer from an OCI registry.").
				Value(&cfg.Trainer.File),
			huh.NewInput().
				Title("Trainer image").
				Value(&cfg.Trainer.Image),
		),
	)
	if err := form.Run(); err != nil {
		return flparticipant.Config{}, err
	}

	return buildFileConfig(cfg, mode, scalar)
}

func buildFileConfig(cfg flparticipant.Config, mode, scalar string) (flparticipant.Config, error) {
	s, err := strconv.ParseFloat(scalar, 64)
	if err != nil || s <= 0 {
		return flparticipant.Config{}, errInvalidScalar
	}
	cfg.Coordinator.Scalar = s

	switch mode {
	case modeStandalone:
		cfg.Coordinator.Standalone = true
		cfg.Coordinator.Transport = ""
		cfg.Coordinator.Address = ""
		cfg.MQTT = flparticipant.MQTTConfig{}
	case coordinator.TransportMQTT:
		cfg.Coordinator.Transport = coordinator.TransportMQTT
		cfg.Coordinator.Address = ""
	default:
		cfg.Coordinator.Transport = coordinator.TransportHTTP
		cfg.MQTT = flparticipant.MQTTConfig{}
	}
	if cfg.Trainer.File == "" && cfg.Trainer.Image == "" {
		return flparticipant.Config{}, errMissingTrainer
	}

	return cfg, nil
}

func notEmpty(s string) error {
	if s == "" {
		return errEmptyValue
	}

	return nil
}

func validScalar(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return errInvalidScalar
	}

	return nil
}

func validURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", s)
	}

	return nil
}
