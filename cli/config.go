package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/flparticipant"
	"github.com/absmach/flparticipant/coordinator"
	"github.com/absmach/flparticipant/coordinator/standalone"
	"github.com/absmach/flparticipant/participant"
	"github.com/absmach/flparticipant/pkg/mqtt"
	"github.com/absmach/flparticipant/pkg/registry"
	"github.com/absmach/flparticipant/pkg/state"
	"github.com/absmach/flparticipant/trainer/wasm"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	envPrefix = "PARTICIPANT_"
	pathEnv   = ".env"
	redacted  = "********"
)

var (
	errMissingTrainer = errors.New("either a trainer file or a trainer image is required")
	errMissingChannel = errors.New("mqtt transport requires domain and channel IDs")

	namegen = namegenerator.NewGenerator()
)

// Config is the resolved participant configuration. Every field is read from
// PARTICIPANT_ prefixed environment variables, for example
// PARTICIPANT_COORDINATOR_ADDRESS or PARTICIPANT_BACKOFF_MAX.
type Config struct {
	LogLevel    string  `env:"LOG_LEVEL"    envDefault:"info"  json:"log_level"`
	InstanceID  string  `env:"INSTANCE_ID"                     json:"instance_id"`
	HTTPAddress string  `env:"HTTP_ADDRESS" envDefault:":9099" json:"http_address"`
	OTELURL     url.URL `env:"OTEL_URL"                        json:"-"`
	TraceRatio  float64 `env:"TRACE_RATIO"  envDefault:"1"     json:"trace_ratio"`

	Participant participant.Config `json:"participant"`
	Coordinator coordinator.Config `envPrefix:"COORDINATOR_" json:"coordinator"`
	MQTT        mqtt.Config        `envPrefix:"MQTT_"        json:"mqtt"`
	Standalone  standalone.Config  `envPrefix:"STANDALONE_"  json:"standalone"`
	State       state.Config       `envPrefix:"STATE_"       json:"state"`
	Trainer     wasm.Config        `envPrefix:"TRAINER_"     json:"trainer"`
	Registry    registry.Config    `envPrefix:"REGISTRY_"    json:"registry"`
}

// LoadConfig reads .env when present, parses the environment and applies the
// TOML file at path on top of it. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	if path != "" {
		file, err := flparticipant.LoadConfig(path)
		if err != nil {
			return Config{}, err
		}
		cfg.apply(*file)
	}

	return cfg, nil
}

// setIdentity fills in a random instance ID and participant name when none
// were configured.
func (c *Config) setIdentity() {
	if c.InstanceID == "" {
		c.InstanceID = uuid.NewString()
	}
	if c.Participant.ID == "" {
		c.Participant.ID = namegen.Generate()
	}
}

func (c *Config) apply(file flparticipant.Config) {
	setString(&c.Participant.ID, file.Participant.ID)
	setString(&c.HTTPAddress, file.Participant.HTTPAddress)

	setString(&c.Coordinator.Transport, file.Coordinator.Transport)
	setString(&c.Coordinator.Address, file.Coordinator.Address)
	if file.Coordinator.Scalar > 0 {
		c.Coordinator.Scalar = file.Coordinator.Scalar
	}
	if file.Coordinator.Standalone {
		c.Coordinator.Standalone = true
	}

	setString(&c.MQTT.Address, file.MQTT.Address)
	setString(&c.MQTT.Username, file.MQTT.Username)
	setString(&c.MQTT.Password, file.MQTT.Password)
	setString(&c.MQTT.DomainID, file.MQTT.DomainID)
	setString(&c.MQTT.Channel, file.MQTT.ChannelID)

	setString(&c.Trainer.File, file.Trainer.File)
	setString(&c.Trainer.Image, file.Trainer.Image)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c Config) Validate() error {
	if err := c.Participant.Validate(); err != nil {
		return err
	}
	if err := c.Coordinator.Validate(); err != nil {
		return err
	}
	if c.Coordinator.Standalone {
		if err := c.Standalone.Validate(); err != nil {
			return err
		}
	} else if c.Coordinator.Transport == coordinator.TransportMQTT && (c.MQTT.DomainID == "" || c.MQTT.Channel == "") {
		return errMissingChannel
	}
	if c.Trainer.File == "" && c.Trainer.Image == "" {
		return errMissingTrainer
	}

	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.MQTT.Password != "" {
		c.MQTT.Password = redacted
	}
	if c.Registry.Password != "" {
		c.Registry.Password = redacted
	}
	if c.State.PostgresPass != "" {
		c.State.PostgresPass = redacted
	}

	return c
}
