package flparticipant

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

const filePermission = 0o600

// Config is the optional TOML file written by `participant init`. Empty
// values leave the environment configuration untouched.
type Config struct {
	Participant ParticipantConfig `toml:"participant"`
	Coordinator CoordinatorConfig `toml:"coordinator"`
	MQTT        MQTTConfig        `toml:"mqtt"`
	Trainer     TrainerConfig     `toml:"trainer"`
}

type ParticipantConfig struct {
	ID          string `toml:"id"`
	HTTPAddress string `toml:"http_address"`
}

type CoordinatorConfig struct {
	Transport  string  `toml:"transport"`
	Address    string  `toml:"address"`
	Scalar     float64 `toml:"scalar,omitempty"`
	Standalone bool    `toml:"standalone"`
}

type MQTTConfig struct {
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	DomainID  string `toml:"domain_id"`
	ChannelID string `toml:"channel_id"`
}

type TrainerConfig struct {
	File  string `toml:"file"`
	Image string `toml:"image"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to path, replacing any existing file.
func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
