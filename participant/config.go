package participant

import (
	"errors"
	"fmt"

	"github.com/absmach/flparticipant/pkg/backoff"
)

var errMissingID = errors.New("participant id is required")

type Config struct {
	ID      string         `env:"ID"             json:"id"      toml:"id"`
	Backoff backoff.Config `envPrefix:"BACKOFF_" json:"backoff" toml:"backoff"`
}

func (c Config) Validate() error {
	if c.ID == "" {
		return errMissingID
	}
	if err := c.Backoff.Validate(); err != nil {
		return fmt.Errorf("invalid backoff configuration: %w", err)
	}

	return nil
}
