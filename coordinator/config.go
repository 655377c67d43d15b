package coordinator

import (
	"errors"
	"fmt"
	"time"
)

const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

var (
	errMissingAddress   = errors.New("coordinator address is required")
	errInvalidScalar    = errors.New("scalar weight must be positive")
	errInvalidTransport = errors.New("unsupported coordinator transport")
)

// Config selects and parameterises the coordinator a participant talks to.
type Config struct {
	Address    string        `env:"ADDRESS"    envDefault:"http://localhost:7070" toml:"address"`
	Transport  string        `env:"TRANSPORT"  envDefault:"http"                  toml:"transport"`
	Timeout    time.Duration `env:"TIMEOUT"    envDefault:"10s"                   toml:"timeout"`
	Scalar     float64       `env:"SCALAR"     envDefault:"1"                     toml:"scalar"`
	Standalone bool          `env:"STANDALONE" envDefault:"false"                 toml:"standalone"`
}

func (c Config) Validate() error {
	if c.Scalar <= 0 {
		return fmt.Errorf("%w: %v", errInvalidScalar, c.Scalar)
	}
	if c.Standalone {
		return nil
	}

	switch c.Transport {
	case TransportHTTP:
		if c.Address == "" {
			return errMissingAddress
		}
	case TransportMQTT:
	default:
		return fmt.Errorf("%w: %q", errInvalidTransport, c.Transport)
	}

	return nil
}
