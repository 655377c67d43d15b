// Package backoff computes the idle interval between participant steps.
//
// The interval starts at Min, grows by Factor on every call to Next and is
// clamped to Max. Reset brings it back to Min.
package backoff

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefMin          = 100 * time.Millisecond
	DefMax          = 10 * time.Second
	DefFactor       = 1.2
	DefJitterFactor = 0.2
)

var (
	errInvalidMin    = errors.New("backoff min must be positive")
	errInvalidMax    = errors.New("backoff max must not be lower than min")
	errInvalidFactor = errors.New("backoff factor must be at least 1")
	errInvalidJitter = errors.New("backoff jitter factor must be in [0, 1)")
)

type Config struct {
	Min          time.Duration `env:"MIN"           envDefault:"100ms" toml:"min"`
	Max          time.Duration `env:"MAX"           envDefault:"10s"   toml:"max"`
	Factor       float64       `env:"FACTOR"        envDefault:"1.2"   toml:"factor"`
	Jitter       bool          `env:"JITTER"        envDefault:"false" toml:"jitter"`
	JitterFactor float64       `env:"JITTER_FACTOR" envDefault:"0.2"   toml:"jitter_factor"`
}

func DefaultConfig() Config {
	return Config{
		Min:          DefMin,
		Max:          DefMax,
		Factor:       DefFactor,
		JitterFactor: DefJitterFactor,
	}
}

func (c Config) Validate() error {
	if c.Min <= 0 {
		return errInvalidMin
	}
	if c.Max < c.Min {
		return fmt.Errorf("%w: min=%s max=%s", errInvalidMax, c.Min, c.Max)
	}
	if c.Factor < 1 {
		return fmt.Errorf("%w: %v", errInvalidFactor, c.Factor)
	}
	if c.Jitter && (c.JitterFactor < 0 || c.JitterFactor >= 1) {
		return fmt.Errorf("%w: %v", errInvalidJitter, c.JitterFactor)
	}

	return nil
}

// Backoff is not safe for concurrent use; the participant only touches it
// while holding its step mutex.
type Backoff struct {
	max time.Duration
	exp *backoff.ExponentialBackOff
}

func New(cfg Config) (*Backoff, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var randomization float64
	if cfg.Jitter {
		randomization = cfg.JitterFactor
	}

	exp := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.Min,
		RandomizationFactor: randomization,
		Multiplier:          cfg.Factor,
		MaxInterval:         cfg.Max,
	}
	exp.Reset()

	return &Backoff{
		max: cfg.Max,
		exp: exp,
	}, nil
}

// Next returns the interval to wait now and advances the schedule.
func (b *Backoff) Next() time.Duration {
	d := b.exp.NextBackOff()
	if d > b.max {
		d = b.max
	}
	if d < 0 {
		d = 0
	}

	return d
}

func (b *Backoff) Reset() {
	b.exp.Reset()
}
