// Package standalone runs federated rounds in process, so a participant can
// train without a remote coordinator.
package standalone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/absmach/flparticipant/coordinator"
	"github.com/absmach/flparticipant/pkg/fl"
)

var (
	ErrStaleRound     = errors.New("update targets a finished round")
	errInvalidLength  = errors.New("model length must be positive")
	errInvalidMinimum = errors.New("minimum updates per round must be positive")
)

type Config struct {
	ModelLength int         `env:"MODEL_LENGTH" envDefault:"4"   toml:"model_length"`
	DataType    fl.DataType `env:"DATA_TYPE"    envDefault:"f32" toml:"data_type"`
	MinUpdates  int         `env:"MIN_UPDATES"  envDefault:"1"   toml:"min_updates"`
	MaxRounds   uint64      `env:"MAX_ROUNDS"   envDefault:"0"   toml:"max_rounds"`
	Initial     []float64   `toml:"initial,omitempty"`
}

// Validate checks the simulated rounds. MaxRounds of zero runs forever.
func (c Config) Validate() error {
	if c.ModelLength <= 0 {
		return errInvalidLength
	}
	if c.MinUpdates <= 0 {
		return errInvalidMinimum
	}
	if c.Initial != nil && len(c.Initial) != c.ModelLength {
		return fmt.Errorf("%w: initial model has %d values, expected %d", fl.ErrLocalModelLengthMismatch, len(c.Initial), c.ModelLength)
	}

	return nil
}

var _ coordinator.Transport = (*Coordinator)(nil)

type Coordinator struct {
	cfg        Config
	aggregator fl.Aggregator
	logger     *slog.Logger

	mu      sync.Mutex
	params  fl.RoundParams
	model   fl.GlobalModel
	updates map[string]fl.UpdateEnvelope
}

func New(cfg Config, aggregator fl.Aggregator, logger *slog.Logger) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if aggregator == nil {
		aggregator = fl.NewFedAvgAggregator()
	}
	if logger == nil {
		logger = slog.Default()
	}

	values := make([]float64, cfg.ModelLength)
	copy(values, cfg.Initial)

	return &Coordinator{
		cfg:        cfg,
		aggregator: aggregator,
		logger:     logger,
		params: fl.RoundParams{
			RoundID:      1,
			Phase:        fl.PhaseUpdate,
			ModelVersion: 1,
			Model:        fl.ModelConfig{Length: cfg.ModelLength, DataType: cfg.DataType},
		},
		model: fl.GlobalModel{
			Version:  1,
			DataType: cfg.DataType,
			Values:   values,
		},
		updates: make(map[string]fl.UpdateEnvelope),
	}, nil
}

func (c *Coordinator) RoundParams(_ context.Context) (fl.RoundParams, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.params, nil
}

func (c *Coordinator) GlobalModel(_ context.Context) (*fl.GlobalModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	model := c.model
	model.Values = append([]float64(nil), c.model.Values...)

	return &model, nil
}

func (c *Coordinator) SendUpdate(_ context.Context, env fl.UpdateEnvelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.params.Phase != fl.PhaseUpdate || env.RoundID != c.params.RoundID {
		return fmt.Errorf("%w: round %d, current round %d", ErrStaleRound, env.RoundID, c.params.RoundID)
	}
	if err := env.Update.Validate(c.params.Model); err != nil {
		return err
	}

	c.updates[env.ParticipantID] = env
	if len(c.updates) < c.cfg.MinUpdates {
		return nil
	}

	return c.completeRound()
}

// completeRound must be called with mu held.
func (c *Coordinator) completeRound() error {
	updates := make([]fl.UpdateEnvelope, 0, len(c.updates))
	for _, u := range c.updates {
		updates = append(updates, u)
	}

	values, err := c.aggregator.Aggregate(updates)
	if err != nil {
		return fmt.Errorf("failed to aggregate round %d: %w", c.params.RoundID, err)
	}

	c.model = fl.GlobalModel{
		Version:  c.model.Version + 1,
		DataType: c.params.Model.DataType,
		Values:   values,
	}
	c.updates = make(map[string]fl.UpdateEnvelope)
	c.logger.Info("standalone round completed",
		slog.Uint64("round_id", c.params.RoundID),
		slog.Int("updates", len(updates)),
		slog.Uint64("model_version", c.model.Version),
	)

	if c.cfg.MaxRounds > 0 && c.params.RoundID >= c.cfg.MaxRounds {
		c.params.Phase = fl.PhaseIdle
		c.params.ModelVersion = c.model.Version

		return nil
	}

	c.params.RoundID++
	c.params.ModelVersion = c.model.Version

	return nil
}
