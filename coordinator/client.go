// Package coordinator tracks a participant's session with a round
// coordinator and turns the round parameters it observes into the flags the
// participant loop acts on.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/flparticipant/participant"
	"github.com/absmach/flparticipant/pkg/fl"
)

var (
	ErrInvalidState = errors.New("invalid session state")
	errNoRound      = errors.New("no round parameters observed yet")
	errRejected     = errors.New("participant rejected by coordinator")
)

// Transport is how a session reaches the coordinator.
type Transport interface {
	RoundParams(ctx context.Context) (fl.RoundParams, error)
	// GlobalModel returns nil and no error when no model exists yet.
	GlobalModel(ctx context.Context) (*fl.GlobalModel, error)
	SendUpdate(ctx context.Context, env fl.UpdateEnvelope) error
}

var _ participant.Coordinator = (*Client)(nil)

type Client struct {
	transport Transport
	id        string
	scalar    float64
	logger    *slog.Logger
	now       func() time.Time

	mu             sync.Mutex
	params         *fl.RoundParams
	newGlobalModel bool
	madeProgress   bool
	submitted      bool
	rejected       bool
	pending        *fl.LocalUpdate
	pendingRound   uint64
}

// New starts a session. A non-empty state restores a session saved by Save;
// the first tick after a restore always announces the global model since the
// participant keeps none across restarts.
func New(transport Transport, participantID string, scalar float64, state []byte, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		transport:    transport,
		id:           participantID,
		scalar:       scalar,
		logger:       logger,
		now:          time.Now,
		madeProgress: true,
	}
	if len(state) == 0 {
		return c, nil
	}

	if err := c.restore(state); err != nil {
		return nil, err
	}
	c.newGlobalModel = c.params != nil && !c.rejected

	return c, nil
}

func (c *Client) Tick(ctx context.Context) {
	params, err := c.transport.RoundParams(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.madeProgress = false
		c.logger.Warn("failed to get round parameters", slog.Any("error", err))

		return
	}

	progress := c.observe(params)
	if c.pending != nil && params.Phase == fl.PhaseUpdate {
		if c.upload(ctx) {
			progress = true
		}
	}
	c.madeProgress = progress
}

// observe must be called with mu held.
func (c *Client) observe(params fl.RoundParams) bool {
	prev := c.params
	c.params = &params

	switch {
	case prev == nil || prev.RoundID != params.RoundID:
		c.newGlobalModel = true
		c.submitted = false
		if c.pending != nil && c.pendingRound != params.RoundID {
			c.logger.Warn("dropping local update from previous round",
				slog.Uint64("round_id", c.pendingRound),
			)
			c.pending = nil
		}
		c.logger.Info("new round started",
			slog.Uint64("round_id", params.RoundID),
			slog.String("phase", string(params.Phase)),
		)

		return true
	case prev.ModelVersion != params.ModelVersion:
		c.newGlobalModel = true

		return true
	case prev.Phase != params.Phase:
		return true
	default:
		return false
	}
}

// upload must be called with mu held. It reports whether the session changed:
// the update was accepted or the participant was rejected.
func (c *Client) upload(ctx context.Context) bool {
	env := fl.UpdateEnvelope{
		ParticipantID: c.id,
		RoundID:       c.pendingRound,
		ModelVersion:  c.params.ModelVersion,
		Scalar:        c.scalar,
		Update:        *c.pending,
		SentAt:        c.now().UTC(),
	}

	err := c.transport.SendUpdate(ctx, env)
	switch {
	case err == nil:
		c.pending = nil
		c.submitted = true
		c.logger.Info("local update uploaded", slog.Uint64("round_id", env.RoundID))

		return true
	case errors.Is(err, fl.ErrUninitializedParticipant):
		c.pending = nil
		c.rejected = true
		c.newGlobalModel = false
		c.logger.Error("coordinator rejected participant", slog.Any("error", err))

		return true
	default:
		c.logger.Warn("failed to upload local update, retrying on next tick", slog.Any("error", err))

		return false
	}
}

func (c *Client) HasNewGlobalModel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.newGlobalModel && !c.rejected
}

// ShouldSubmitModel stays true once the coordinator rejected the participant
// so the loop's next submission observes the rejection and stops.
func (c *Client) ShouldSubmitModel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rejected {
		return true
	}

	return c.params != nil &&
		c.params.Phase == fl.PhaseUpdate &&
		!c.submitted &&
		c.pending == nil
}

func (c *Client) MadeProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.madeProgress
}

func (c *Client) FetchGlobalModel(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	rejected := c.rejected
	c.mu.Unlock()
	if rejected {
		return nil, nil
	}

	model, err := c.transport.GlobalModel(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if model == nil {
		c.newGlobalModel = false

		return nil, nil
	}
	if c.params != nil && model.DataType != c.params.Model.DataType {
		return nil, fmt.Errorf("%w: expected %s, got %s", fl.ErrGlobalModelDataTypeMismatch, c.params.Model.DataType, model.DataType)
	}
	// Params and model may arrive separately; wait for the announced version.
	if c.params != nil && model.Version < c.params.ModelVersion {
		return nil, fmt.Errorf("%w: have version %d, round announced %d", fl.ErrGlobalModelUnavailable, model.Version, c.params.ModelVersion)
	}

	data, err := fl.EncodeGlobalModel(*model)
	if err != nil {
		return nil, err
	}
	c.newGlobalModel = false

	return data, nil
}

func (c *Client) SubmitLocalModel(_ context.Context, update fl.LocalUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.rejected:
		return fmt.Errorf("%w: %w", fl.ErrUninitializedParticipant, errRejected)
	case c.params == nil:
		return fmt.Errorf("%w: %w", fl.ErrUninitializedParticipant, errNoRound)
	}
	if err := update.Validate(c.params.Model); err != nil {
		return err
	}

	if c.pending != nil {
		c.logger.Debug("replacing pending local update", slog.Uint64("round_id", c.pendingRound))
	}
	c.pending = &update
	c.pendingRound = c.params.RoundID

	return nil
}
