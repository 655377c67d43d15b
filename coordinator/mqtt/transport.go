// Package mqtt reaches a round coordinator over MQTT. The coordinator
// publishes round parameters and the global model as retained JSON messages;
// the transport keeps the latest of each.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/absmach/flparticipant/coordinator"
	"github.com/absmach/flparticipant/pkg/fl"
	"github.com/absmach/flparticipant/pkg/mqtt"
)

const (
	topicPrefix    = "m/%s/c/%s/fl/"
	paramsTopic    = topicPrefix + "rounds/params"
	modelTopic     = topicPrefix + "models/global"
	updatesTopic   = topicPrefix + "updates"
	statusTopic    = topicPrefix + "participants/status"
	statusOnline   = "online"
	statusStopping = "offline"
)

var errNoParams = errors.New("no round parameters received yet")

var _ coordinator.Transport = (*Transport)(nil)

type statusMessage struct {
	Status        string `json:"status"`
	ParticipantID string `json:"participant_id"`
}

type Transport struct {
	pubsub        mqtt.PubSub
	participantID string
	logger        *slog.Logger

	paramsTopic  string
	modelTopic   string
	updatesTopic string
	statusTopic  string

	mu     sync.RWMutex
	params *fl.RoundParams
	model  *fl.GlobalModel
}

func New(ctx context.Context, pubsub mqtt.PubSub, domainID, channelID, participantID string, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		pubsub:        pubsub,
		participantID: participantID,
		logger:        logger,
		paramsTopic:   fmt.Sprintf(paramsTopic, domainID, channelID),
		modelTopic:    fmt.Sprintf(modelTopic, domainID, channelID),
		updatesTopic:  fmt.Sprintf(updatesTopic, domainID, channelID),
		statusTopic:   fmt.Sprintf(statusTopic, domainID, channelID),
	}

	if err := pubsub.Subscribe(ctx, t.paramsTopic, t.handleParams); err != nil {
		return nil, fmt.Errorf("failed to subscribe to round parameters: %w", err)
	}
	if err := pubsub.Subscribe(ctx, t.modelTopic, t.handleModel); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to subscribe to global model: %w", err), pubsub.Unsubscribe(ctx, t.paramsTopic))
	}

	if err := t.publishStatus(ctx, statusOnline); err != nil {
		logger.Warn("failed to publish participant status", slog.Any("error", err))
	}

	return t, nil
}

func (t *Transport) RoundParams(_ context.Context) (fl.RoundParams, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.params == nil {
		return fl.RoundParams{}, errNoParams
	}

	return *t.params, nil
}

func (t *Transport) GlobalModel(_ context.Context) (*fl.GlobalModel, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.model == nil {
		return nil, nil
	}
	model := *t.model
	model.Values = append([]float64(nil), t.model.Values...)

	return &model, nil
}

func (t *Transport) SendUpdate(ctx context.Context, env fl.UpdateEnvelope) error {
	return t.pubsub.Publish(ctx, t.updatesTopic, env)
}

// Close unsubscribes from the coordinator topics and announces the
// participant as offline.
func (t *Transport) Close(ctx context.Context) error {
	return errors.Join(
		t.publishStatus(ctx, statusStopping),
		t.pubsub.Unsubscribe(ctx, t.paramsTopic),
		t.pubsub.Unsubscribe(ctx, t.modelTopic),
	)
}

func (t *Transport) handleParams(_ string, payload []byte) error {
	var params fl.RoundParams
	if err := json.Unmarshal(payload, &params); err != nil {
		return fmt.Errorf("failed to decode round parameters: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.params = &params

	return nil
}

func (t *Transport) handleModel(_ string, payload []byte) error {
	var model fl.GlobalModel
	if err := json.Unmarshal(payload, &model); err != nil {
		return fmt.Errorf("failed to decode global model: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.model != nil && model.Version < t.model.Version {
		t.logger.Debug("ignoring stale global model",
			slog.Uint64("version", model.Version),
			slog.Uint64("current_version", t.model.Version),
		)

		return nil
	}
	t.model = &model

	return nil
}

func (t *Transport) publishStatus(ctx context.Context, status string) error {
	return t.pubsub.Publish(ctx, t.statusTopic, statusMessage{
		Status:        status,
		ParticipantID: t.participantID,
	})
}
