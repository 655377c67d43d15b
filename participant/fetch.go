package participant

import (
	"context"
	"fmt"
	"log/slog"
)

func (p *Participant[M]) fetchGlobalModel(ctx context.Context) error {
	data, err := p.coordinator.FetchGlobalModel(ctx)
	switch kind := Classify(err); kind {
	case NoFailure:
	case Unavailable, DataTypeMismatch:
		p.fetchErr = true
		p.logger.Warn("failed to fetch global model, retrying on next step",
			slog.String("kind", kind.String()),
			slog.Any("error", err),
		)

		return nil
	default:
		return fmt.Errorf("failed to fetch global model: %w", err)
	}

	if len(data) == 0 {
		p.global = nil
		p.fetchErr = false
		p.logger.Debug("coordinator has no global model yet")

		return nil
	}

	model, err := p.client.DeserializeTrainingInput(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize global model: %w", err)
	}
	p.global = &model
	p.fetchErr = false
	p.logger.Info("received new global model", slog.Int("size", len(data)))

	if err := p.client.OnNewGlobalModel(ctx, model); err != nil {
		return fmt.Errorf("failed to handle new global model: %w", err)
	}

	return nil
}
