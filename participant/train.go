package participant

import (
	"context"
	"fmt"
	"log/slog"
)

// trainAndSubmit reports whether the coordinator accepted the update.
func (p *Participant[M]) trainAndSubmit(ctx context.Context) (bool, error) {
	update, err := p.client.TrainSingleUpdate(ctx, p.global)
	if err != nil {
		return false, fmt.Errorf("failed to train local update: %w", err)
	}
	if update.Empty() {
		if update, err = p.client.SerializeLocalModel(); err != nil {
			return false, fmt.Errorf("failed to serialize local model: %w", err)
		}
	}

	err = p.coordinator.SubmitLocalModel(ctx, update)
	switch kind := Classify(err); kind {
	case NoFailure:
		p.logger.Info("submitted local update", slog.Int("length", update.Len()))

		return true, nil
	case LengthMismatch, DataTypeMismatch:
		p.logger.Warn("local update rejected, discarding",
			slog.String("kind", kind.String()),
			slog.Any("error", err),
		)

		return false, nil
	case Uninitialized:
		p.logger.Error("participant is not initialized, stopping", slog.Any("error", err))
		p.exit.Set()

		return false, nil
	default:
		return false, fmt.Errorf("failed to submit local update: %w", err)
	}
}
