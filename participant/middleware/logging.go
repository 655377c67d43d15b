package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/flparticipant/participant"
	"github.com/absmach/flparticipant/pkg/fl"
)

var _ participant.Coordinator = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    participant.Coordinator
}

func Logging(logger *slog.Logger, svc participant.Coordinator) participant.Coordinator {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Tick(ctx context.Context) {
	defer func(begin time.Time) {
		lm.logger.Debug("Coordinator tick completed",
			slog.String("duration", time.Since(begin).String()),
			slog.Group("flags",
				slog.Bool("new_global_model", lm.svc.HasNewGlobalModel()),
				slog.Bool("should_submit", lm.svc.ShouldSubmitModel()),
				slog.Bool("made_progress", lm.svc.MadeProgress()),
			),
		)
	}(time.Now())

	lm.svc.Tick(ctx)
}

func (lm *loggingMiddleware) HasNewGlobalModel() bool {
	return lm.svc.HasNewGlobalModel()
}

func (lm *loggingMiddleware) ShouldSubmitModel() bool {
	return lm.svc.ShouldSubmitModel()
}

func (lm *loggingMiddleware) MadeProgress() bool {
	return lm.svc.MadeProgress()
}

func (lm *loggingMiddleware) FetchGlobalModel(ctx context.Context) (data []byte, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("size", len(data)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Fetch global model failed", args...)

			return
		}
		lm.logger.Info("Fetch global model completed successfully", args...)
	}(time.Now())

	return lm.svc.FetchGlobalModel(ctx)
}

func (lm *loggingMiddleware) SubmitLocalModel(ctx context.Context, update fl.LocalUpdate) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("update",
				slog.Int("length", update.Len()),
				slog.String("data_type", update.DataType.String()),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit local model failed", args...)

			return
		}
		lm.logger.Info("Submit local model completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitLocalModel(ctx, update)
}
