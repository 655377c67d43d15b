package participant

import (
	"context"
	"log/slog"
	"time"
)

// step runs one pass of the state machine and returns how long the loop
// should wait before the next one.
func (p *Participant[M]) step(ctx context.Context) (wait time.Duration, err error) {
	p.stepMu.Lock()
	defer p.stepMu.Unlock()

	// Stop may have won the race for stepMu after the loop checked the signal.
	if p.exit.IsSet() {
		return 0, nil
	}
	defer recoverStep(&err)

	ctx = context.WithoutCancel(ctx)
	var report stepReport

	p.coordinator.Tick(ctx)
	hasNewModel := p.coordinator.HasNewGlobalModel()
	shouldSubmit := p.coordinator.ShouldSubmitModel()

	if hasNewModel || p.fetchErr {
		report.fetched = true
		if err := p.fetchGlobalModel(ctx); err != nil {
			return 0, err
		}
	}

	if shouldSubmit && p.client.ParticipateInUpdateTask() && !p.fetchErr {
		report.trained = true
		submitted, err := p.trainAndSubmit(ctx)
		if err != nil {
			return 0, err
		}
		report.submitted = submitted
	}

	if p.coordinator.MadeProgress() {
		p.backoff.Reset()
	}
	report.interval = p.backoff.Next()

	p.publish(report)
	p.logger.Debug("participant step completed",
		slog.Bool("new_global_model", hasNewModel),
		slog.Bool("should_submit", shouldSubmit),
		slog.Bool("fetch_error", p.fetchErr),
		slog.Duration("wait", report.interval),
	)

	return report.interval, nil
}
