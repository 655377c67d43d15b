package middleware

import (
	"context"
	"time"

	"github.com/absmach/flparticipant/participant"
	"github.com/absmach/flparticipant/pkg/fl"
	"github.com/go-kit/kit/metrics"
)

var _ participant.Coordinator = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     participant.Coordinator
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc participant.Coordinator) participant.Coordinator {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Tick(ctx context.Context) {
	defer func(begin time.Time) {
		mm.counter.With("method", "tick").Add(1)
		mm.latency.With("method", "tick").Observe(time.Since(begin).Seconds())
	}(time.Now())

	mm.svc.Tick(ctx)
}

func (mm *metricsMiddleware) HasNewGlobalModel() bool {
	return mm.svc.HasNewGlobalModel()
}

func (mm *metricsMiddleware) ShouldSubmitModel() bool {
	return mm.svc.ShouldSubmitModel()
}

func (mm *metricsMiddleware) MadeProgress() bool {
	return mm.svc.MadeProgress()
}

func (mm *metricsMiddleware) FetchGlobalModel(ctx context.Context) ([]byte, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "fetch-global-model").Add(1)
		mm.latency.With("method", "fetch-global-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.FetchGlobalModel(ctx)
}

func (mm *metricsMiddleware) SubmitLocalModel(ctx context.Context, update fl.LocalUpdate) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit-local-model").Add(1)
		mm.latency.With("method", "submit-local-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SubmitLocalModel(ctx, update)
}
