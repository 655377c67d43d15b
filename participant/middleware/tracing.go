package middleware

import (
	"context"

	"github.com/absmach/flparticipant/participant"
	"github.com/absmach/flparticipant/pkg/fl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ participant.Coordinator = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    participant.Coordinator
}

func Tracing(tracer trace.Tracer, svc participant.Coordinator) participant.Coordinator {
	return &tracing{tracer, svc}
}

func (tm *tracing) Tick(ctx context.Context) {
	ctx, span := tm.tracer.Start(ctx, "tick")
	defer span.End()

	tm.svc.Tick(ctx)
	span.SetAttributes(
		attribute.Bool("new_global_model", tm.svc.HasNewGlobalModel()),
		attribute.Bool("should_submit", tm.svc.ShouldSubmitModel()),
		attribute.Bool("made_progress", tm.svc.MadeProgress()),
	)
}

func (tm *tracing) HasNewGlobalModel() bool {
	return tm.svc.HasNewGlobalModel()
}

func (tm *tracing) ShouldSubmitModel() bool {
	return tm.svc.ShouldSubmitModel()
}

func (tm *tracing) MadeProgress() bool {
	return tm.svc.MadeProgress()
}

func (tm *tracing) FetchGlobalModel(ctx context.Context) (data []byte, err error) {
	ctx, span := tm.tracer.Start(ctx, "fetch-global-model")
	defer func() {
		span.SetAttributes(attribute.Int("size", len(data)))
		endSpan(span, err)
	}()

	return tm.svc.FetchGlobalModel(ctx)
}

func (tm *tracing) SubmitLocalModel(ctx context.Context, update fl.LocalUpdate) (err error) {
	ctx, span := tm.tracer.Start(ctx, "submit-local-model", trace.WithAttributes(
		attribute.Int("length", update.Len()),
		attribute.String("data_type", update.DataType.String()),
	))
	defer func() { endSpan(span, err) }()

	return tm.svc.SubmitLocalModel(ctx, update)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
