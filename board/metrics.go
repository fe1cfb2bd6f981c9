package board

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	mutationSpanName  = "board.mutation"
	mutationEventName = "board.mutation.metrics"

	stageValidate = "validate"
	stageConflict = "conflict"
	stageLoad     = "load"
	stageBalance  = "balance"
	stagePersist  = "persist"
)

var tracer = otel.Tracer("taskboard-api/board")

// mutationMetrics captures one mutation's outcome as an otel span plus a
// structured log entry, following the observability shape of the rest of
// the service.
type mutationMetrics struct {
	logger     *log.Logger
	span       trace.Span
	op         string
	start      time.Time
	taskID     string
	errorStage string
}

func newMutationMetrics(ctx context.Context, logger *log.Logger, op string) (*mutationMetrics, context.Context) {
	m := &mutationMetrics{
		logger: logger,
		op:     op,
		start:  time.Now(),
	}
	spanCtx, span := tracer.Start(ctx, mutationSpanName,
		trace.WithAttributes(attribute.String("board.mutation.op", op)))
	m.span = span
	return m, spanCtx
}

func (m *mutationMetrics) SetTaskID(id string) {
	if id == "" {
		return
	}
	m.taskID = id
}

func (m *mutationMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Done finishes the span and writes the metrics log entry. Safe on a nil
// receiver so callers can skip instrumentation in tests.
func (m *mutationMetrics) Done(err error) {
	if m == nil {
		return
	}
	elapsed := time.Since(m.start)

	if m.span != nil {
		m.span.SetAttributes(
			attribute.Float64("board.mutation.total_ms", durationToMillis(elapsed)),
		)
		if m.taskID != "" {
			m.span.SetAttributes(attribute.String("board.mutation.task_id", m.taskID))
		}
		if m.errorStage != "" {
			m.span.SetAttributes(attribute.String("board.mutation.error_stage", m.errorStage))
		}
		if err != nil {
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"op":       m.op,
		"total_ms": durationToMillis(elapsed),
	}
	if m.taskID != "" {
		fields["task_id"] = m.taskID
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}
	m.logger.WithFields(fields).Info(mutationEventName)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
