package board

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"prism-board/domain"
)

const (
	tracerName          = "prism-board/board"
	opEventDomain       = "prism.board"
	observabilityEvent  = "observability.event"
	attrPrefix          = "prism.board."
	severityInfoNumber  = 9
	severityWarnNumber  = 13
	severityErrorNumber = 17
)

type opMetrics struct {
	logger          *log.Logger
	span            trace.Span
	op              string
	scope           string
	taskID          string
	start           time.Time
	gatewayDuration time.Duration
	gatewayCalls    int
	tasks           int
	reloaded        bool
	errorStage      string
}

func startOp(ctx context.Context, logger *log.Logger, op, scope, taskID string) (*opMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "board."+op, trace.WithAttributes(
		attribute.String(attrPrefix+"scope", scope),
		attribute.String(attrPrefix+"task_id", taskID),
	))
	return &opMetrics{
		logger: logger,
		span:   span,
		op:     op,
		scope:  scope,
		taskID: taskID,
		start:  time.Now(),
	}, ctx
}

func (m *opMetrics) ObserveGateway(d time.Duration) {
	m.gatewayCalls++
	if d > 0 {
		m.gatewayDuration += d
	}
}

func (m *opMetrics) SetTasks(n int) {
	if n < 0 {
		n = 0
	}
	m.tasks = n
}

func (m *opMetrics) SetReloaded(reloaded bool) {
	m.reloaded = reloaded
}

func (m *opMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// End closes the span and writes one observability event for the operation.
func (m *opMetrics) End(err error) {
	if m == nil {
		return
	}
	severityText, severityNumber := severityForError(err)

	attrs := map[string]any{
		attrPrefix + "op":            m.op,
		attrPrefix + "scope":         m.scope,
		attrPrefix + "total_ms":      durationToMillis(time.Since(m.start)),
		attrPrefix + "gateway_calls": m.gatewayCalls,
		attrPrefix + "reloaded":      m.reloaded,
	}
	if m.taskID != "" {
		attrs[attrPrefix+"task_id"] = m.taskID
	}
	if m.gatewayDuration > 0 {
		attrs[attrPrefix+"gateway_ms"] = durationToMillis(m.gatewayDuration)
	}
	if m.tasks > 0 {
		attrs[attrPrefix+"tasks"] = m.tasks
	}
	if m.errorStage != "" {
		attrs[attrPrefix+"error_stage"] = m.errorStage
	}
	if err != nil {
		attrs["error.message"] = err.Error()
	}

	eventAttrs := []attribute.KeyValue{
		attribute.String("event.name", "board."+m.op),
		attribute.String("event.domain", opEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			eventAttrs = append(eventAttrs, attribute.String(k, val))
		case int:
			eventAttrs = append(eventAttrs, attribute.Int(k, val))
		case float64:
			eventAttrs = append(eventAttrs, attribute.Float64(k, val))
		case bool:
			eventAttrs = append(eventAttrs, attribute.Bool(k, val))
		}
	}
	m.span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))
	if err != nil {
		m.span.RecordError(err)
		m.span.SetStatus(codes.Error, err.Error())
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	traceID := ""
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	m.span.End()

	if m.logger == nil {
		return
	}
	entry := m.logger.WithFields(log.Fields{
		"event.name":      "board." + m.op,
		"event.domain":    opEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"trace_id":        traceID,
		"attributes":      attrs,
	})
	switch severityNumber {
	case severityErrorNumber:
		entry.Error(observabilityEvent)
	case severityWarnNumber:
		entry.Warn(observabilityEvent)
	default:
		entry.Info(observabilityEvent)
	}
}

func severityForError(err error) (string, int) {
	if err == nil {
		return "INFO", severityInfoNumber
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) || errors.Is(err, domain.ErrTaskNotFound) ||
		errors.Is(err, domain.ErrNoScope) || errors.Is(err, domain.ErrInvalidTarget) {
		return "WARN", severityWarnNumber
	}
	return "ERROR", severityErrorNumber
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
