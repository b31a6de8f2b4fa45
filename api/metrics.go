package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "prism-board/api"
	requestEventName   = "http.request"
	requestEventDomain = "prism.api"
	observabilityEvent = "observability.event"
)

type requestMetrics struct {
	logger     *log.Logger
	span       trace.Span
	route      string
	method     string
	start      time.Time
	scope      string
	errorStage string
}

// RequestMetrics wraps every request in a span and logs one observability
// event when it completes.
func RequestMetrics(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx, span := otel.Tracer(tracerName).Start(req.Context(), req.Method+" "+c.Path(),
				trace.WithSpanKind(trace.SpanKindServer))
			c.SetRequest(req.WithContext(ctx))
			m := &requestMetrics{
				logger: logger,
				span:   span,
				route:  c.Path(),
				method: req.Method,
				start:  time.Now(),
			}
			c.Set(metricsKey, m)

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			m.Log(c.Response().Status, err)
			return nil
		}
	}
}

const metricsKey = "prism.request.metrics"

func metricsFrom(c echo.Context) *requestMetrics {
	m, _ := c.Get(metricsKey).(*requestMetrics)
	return m
}

func (m *requestMetrics) SetScope(scope string) {
	if m == nil {
		return
	}
	m.scope = scope
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if m == nil || stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	defer m.span.End()

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.String("http.method", m.method),
		attribute.Int("http.status_code", status),
		attribute.Float64("prism.api.total_ms", durationToMillis(time.Since(m.start))),
	}
	if m.scope != "" {
		attrs = append(attrs, attribute.String("prism.api.scope", m.scope))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("prism.api.error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
		m.span.RecordError(err)
	}
	m.span.SetAttributes(attrs...)
	if status >= http.StatusInternalServerError {
		m.span.SetStatus(codes.Error, http.StatusText(status))
	} else {
		m.span.SetStatus(codes.Ok, "")
	}

	if m.logger == nil {
		return
	}
	attributes := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		attributes[string(kv.Key)] = kv.Value.AsInterface()
	}
	level, severity, number := log.InfoLevel, "INFO", 9
	switch {
	case status >= http.StatusInternalServerError:
		level, severity, number = log.ErrorLevel, "ERROR", 17
	case status >= http.StatusBadRequest:
		level, severity, number = log.WarnLevel, "WARN", 13
	}
	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"severity_text":   severity,
		"severity_number": number,
		"attributes":      attributes,
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}
	m.logger.WithFields(fields).Log(level, observabilityEvent)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
