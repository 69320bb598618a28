// Package tracing turns agent-loop spans (agent run, LLM call, tool call)
// into OpenTelemetry spans, with an optional durable sink for later
// inspection. It is always safe to pass a nil *Collector: every method is a
// no-op in that case, so tracing is opt-in ambient infrastructure rather
// than a hard dependency of the agent loop.
package tracing

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

const tracerName = "github.com/nextlevelbuilder/goclaw/internal/agent"

// Collector receives finished spans from the agent loop, forwards them to
// the configured OpenTelemetry tracer provider, and optionally persists them
// to a TracingStore for later querying.
type Collector struct {
	tracer  oteltrace.Tracer
	sink    store.TracingStore
	verbose bool
	log     *slog.Logger
}

// NewCollector builds a Collector. sink may be nil, in which case spans are
// still exported via OpenTelemetry (and logged) but not persisted.
func NewCollector(sink store.TracingStore) *Collector {
	return &Collector{
		tracer:  otel.Tracer(tracerName),
		sink:    sink,
		verbose: os.Getenv("GOCLAW_TRACE_VERBOSE") != "",
		log:     slog.Default().With("component", "tracing"),
	}
}

// Verbose reports whether full message/tool previews should be captured
// rather than truncated summaries.
func (c *Collector) Verbose() bool {
	if c == nil {
		return false
	}
	return c.verbose
}

// EmitSpan records a completed span: it starts and immediately ends an
// OpenTelemetry span carrying the same timing and status, and forwards the
// raw record to the durable sink when one is configured.
func (c *Collector) EmitSpan(span store.SpanData) {
	if c == nil {
		return
	}

	_, otelSpan := c.tracer.Start(context.Background(), span.Name,
		oteltrace.WithTimestamp(span.StartTime),
		oteltrace.WithAttributes(spanAttributes(span)...),
	)
	if span.Status == store.SpanStatusError {
		otelSpan.SetStatus(codes.Error, span.Error)
	} else {
		otelSpan.SetStatus(codes.Ok, "")
	}
	end := span.StartTime
	if span.EndTime != nil {
		end = *span.EndTime
	}
	otelSpan.End(oteltrace.WithTimestamp(end))

	if c.sink != nil {
		if err := c.sink.SaveSpan(span); err != nil {
			c.log.Warn("failed to persist trace span", "span", span.Name, "error", err)
		}
	}
}

func spanAttributes(span store.SpanData) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("span.type", string(span.SpanType)),
		attribute.Int("duration_ms", span.DurationMS),
	}
	if span.Model != "" {
		attrs = append(attrs, attribute.String("model", span.Model))
	}
	if span.Provider != "" {
		attrs = append(attrs, attribute.String("provider", span.Provider))
	}
	if span.ToolName != "" {
		attrs = append(attrs, attribute.String("tool.name", span.ToolName))
	}
	if span.InputTokens > 0 {
		attrs = append(attrs, attribute.Int("tokens.input", span.InputTokens))
	}
	if span.OutputTokens > 0 {
		attrs = append(attrs, attribute.Int("tokens.output", span.OutputTokens))
	}
	return attrs
}

type contextKey int

const (
	traceIDKey contextKey = iota
	collectorKey
	parentSpanIDKey
	announceParentSpanIDKey
	delegateParentTraceIDKey
)

// WithTraceID attaches the trace ID that groups every span for one agent run.
func WithTraceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// TraceIDFromContext returns uuid.Nil if no trace is active.
func TraceIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(traceIDKey).(uuid.UUID)
	return id
}

// WithCollector attaches the collector spans should be emitted to.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorKey, c)
}

// CollectorFromContext returns nil if no collector is configured.
func CollectorFromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorKey).(*Collector)
	return c
}

// WithParentSpanID attaches the span ID that child LLM/tool spans nest under.
func WithParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, parentSpanIDKey, id)
}

// ParentSpanIDFromContext returns uuid.Nil if no parent span is set.
func ParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(parentSpanIDKey).(uuid.UUID)
	return id
}

// WithAnnounceParentSpanID attaches the root span ID of an unsolicited
// (heartbeat/cron-initiated) run, so its agent span nests under that root
// instead of starting a fresh top-level trace.
func WithAnnounceParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, announceParentSpanIDKey, id)
}

// AnnounceParentSpanIDFromContext returns uuid.Nil if this is not an announce run.
func AnnounceParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(announceParentSpanIDKey).(uuid.UUID)
	return id
}

// WithDelegateParentTraceID attaches the trace ID of the run that spawned a
// delegated sub-agent task, so the sub-agent's spans can be correlated back
// to the delegating run even though it gets its own trace ID.
func WithDelegateParentTraceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, delegateParentTraceIDKey, id)
}

// DelegateParentTraceIDFromContext returns uuid.Nil if this run was not delegated.
func DelegateParentTraceIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(delegateParentTraceIDKey).(uuid.UUID)
	return id
}
