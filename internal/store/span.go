package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SpanType classifies a trace span by what it measures.
type SpanType string

const (
	SpanTypeAgent    SpanType = "agent"
	SpanTypeLLMCall  SpanType = "llm_call"
	SpanTypeToolCall SpanType = "tool_call"
)

// SpanStatus is the terminal state of a span.
type SpanStatus string

const (
	SpanStatusCompleted SpanStatus = "completed"
	SpanStatusError     SpanStatus = "error"
)

// SpanLevelDefault is the default trace verbosity level.
const SpanLevelDefault = "DEFAULT"

// SpanData is one emitted trace span: an agent run, an LLM call, or a tool
// call. Fields beyond the minimum are left zero when not applicable.
type SpanData struct {
	ID           uuid.UUID
	TraceID      uuid.UUID
	ParentSpanID *uuid.UUID
	AgentID      *uuid.UUID

	SpanType  SpanType
	Name      string
	StartTime time.Time
	EndTime   *time.Time

	DurationMS int

	Model    string
	Provider string

	ToolName   string
	ToolCallID string

	InputPreview  string
	OutputPreview string
	FinishReason  string

	InputTokens  int
	OutputTokens int

	Status SpanStatus
	Level  string
	Error  string

	Metadata json.RawMessage

	CreatedAt time.Time
}

// TracingStore persists emitted spans. Left nil when tracing has no sink
// configured; the collector degrades to logging only.
type TracingStore interface {
	SaveSpan(span SpanData) error
}

// GenNewID mints a fresh random identifier, used for span IDs, trace IDs,
// and other entity IDs that don't need a store round-trip to allocate.
func GenNewID() uuid.UUID {
	return uuid.New()
}
