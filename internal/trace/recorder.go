// Package trace correlates model invocations with an external telemetry
// store. Every generation gets a trace identifier; user feedback is later
// converted into an idempotent score against that identifier.
package trace

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Metadata describes one model invocation for observability purposes.
// Options are forwarded verbatim, never parsed.
type Metadata struct {
	Prompt   string         `json:"prompt"`
	Model    string         `json:"model"`
	Provider string         `json:"provider"`
	UserID   string         `json:"user_id,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// Usage carries token counts for a generation. Providers that do not report
// usage leave Estimated=false counts at zero or supply a local estimate.
type Usage struct {
	InputTokens  int  `json:"input_tokens"`
	OutputTokens int  `json:"output_tokens"`
	Estimated    bool `json:"estimated,omitempty"`
}

// Score is a post-hoc quality judgment attached to a trace.
type Score struct {
	ID      string  `json:"id"`
	TraceID string  `json:"trace_id"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Comment string  `json:"comment,omitempty"`
}

// Sink is the external telemetry store. Implementations must tolerate
// concurrent calls from independent sessions.
type Sink interface {
	StartObservation(ctx context.Context, meta Metadata) (traceID string, err error)
	AttachUsage(ctx context.Context, traceID string, usage Usage) error
	RecordError(ctx context.Context, traceID string, message string) error
	RecordScore(ctx context.Context, score Score) error
}

// ScoreName is the single score dimension this system records.
const ScoreName = "helpfulness"

// localTracePrefix marks identifiers generated locally when the sink was
// unreachable. Correlation within the session still works; the sink just
// never saw the trace.
const localTracePrefix = "local-"

// ScoreID derives a stable score identifier from a trace identifier alone,
// so repeated submissions for the same trace overwrite instead of
// accumulating.
func ScoreID(traceID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("score/"+traceID)).String()
}

// IsLocalTraceID reports whether the identifier was generated as a local
// fallback rather than by the sink.
func IsLocalTraceID(traceID string) bool {
	return len(traceID) > len(localTracePrefix) && traceID[:len(localTracePrefix)] == localTracePrefix
}

// Recorder wraps a Sink so that telemetry failures never block or surface
// into the user flow.
type Recorder struct {
	sink Sink
}

// NewRecorder creates a recorder over the given sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Open starts a trace for one model call. It always succeeds locally: when
// the sink is unreachable a locally-generated identifier is returned so
// downstream correlation keeps working, and the failure is logged as a
// diagnostic only.
func (r *Recorder) Open(ctx context.Context, meta Metadata) string {
	traceID, err := r.sink.StartObservation(ctx, meta)
	if err != nil || traceID == "" {
		traceID = localTracePrefix + uuid.NewString()
		log.Warn().
			Err(err).
			Str("provider", meta.Provider).
			Str("trace_id", traceID).
			Msg("Trace sink unreachable, using local fallback identifier")
	}
	return traceID
}

// AttachUsage reports token usage into an open trace, best effort.
func (r *Recorder) AttachUsage(ctx context.Context, traceID string, usage Usage) {
	if traceID == "" || IsLocalTraceID(traceID) {
		return
	}
	if err := r.sink.AttachUsage(ctx, traceID, usage); err != nil {
		log.Debug().Err(err).Str("trace_id", traceID).Msg("Failed to attach usage to trace")
	}
}

// RecordError annotates an open trace with a provider failure, best effort.
func (r *Recorder) RecordError(ctx context.Context, traceID string, message string) {
	if traceID == "" || IsLocalTraceID(traceID) {
		return
	}
	if err := r.sink.RecordError(ctx, traceID, message); err != nil {
		log.Debug().Err(err).Str("trace_id", traceID).Msg("Failed to record error on trace")
	}
}

// RecordScore submits a binary quality score for a trace. The score
// identifier is derived from the trace identifier, so calling this any
// number of times with the same trace yields one persisted record. Sink
// failures are swallowed as diagnostics.
func (r *Recorder) RecordScore(ctx context.Context, traceID string, value int, comment string) {
	if traceID == "" {
		log.Debug().Msg("Score requested without a trace identifier, skipping")
		return
	}
	score := Score{
		ID:      ScoreID(traceID),
		TraceID: traceID,
		Name:    ScoreName,
		Value:   float64(value),
		Comment: comment,
	}
	if err := r.sink.RecordScore(ctx, score); err != nil {
		log.Warn().
			Err(err).
			Str("trace_id", traceID).
			Str("score_id", score.ID).
			Msg("Failed to submit score to trace sink")
	}
}
