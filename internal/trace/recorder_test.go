package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreIDDeterministic(t *testing.T) {
	a := ScoreID("t1")
	b := ScoreID("t1")
	c := ScoreID("t2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEmpty(t, a)
}

func TestRecorderOpen(t *testing.T) {
	sink := NewMemorySink()
	r := NewRecorder(sink)

	traceID := r.Open(context.Background(), Metadata{
		Prompt:   "Hello",
		Model:    "gpt-4o-mini",
		Provider: "openai",
		UserID:   "user-1",
	})

	require.NotEmpty(t, traceID)
	assert.False(t, IsLocalTraceID(traceID))

	meta, ok := sink.Trace(traceID)
	require.True(t, ok)
	assert.Equal(t, "Hello", meta.Prompt)
	assert.Equal(t, "openai", meta.Provider)
}

func TestRecorderOpenFallsBackLocally(t *testing.T) {
	sink := NewMemorySink()
	sink.FailStart = true
	r := NewRecorder(sink)

	traceID := r.Open(context.Background(), Metadata{Prompt: "ping"})

	require.NotEmpty(t, traceID)
	assert.True(t, IsLocalTraceID(traceID))
}

func TestRecorderAttachUsage(t *testing.T) {
	sink := NewMemorySink()
	r := NewRecorder(sink)

	traceID := r.Open(context.Background(), Metadata{Prompt: "Hello"})
	r.AttachUsage(context.Background(), traceID, Usage{InputTokens: 10, OutputTokens: 20})

	usage, ok := sink.UsageFor(traceID)
	require.True(t, ok)
	assert.Equal(t, 10, usage.InputTokens)
	assert.Equal(t, 20, usage.OutputTokens)
}

func TestRecorderAttachUsageSkipsLocalTraces(t *testing.T) {
	sink := NewMemorySink()
	sink.FailStart = true
	r := NewRecorder(sink)

	traceID := r.Open(context.Background(), Metadata{Prompt: "Hello"})
	r.AttachUsage(context.Background(), traceID, Usage{InputTokens: 10})

	_, ok := sink.UsageFor(traceID)
	assert.False(t, ok)
}

func TestRecordScoreIdempotent(t *testing.T) {
	sink := NewMemorySink()
	r := NewRecorder(sink)

	r.RecordScore(context.Background(), "t1", 1, "ok")
	r.RecordScore(context.Background(), "t1", 1, "ok")

	scores := sink.Scores()
	require.Len(t, scores, 1)
	assert.Equal(t, ScoreID("t1"), scores[0].ID)
	assert.Equal(t, "t1", scores[0].TraceID)
	assert.Equal(t, float64(1), scores[0].Value)
	assert.Equal(t, ScoreName, scores[0].Name)
}

func TestRecordScoreMissingTraceSkipped(t *testing.T) {
	sink := NewMemorySink()
	r := NewRecorder(sink)

	r.RecordScore(context.Background(), "", 1, "ok")

	assert.Empty(t, sink.Scores())
}

func TestRecordScoreSinkFailureSwallowed(t *testing.T) {
	sink := NewMemorySink()
	sink.FailScore = true
	r := NewRecorder(sink)

	// Must not panic or surface the failure
	r.RecordScore(context.Background(), "t1", 0, "bad")
	assert.Empty(t, sink.Scores())
}

func TestRecorderRecordError(t *testing.T) {
	sink := NewMemorySink()
	r := NewRecorder(sink)

	traceID := r.Open(context.Background(), Metadata{Prompt: "ping"})
	r.RecordError(context.Background(), traceID, "rate limited")

	msg, ok := sink.ErrorFor(traceID)
	require.True(t, ok)
	assert.Equal(t, "rate limited", msg)
}
