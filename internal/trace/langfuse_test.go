package trace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedBatch struct {
	Batch []struct {
		ID   string         `json:"id"`
		Type string         `json:"type"`
		Body map[string]any `json:"body"`
	} `json:"batch"`
}

func newTestSink(t *testing.T, handler http.HandlerFunc) (*LangfuseSink, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sink := NewLangfuseSink(LangfuseConfig{
		Host:      srv.URL,
		PublicKey: "pk-test",
		SecretKey: "sk-test",
	})
	return sink, srv
}

func TestStartObservationSubmitsTraceAndGeneration(t *testing.T) {
	var captured capturedBatch
	var gotUser, gotPass string

	sink, _ := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/public/ingestion", r.URL.Path)
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	})

	traceID, err := sink.StartObservation(context.Background(), Metadata{
		Prompt:   "Hello",
		Model:    "gpt-4o-mini",
		Provider: "openai",
		UserID:   "user-1",
		Options:  map[string]any{"temperature": 0.7},
	})
	require.NoError(t, err)
	require.NotEmpty(t, traceID)

	assert.Equal(t, "pk-test", gotUser)
	assert.Equal(t, "sk-test", gotPass)

	require.Len(t, captured.Batch, 2)
	assert.Equal(t, "trace-create", captured.Batch[0].Type)
	assert.Equal(t, "generation-create", captured.Batch[1].Type)

	assert.Equal(t, traceID, captured.Batch[0].Body["id"])
	assert.Equal(t, "Hello", captured.Batch[0].Body["input"])
	assert.Equal(t, "user-1", captured.Batch[0].Body["userId"])

	assert.Equal(t, traceID, captured.Batch[1].Body["traceId"])
	assert.Equal(t, "gpt-4o-mini", captured.Batch[1].Body["model"])
}

func TestStartObservationPropagatesSinkFailure(t *testing.T) {
	sink, _ := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := sink.StartObservation(context.Background(), Metadata{Prompt: "Hello"})
	assert.Error(t, err)
}

func TestSubmitRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32

	sink, _ := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	_, err := sink.StartObservation(context.Background(), Metadata{Prompt: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRecordScorePayload(t *testing.T) {
	var captured capturedBatch

	sink, _ := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	})

	score := Score{
		ID:      ScoreID("t1"),
		TraceID: "t1",
		Name:    ScoreName,
		Value:   1,
		Comment: "User feedback",
	}
	require.NoError(t, sink.RecordScore(context.Background(), score))

	require.Len(t, captured.Batch, 1)
	event := captured.Batch[0]
	assert.Equal(t, "score-create", event.Type)
	// Event id matches score id so repeated submissions dedupe upstream
	assert.Equal(t, ScoreID("t1"), event.ID)
	assert.Equal(t, ScoreID("t1"), event.Body["id"])
	assert.Equal(t, "t1", event.Body["traceId"])
	assert.Equal(t, "helpfulness", event.Body["name"])
	assert.Equal(t, float64(1), event.Body["value"])
	assert.Equal(t, "BOOLEAN", event.Body["dataType"])
	assert.Equal(t, "User feedback", event.Body["comment"])
}

func TestAttachUsagePayload(t *testing.T) {
	var captured capturedBatch

	sink, _ := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusMultiStatus)
	})

	require.NoError(t, sink.AttachUsage(context.Background(), "t1", Usage{
		InputTokens:  12,
		OutputTokens: 34,
	}))

	require.Len(t, captured.Batch, 1)
	event := captured.Batch[0]
	assert.Equal(t, "generation-update", event.Type)
	assert.Equal(t, "t1", event.Body["traceId"])

	usage, ok := event.Body["usage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(12), usage["input"])
	assert.Equal(t, float64(34), usage["output"])
}

func TestRecordErrorPayload(t *testing.T) {
	var captured capturedBatch

	sink, _ := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, sink.RecordError(context.Background(), "t1", "provider timeout"))

	require.Len(t, captured.Batch, 1)
	event := captured.Batch[0]
	assert.Equal(t, "generation-update", event.Type)
	assert.Equal(t, "ERROR", event.Body["level"])
	assert.Equal(t, "provider timeout", event.Body["statusMessage"])
}
