package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inrsta/dait-meetup-langfuse/internal/chat"
	"github.com/inrsta/dait-meetup-langfuse/internal/providers"
	"github.com/inrsta/dait-meetup-langfuse/internal/session"
	"github.com/inrsta/dait-meetup-langfuse/internal/trace"
)

type stubGenerator struct {
	text string
	err  error
}

func (s *stubGenerator) Generate(_ context.Context, _ string) (*providers.Generation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &providers.Generation{Text: s.text}, nil
}

func (s *stubGenerator) Model() string { return "stub-model" }

func (s *stubGenerator) Name() providers.Provider { return providers.Provider("stub") }

func newStubServer(t *testing.T, gen providers.Generator) (*Server, *trace.MemorySink) {
	t.Helper()

	sink := trace.NewMemorySink()
	recorder := trace.NewRecorder(sink)

	orchestrators := map[string]*chat.Orchestrator{
		"stub": chat.NewOrchestrator(gen, recorder, nil),
	}
	server := newTestServer(orchestrators, chat.NewCorrector(recorder), "test-secret")
	return server, sink
}

func createTestSession(t *testing.T, server *Server) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func doJSON(server *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newStubServer(t, &stubGenerator{text: "ok"})

	rec := doJSON(server, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListProviders(t *testing.T) {
	server, _ := newStubServer(t, &stubGenerator{text: "ok"})

	rec := doJSON(server, http.MethodGet, "/api/v1/providers", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []ProviderInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "stub", infos[0].Name)
}

func TestChatRequiresSessionToken(t *testing.T) {
	server, _ := newStubServer(t, &stubGenerator{text: "ok"})

	rec := doJSON(server, http.MethodPost, "/api/v1/chat/stub/messages", "", `{"prompt":"Hello"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(server, http.MethodPost, "/api/v1/chat/stub/messages", "not-a-jwt", `{"prompt":"Hello"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostMessageAndTranscript(t *testing.T) {
	server, _ := newStubServer(t, &stubGenerator{text: "Hi there"})
	token := createTestSession(t, server)

	rec := doJSON(server, http.MethodPost, "/api/v1/chat/stub/messages", token, `{"prompt":"Hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PostMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Index)
	assert.Equal(t, "Hi there", resp.Reply)
	assert.NotEmpty(t, resp.TraceID)

	rec = doJSON(server, http.MethodGet, "/api/v1/chat/stub/messages", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var transcript TranscriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transcript))
	require.Len(t, transcript.Turns, 2)
	assert.Equal(t, session.RoleUser, transcript.Turns[0].Role)
	assert.Equal(t, "Hello", transcript.Turns[0].Content)
	assert.Equal(t, session.RoleAssistant, transcript.Turns[1].Role)
	assert.Equal(t, "Hi there", transcript.Turns[1].Content)
}

func TestPostMessageProviderFailure(t *testing.T) {
	server, _ := newStubServer(t, &stubGenerator{err: errors.New("request timeout")})
	token := createTestSession(t, server)

	rec := doJSON(server, http.MethodPost, "/api/v1/chat/stub/messages", token, `{"prompt":"ping"}`)
	// Provider errors surface as assistant text, never as HTTP errors
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PostMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, strings.ToLower(resp.Reply), "error")
}

func TestPostMessageUnknownProvider(t *testing.T) {
	server, _ := newStubServer(t, &stubGenerator{text: "ok"})
	token := createTestSession(t, server)

	rec := doJSON(server, http.MethodPost, "/api/v1/chat/nope/messages", token, `{"prompt":"Hello"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostMessageEmptyPrompt(t *testing.T) {
	server, _ := newStubServer(t, &stubGenerator{text: "ok"})
	token := createTestSession(t, server)

	rec := doJSON(server, http.MethodPost, "/api/v1/chat/stub/messages", token, `{"prompt":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedbackFlow(t *testing.T) {
	server, sink := newStubServer(t, &stubGenerator{text: "Hi there"})
	token := createTestSession(t, server)

	rec := doJSON(server, http.MethodPost, "/api/v1/chat/stub/messages", token, `{"prompt":"Hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PostMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = doJSON(server, http.MethodPost, "/api/v1/chat/stub/messages/1/feedback", token, `{"value":"up"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	scores := sink.Scores()
	require.Len(t, scores, 1)
	assert.Equal(t, resp.TraceID, scores[0].TraceID)
	assert.Equal(t, trace.ScoreID(resp.TraceID), scores[0].ID)
	assert.Equal(t, float64(1), scores[0].Value)

	// Resubmission stays idempotent across the HTTP surface too
	rec = doJSON(server, http.MethodPost, "/api/v1/chat/stub/messages/1/feedback", token, `{"value":"up"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, sink.Scores(), 1)
}

func TestFeedbackStaleIndexReturnsNoContent(t *testing.T) {
	server, sink := newStubServer(t, &stubGenerator{text: "ok"})
	token := createTestSession(t, server)

	rec := doJSON(server, http.MethodPost, "/api/v1/chat/stub/messages/99/feedback", token, `{"value":"down"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, sink.Scores())
}

func TestSessionsAreIsolated(t *testing.T) {
	server, _ := newStubServer(t, &stubGenerator{text: "ok"})
	tokenA := createTestSession(t, server)
	tokenB := createTestSession(t, server)

	rec := doJSON(server, http.MethodPost, "/api/v1/chat/stub/messages", tokenA, `{"prompt":"Hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(server, http.MethodGet, "/api/v1/chat/stub/messages", tokenB, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var transcript TranscriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transcript))
	assert.Empty(t, transcript.Turns)
}

func TestChatPageRenders(t *testing.T) {
	server, _ := newStubServer(t, &stubGenerator{text: "ok"})

	rec := doJSON(server, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "daitchat")
	assert.Contains(t, rec.Body.String(), "stub")
}
