package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/inrsta/dait-meetup-langfuse/internal/chat"
	"github.com/inrsta/dait-meetup-langfuse/internal/providers"
	"github.com/inrsta/dait-meetup-langfuse/internal/session"
)

// CreateSessionResponse carries the token that keys all later chat calls.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

// ProviderInfo describes one configured chat destination.
type ProviderInfo struct {
	Name   string   `json:"name"`
	Models []string `json:"models,omitempty"`
}

// PostMessageRequest is the submit payload.
type PostMessageRequest struct {
	Prompt string `json:"prompt"`
}

// PostMessageResponse returns the assistant turn produced by a submit.
type PostMessageResponse struct {
	Index   int    `json:"index"`
	Reply   string `json:"reply"`
	TraceID string `json:"trace_id,omitempty"`
}

// TranscriptResponse is the ordered transcript for one provider session.
type TranscriptResponse struct {
	Provider string         `json:"provider"`
	Turns    []session.Turn `json:"turns"`
}

// FeedbackRequest carries the raw thumbs value. Any value is accepted;
// normalization is total.
type FeedbackRequest struct {
	Value string `json:"value"`
}

func (s *Server) createSession(c echo.Context) error {
	id := uuid.NewString()
	token, err := s.tokens.CreateSessionToken(id)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create session token")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create session")
	}

	return c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID: id,
		Token:     token,
	})
}

func (s *Server) listProviders(c echo.Context) error {
	infos := make([]ProviderInfo, 0, len(s.orchestrators))
	for _, name := range s.providerNames() {
		infos = append(infos, ProviderInfo{
			Name:   name,
			Models: providers.GetProviderModels(providers.Provider(name)),
		})
	}
	return c.JSON(http.StatusOK, infos)
}

// orchestratorFor resolves the provider path parameter, or replies 404.
func (s *Server) orchestratorFor(c echo.Context) (*chat.Orchestrator, string, error) {
	name := c.Param("provider")
	orch, ok := s.orchestrators[name]
	if !ok {
		return nil, "", echo.NewHTTPError(http.StatusNotFound, "unknown provider: "+name)
	}
	return orch, name, nil
}

func (s *Server) postMessage(c echo.Context) error {
	orch, name, err := s.orchestratorFor(c)
	if err != nil {
		return err
	}

	var req PostMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	conv := s.sessions.Conversation(sessionID(c), name)
	reply := orch.Submit(c.Request().Context(), conv, req.Prompt)

	// The assistant turn is always the last one appended.
	index := conv.Len() - 1
	turn, _ := conv.Get(index)

	return c.JSON(http.StatusOK, PostMessageResponse{
		Index:   index,
		Reply:   reply,
		TraceID: turn.TraceID,
	})
}

func (s *Server) getTranscript(c echo.Context) error {
	_, name, err := s.orchestratorFor(c)
	if err != nil {
		return err
	}

	conv := s.sessions.Conversation(sessionID(c), name)
	return c.JSON(http.StatusOK, TranscriptResponse{
		Provider: name,
		Turns:    conv.Turns(),
	})
}

func (s *Server) postFeedback(c echo.Context) error {
	_, name, err := s.orchestratorFor(c)
	if err != nil {
		return err
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid turn index")
	}

	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	// Stale or unknown indexes are dropped inside the corrector; the API
	// answers 204 either way so the UI never sees feedback errors.
	conv := s.sessions.Conversation(sessionID(c), name)
	s.corrector.Correct(c.Request().Context(), conv, index, req.Value)

	return c.NoContent(http.StatusNoContent)
}
