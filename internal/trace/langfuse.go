package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/inrsta/dait-meetup-langfuse/internal/retry"
)

// LangfuseConfig holds connection settings for a Langfuse-compatible sink.
type LangfuseConfig struct {
	Host      string `koanf:"host"`
	PublicKey string `koanf:"public_key"`
	SecretKey string `koanf:"secret_key"`
	Enabled   bool   `koanf:"enabled"`
}

// LangfuseSink submits traces, generations, and scores to the Langfuse
// public ingestion API. All calls are synchronous HTTP with a short retry
// window; callers (the Recorder) treat failures as diagnostics.
type LangfuseSink struct {
	host       string
	publicKey  string
	secretKey  string
	httpClient *http.Client
	retryCfg   retry.RetryConfig
}

// NewLangfuseSink creates a sink client for the given configuration.
func NewLangfuseSink(cfg LangfuseConfig) *LangfuseSink {
	host := cfg.Host
	if host == "" {
		host = "https://cloud.langfuse.com"
	}
	return &LangfuseSink{
		host:      host,
		publicKey: cfg.PublicKey,
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		retryCfg: retry.SinkRetryConfig(),
	}
}

// ingestionEvent is one entry in a Langfuse ingestion batch.
type ingestionEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Body      any    `json:"body"`
}

type traceBody struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	UserID    string         `json:"userId,omitempty"`
	Input     string         `json:"input,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp string         `json:"timestamp"`
}

type generationBody struct {
	ID            string         `json:"id"`
	TraceID       string         `json:"traceId"`
	Name          string         `json:"name,omitempty"`
	Model         string         `json:"model,omitempty"`
	Input         string         `json:"input,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Usage         *usagePayload  `json:"usage,omitempty"`
	Level         string         `json:"level,omitempty"`
	StatusMessage string         `json:"statusMessage,omitempty"`
	StartTime     string         `json:"startTime,omitempty"`
}

type usagePayload struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

type scoreBody struct {
	ID       string  `json:"id"`
	TraceID  string  `json:"traceId"`
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	DataType string  `json:"dataType,omitempty"`
	Comment  string  `json:"comment,omitempty"`
}

// generationID derives the generation observation identifier for a trace.
// Deterministic so later usage or error updates address the same
// observation without carrying extra state around.
func generationID(traceID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("generation/"+traceID)).String()
}

// StartObservation opens a trace plus its generation observation and
// returns the new trace identifier.
func (s *LangfuseSink) StartObservation(ctx context.Context, meta Metadata) (string, error) {
	traceID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	metadata := map[string]any{
		"provider": meta.Provider,
	}
	for k, v := range meta.Options {
		metadata[k] = v
	}

	events := []ingestionEvent{
		{
			ID:        uuid.NewString(),
			Type:      "trace-create",
			Timestamp: now,
			Body: traceBody{
				ID:        traceID,
				Name:      "chat-generation",
				UserID:    meta.UserID,
				Input:     meta.Prompt,
				Metadata:  metadata,
				Timestamp: now,
			},
		},
		{
			ID:        uuid.NewString(),
			Type:      "generation-create",
			Timestamp: now,
			Body: generationBody{
				ID:        generationID(traceID),
				TraceID:   traceID,
				Name:      "generation",
				Model:     meta.Model,
				Input:     meta.Prompt,
				Metadata:  metadata,
				StartTime: now,
			},
		},
	}

	if err := s.submit(ctx, events); err != nil {
		return "", fmt.Errorf("failed to start observation: %w", err)
	}
	return traceID, nil
}

// AttachUsage updates the generation observation with token counts.
func (s *LangfuseSink) AttachUsage(ctx context.Context, traceID string, usage Usage) error {
	event := ingestionEvent{
		ID:        uuid.NewString(),
		Type:      "generation-update",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Body: generationBody{
			ID:      generationID(traceID),
			TraceID: traceID,
			Usage: &usagePayload{
				Input:  usage.InputTokens,
				Output: usage.OutputTokens,
			},
		},
	}
	return s.submit(ctx, []ingestionEvent{event})
}

// RecordError marks the generation observation as failed.
func (s *LangfuseSink) RecordError(ctx context.Context, traceID string, message string) error {
	event := ingestionEvent{
		ID:        uuid.NewString(),
		Type:      "generation-update",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Body: generationBody{
			ID:            generationID(traceID),
			TraceID:       traceID,
			Level:         "ERROR",
			StatusMessage: message,
		},
	}
	return s.submit(ctx, []ingestionEvent{event})
}

// RecordScore submits a score. The caller supplies a deterministic score
// identifier, so the sink upserts rather than duplicates.
func (s *LangfuseSink) RecordScore(ctx context.Context, score Score) error {
	event := ingestionEvent{
		ID:        score.ID,
		Type:      "score-create",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Body: scoreBody{
			ID:       score.ID,
			TraceID:  score.TraceID,
			Name:     score.Name,
			Value:    score.Value,
			DataType: "BOOLEAN",
			Comment:  score.Comment,
		},
	}
	return s.submit(ctx, []ingestionEvent{event})
}

// submit posts an ingestion batch with basic auth and retry on transient
// failures.
func (s *LangfuseSink) submit(ctx context.Context, events []ingestionEvent) error {
	payload, err := json.Marshal(map[string]any{"batch": events})
	if err != nil {
		return fmt.Errorf("failed to marshal ingestion batch: %w", err)
	}

	url := s.host + "/api/public/ingestion"

	result := retry.RetryWithBackoff(ctx, s.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(s.publicKey, s.secretKey)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		// 207 means partial success; individual event errors are logged
		// but not retried.
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return fmt.Errorf("ingestion returned status %d: %s", resp.StatusCode, string(body))
		}

		if resp.StatusCode == http.StatusMultiStatus {
			logPartialFailures(resp.Body)
		}
		return nil
	})

	if !result.Success {
		return result.LastError
	}
	return nil
}

func logPartialFailures(body io.Reader) {
	var parsed struct {
		Errors []struct {
			ID      string `json:"id"`
			Status  int    `json:"status"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return
	}
	for _, e := range parsed.Errors {
		log.Debug().
			Str("event_id", e.ID).
			Int("status", e.Status).
			Str("message", e.Message).
			Msg("Ingestion event rejected by sink")
	}
}
