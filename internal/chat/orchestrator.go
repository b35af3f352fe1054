// Package chat contains the invocation orchestrator and feedback
// corrector: the glue-free core that threads trace identifiers from a
// model call through the transcript and back to a quality score.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/inrsta/dait-meetup-langfuse/internal/providers"
	"github.com/inrsta/dait-meetup-langfuse/internal/session"
	"github.com/inrsta/dait-meetup-langfuse/internal/trace"
)

// Orchestrator runs one prompt through the model provider, records the
// invocation as a trace, and appends the exchange to the transcript.
type Orchestrator struct {
	generator providers.Generator
	recorder  *trace.Recorder
	options   map[string]any
}

// NewOrchestrator wires an orchestrator to a provider client and a trace
// recorder. Options are pass-through model settings echoed into trace
// metadata, never interpreted here.
func NewOrchestrator(generator providers.Generator, recorder *trace.Recorder, options map[string]any) *Orchestrator {
	return &Orchestrator{
		generator: generator,
		recorder:  recorder,
		options:   options,
	}
}

// Submit appends the user's prompt and the assistant's reply to the
// session and returns the reply text. Provider failures never escape:
// they are rendered into the transcript as the assistant's turn, so after
// every call the transcript has gained exactly one user and one assistant
// turn. An empty prompt (after trimming) is a no-op.
func (o *Orchestrator) Submit(ctx context.Context, sess *session.ConversationSession, prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ""
	}

	sess.Append(session.Turn{
		Role:    session.RoleUser,
		Content: prompt,
	})

	traceID := o.recorder.Open(ctx, trace.Metadata{
		Prompt:   prompt,
		Model:    o.generator.Model(),
		Provider: string(o.generator.Name()),
		UserID:   sess.UserID(),
		Options:  o.options,
	})

	gen, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		text := fmt.Sprintf("An error occurred: %s", err)
		o.recorder.RecordError(ctx, traceID, err.Error())
		log.Warn().
			Err(err).
			Str("provider", string(o.generator.Name())).
			Str("trace_id", traceID).
			Msg("Provider call failed, rendering error into transcript")

		sess.Append(session.Turn{
			Role:    session.RoleAssistant,
			Content: text,
			TraceID: traceID,
		})
		return text
	}

	if gen.Usage != nil {
		o.recorder.AttachUsage(ctx, traceID, trace.Usage{
			InputTokens:  gen.Usage.InputTokens,
			OutputTokens: gen.Usage.OutputTokens,
			Estimated:    gen.Usage.Estimated,
		})
	}

	index := sess.Append(session.Turn{
		Role:    session.RoleAssistant,
		Content: gen.Text,
		TraceID: traceID,
	})

	log.Debug().
		Str("provider", string(o.generator.Name())).
		Str("trace_id", traceID).
		Int("turn_index", index).
		Msg("Generation recorded")

	return gen.Text
}
