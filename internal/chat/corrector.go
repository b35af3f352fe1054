package chat

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/inrsta/dait-meetup-langfuse/internal/session"
	"github.com/inrsta/dait-meetup-langfuse/internal/trace"
)

// scoreComment is the fixed comment attached to every submitted score.
const scoreComment = "User feedback"

// Corrector turns an out-of-band thumbs up/down into an idempotent score
// against the trace of the turn it refers to.
type Corrector struct {
	recorder *trace.Recorder
}

// NewCorrector creates a corrector backed by the given trace recorder.
func NewCorrector(recorder *trace.Recorder) *Corrector {
	return &Corrector{recorder: recorder}
}

// NormalizeFeedback maps any raw feedback input to a binary score value
// and the store representation. The mapping is total: "up" and "1" mean
// helpful, everything else means not helpful.
func NormalizeFeedback(raw string) (int, session.Feedback) {
	switch raw {
	case "up", "1":
		return 1, session.FeedbackUp
	default:
		return 0, session.FeedbackDown
	}
}

// Correct records feedback for the turn at index and submits the derived
// score. Unknown indexes are silently dropped (the turn may belong to a
// reset session); a turn without a trace identifier keeps its feedback but
// produces no score. Repeating the same call is idempotent: the score
// identifier is derived from the trace identifier, so the sink upserts.
func (c *Corrector) Correct(ctx context.Context, sess *session.ConversationSession, index int, raw string) {
	value, feedback := NormalizeFeedback(raw)

	turn, err := sess.Get(index)
	if err != nil {
		log.Debug().
			Int("turn_index", index).
			Msg("Feedback for unknown turn index, dropping")
		return
	}

	if err := sess.SetFeedback(index, feedback); err != nil {
		// Get above succeeded on the same index; only a concurrent reset
		// could land here, and dropping matches the NotFound contract.
		log.Debug().Int("turn_index", index).Msg("Feedback lost to session reset, dropping")
		return
	}

	if turn.TraceID == "" {
		log.Warn().
			Int("turn_index", index).
			Msg("Turn has no trace identifier, feedback kept but score skipped")
		return
	}

	c.recorder.RecordScore(ctx, turn.TraceID, value, scoreComment)
}
