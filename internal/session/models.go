package session

// Domain models for a single chat transcript: ordered turns, each assistant
// turn carrying the trace identifier handed back by the observability sink.

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Feedback is the user's quality judgment on an assistant turn.
type Feedback string

const (
	FeedbackUnset Feedback = ""
	FeedbackUp    Feedback = "up"
	FeedbackDown  Feedback = "down"
)

// Turn is one message in a conversation transcript.
type Turn struct {
	Index    int      `json:"index"`
	Role     Role     `json:"role"`
	Content  string   `json:"content"`
	TraceID  string   `json:"trace_id,omitempty"`
	Feedback Feedback `json:"feedback,omitempty"`
}

// IsAssistant reports whether the turn was produced by the model.
func (t Turn) IsAssistant() bool {
	return t.Role == RoleAssistant
}
