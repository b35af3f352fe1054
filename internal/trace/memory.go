package trace

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemorySink is an in-process Sink used for offline runs and tests. It
// keeps the same upsert semantics as the real sink: scores are keyed by
// their identifier, so idempotent submissions collapse to one record.
type MemorySink struct {
	mu     sync.Mutex
	traces map[string]Metadata
	usages map[string]Usage
	errs   map[string]string
	scores map[string]Score

	// Failure injection for tests.
	FailStart bool
	FailScore bool
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		traces: make(map[string]Metadata),
		usages: make(map[string]Usage),
		errs:   make(map[string]string),
		scores: make(map[string]Score),
	}
}

func (m *MemorySink) StartObservation(_ context.Context, meta Metadata) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailStart {
		return "", fmt.Errorf("sink unreachable: connection refused")
	}
	traceID := uuid.NewString()
	m.traces[traceID] = meta
	return traceID, nil
}

func (m *MemorySink) AttachUsage(_ context.Context, traceID string, usage Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.traces[traceID]; !ok {
		return fmt.Errorf("unknown trace %s", traceID)
	}
	m.usages[traceID] = usage
	return nil
}

func (m *MemorySink) RecordError(_ context.Context, traceID string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.traces[traceID]; !ok {
		return fmt.Errorf("unknown trace %s", traceID)
	}
	m.errs[traceID] = message
	return nil
}

func (m *MemorySink) RecordScore(_ context.Context, score Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailScore {
		return fmt.Errorf("sink unreachable: connection refused")
	}
	m.scores[score.ID] = score
	return nil
}

// Trace returns the recorded metadata for a trace id.
func (m *MemorySink) Trace(traceID string) (Metadata, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.traces[traceID]
	return meta, ok
}

// UsageFor returns the usage attached to a trace id.
func (m *MemorySink) UsageFor(traceID string) (Usage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usages[traceID]
	return u, ok
}

// ErrorFor returns the error annotation recorded on a trace id.
func (m *MemorySink) ErrorFor(traceID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.errs[traceID]
	return msg, ok
}

// Scores returns a snapshot of all persisted score records.
func (m *MemorySink) Scores() []Score {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Score, 0, len(m.scores))
	for _, s := range m.scores {
		out = append(out, s)
	}
	return out
}
