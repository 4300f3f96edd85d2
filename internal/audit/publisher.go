package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher accepts lifecycle events. Implementations must be safe for
// concurrent use; publishing is best-effort from the engine's point of view
// (the fail-closed guarantee applies to match attempts, not lifecycle events).
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// InMemory collects events for tests and development.
type InMemory struct {
	mu     sync.RWMutex
	events []Event
}

// NewInMemory constructs an empty in-memory publisher.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (p *InMemory) Emit(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a snapshot of everything emitted so far.
func (p *InMemory) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Event{}, p.events...)
}

// Logging writes events to the structured log. It is the default sink when no
// broker is configured, so lifecycle actions always leave a trace somewhere.
type Logging struct {
	logger *slog.Logger
}

// NewLogging constructs a log-backed publisher.
func NewLogging(logger *slog.Logger) *Logging {
	return &Logging{logger: logger}
}

func (p *Logging) Emit(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, "audit event",
		slog.String("action", event.Action),
		slog.String("tenant_id", event.TenantID.String()),
		slog.String("subject_id", event.SubjectID.String()),
		slog.String("template_id", event.TemplateID.String()),
		slog.String("modality", event.Modality),
		slog.String("reason", event.Reason),
		slog.String("log_type", "audit"),
	)
	return nil
}
