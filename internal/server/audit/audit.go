// Package audit records security-relevant auth events to one or more sinks.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/google/uuid"
)

// EventType names an audit event.
type EventType string

const (
	EventSignup          EventType = "auth.signup"
	EventLoginSuccess    EventType = "auth.login.success"
	EventLoginFailure    EventType = "auth.login.failure"
	EventRefreshSuccess  EventType = "auth.refresh.success"
	EventRefreshFailure  EventType = "auth.refresh.failure"
	EventLogout          EventType = "auth.logout"
	EventProfileUpdated  EventType = "user.profile.updated"
	EventUserDeactivated EventType = "user.deactivated"
	EventTokensPurged    EventType = "auth.tokens.purged"
)

// Event is one audit record. It never carries passwords or token strings.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	UserID    string         `json:"userId,omitempty"`
	Email     string         `json:"email,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Sink persists audit events.
type Sink interface {
	Log(ctx context.Context, e *Event) error
}

// Stamp fills in a missing ID and timestamp.
func (e *Event) Stamp(now time.Time) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now.UTC()
	}
}

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger logging.Logger
}

func NewLogSink(l logging.Logger) *LogSink {
	return &LogSink{logger: l.With("module", "audit")}
}

func (s *LogSink) Log(ctx context.Context, e *Event) error {
	e.Stamp(time.Now())
	args := []any{"event_id", e.ID, "event", string(e.Type)}
	if e.UserID != "" {
		args = append(args, "user_id", e.UserID)
	}
	if e.Email != "" {
		args = append(args, "email", e.Email)
	}
	if e.Reason != "" {
		args = append(args, "reason", e.Reason)
	}
	for k, v := range e.Details {
		args = append(args, k, v)
	}
	s.logger.Info(ctx, "audit", args...)
	return nil
}

// MemorySink keeps events in memory, for tests and development.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Log(_ context.Context, e *Event) error {
	e.Stamp(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Types returns the recorded event types in order.
func (s *MemorySink) Types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Log(ctx context.Context, e *Event) error {
	e.Stamp(time.Now())
	var errs []error
	for _, s := range m {
		if err := s.Log(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
