package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{ err error }

func (f failingSink) Log(context.Context, *Event) error { return f.err }

func TestMemorySink_RecordsAndStamps(t *testing.T) {
	s := NewMemorySink()
	require.NoError(t, s.Log(context.Background(), &Event{Type: EventSignup, UserID: "u1"}))
	require.NoError(t, s.Log(context.Background(), &Event{Type: EventLogout}))

	events := s.Events()
	require.Len(t, events, 2)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].CreatedAt.IsZero())
	assert.Equal(t, []EventType{EventSignup, EventLogout}, s.Types())
}

func TestEvent_StampKeepsExisting(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	e := &Event{ID: "fixed", CreatedAt: at}
	e.Stamp(time.Now())
	assert.Equal(t, "fixed", e.ID)
	assert.Equal(t, at, e.CreatedAt)
}

func TestLogSink_WritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(logging.New("info", "json", &buf))

	err := s.Log(context.Background(), &Event{
		Type:    EventLoginFailure,
		Email:   "a@x.com",
		Reason:  "bad_password",
		Details: map[string]any{"attempt": 2},
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "audit", line["module"])
	assert.Equal(t, "auth.login.failure", line["event"])
	assert.Equal(t, "bad_password", line["reason"])
	assert.EqualValues(t, 2, line["attempt"])
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	boom := errors.New("boom")

	err := Multi{a, failingSink{err: boom}, b}.Log(context.Background(), &Event{Type: EventLogout})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
	assert.Equal(t, a.Events()[0].ID, b.Events()[0].ID, "one event id across sinks")

	assert.NoError(t, Multi{a}.Log(context.Background(), &Event{Type: EventLogout}))
}
