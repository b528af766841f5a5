package capability

import (
	"context"
	"fmt"
	"testing"

	"nodelink/internal/domain"
)

type fakeRecorder struct {
	recorded []domain.Notification
	err      error
}

func (f *fakeRecorder) RecordNotification(_ context.Context, n domain.Notification) error {
	f.recorded = append(f.recorded, n)
	return f.err
}

func TestNotifyDefaults(t *testing.T) {
	var got domain.Notification
	s := NewSystem(func(n domain.Notification) { got = n }, nil, testLogger())

	resp := s.Execute(context.Background(), req("system.notify", map[string]any{"body": "done"}))
	if !resp.OK {
		t.Fatalf("resp = %+v", resp)
	}
	if got.Title != defaultNotifyTitle {
		t.Errorf("title = %q, want product default", got.Title)
	}
	if !got.Sound {
		t.Error("sound should default to true")
	}
	if got.Body != "done" {
		t.Errorf("body = %q", got.Body)
	}
}

func TestNotifyAlwaysSucceeds(t *testing.T) {
	// No notifier, no recorder: still fire-and-forget success.
	s := NewSystem(nil, nil, testLogger())
	resp := s.Execute(context.Background(), req("system.notify", nil))
	if !resp.OK {
		t.Errorf("resp = %+v", resp)
	}
}

func TestNotifyRecordsHistory(t *testing.T) {
	rec := &fakeRecorder{}
	s := NewSystem(nil, rec, testLogger())

	s.Execute(context.Background(), req("system.notify", map[string]any{"title": "Hi", "sound": false}))
	if len(rec.recorded) != 1 {
		t.Fatalf("recorded %d notifications", len(rec.recorded))
	}
	if rec.recorded[0].Title != "Hi" || rec.recorded[0].Sound {
		t.Errorf("recorded = %+v", rec.recorded[0])
	}
}

func TestNotifyRecorderFailureIsSwallowed(t *testing.T) {
	rec := &fakeRecorder{err: fmt.Errorf("db locked")}
	s := NewSystem(nil, rec, testLogger())

	resp := s.Execute(context.Background(), req("system.notify", nil))
	if !resp.OK {
		t.Errorf("recorder failure must not fail the command: %+v", resp)
	}
}
