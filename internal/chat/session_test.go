package chat

import (
	"testing"
	"time"

	"github.com/zulandar/shiftlog/internal/report"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func activate(conv *report.Conversation) {
	conv.Draft = &report.Draft{ID: "r1"}
	conv.Step = report.StepPlate
}

func TestSessionStore_AcquireReturnsSameConversation(t *testing.T) {
	s := NewSessionStore(SessionStoreOpts{})
	a := s.Acquire("k")
	activate(a)
	s.Release("k")

	b := s.Acquire("k")
	defer s.Release("k")
	if a != b {
		t.Fatal("expected the same conversation for the same key")
	}
	if b.Draft == nil || b.Draft.ID != "r1" {
		t.Errorf("draft not preserved: %+v", b.Draft)
	}
}

func TestSessionStore_ReleaseDropsIdleConversation(t *testing.T) {
	s := NewSessionStore(SessionStoreOpts{})
	s.Acquire("k")
	s.Release("k")
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 for a conversation with no draft", s.Len())
	}
}

func TestSessionStore_SweepExpiresIdle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSessionStore(SessionStoreOpts{IdleTimeout: 10 * time.Minute, Now: clock.now})

	activate(s.Acquire("old"))
	s.Release("old")
	clock.advance(11 * time.Minute)
	activate(s.Acquire("fresh"))
	s.Release("fresh")

	var expired []string
	n := s.Sweep(func(key string, conv *report.Conversation) {
		expired = append(expired, key)
		if conv.Draft == nil {
			t.Error("expire callback should see the draft")
		}
	})
	if n != 1 || len(expired) != 1 || expired[0] != "old" {
		t.Fatalf("expired = %v (n=%d), want [old]", expired, n)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestSessionStore_SweepSkipsBusy(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSessionStore(SessionStoreOpts{IdleTimeout: time.Minute, Now: clock.now})

	activate(s.Acquire("k"))
	clock.advance(time.Hour)
	if n := s.Sweep(nil); n != 0 {
		t.Fatalf("swept %d busy sessions", n)
	}
	s.Release("k")
	clock.advance(2 * time.Minute)
	if n := s.Sweep(nil); n != 1 {
		t.Fatalf("swept %d, want 1 after release", n)
	}
}

func TestSessionStore_ZeroTimeoutDisablesSweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSessionStore(SessionStoreOpts{Now: clock.now})
	activate(s.Acquire("k"))
	s.Release("k")
	clock.advance(1000 * time.Hour)
	if n := s.Sweep(nil); n != 0 {
		t.Errorf("swept %d with expiry disabled", n)
	}
}

func TestSessionStore_Remove(t *testing.T) {
	s := NewSessionStore(SessionStoreOpts{})
	activate(s.Acquire("k"))
	s.Release("k")
	if conv := s.Remove("k"); conv == nil || conv.Draft == nil {
		t.Fatal("Remove should return the held conversation")
	}
	if s.Remove("k") != nil {
		t.Error("second Remove should return nil")
	}
}
