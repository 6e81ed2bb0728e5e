package session

import (
	"reflect"
	"testing"
	"time"

	"talkgroups/internal/transport"
)

func TestTouchOpensOnce(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	t0 := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	target := transport.ChatTarget{ChatID: 42}

	if !tr.Touch("u1", "ann", target, t0) {
		t.Fatal("first Touch must open a session")
	}
	if tr.Touch("u1", "ann", target, t0.Add(time.Minute)) {
		t.Fatal("second Touch must not report a new session")
	}
	if tr.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tr.Len())
	}

	active := tr.Active()
	if len(active) != 1 || active[0].LastSeen != t0.Add(time.Minute) {
		t.Fatalf("Active = %+v, want refreshed LastSeen", active)
	}
}

func TestTouchRefreshesIdentity(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	t0 := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	tr.Touch("u1", "old-name", transport.ChatTarget{ChatID: 1}, t0)
	tr.Touch("u1", "new-name", transport.ChatTarget{ChatID: 2}, t0.Add(time.Second))

	active := tr.Active()
	if active[0].Username != "new-name" || active[0].Target.ChatID != 2 {
		t.Fatalf("Active = %+v, want refreshed username and target", active[0])
	}
}

func TestIdleBefore(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	t0 := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	target := transport.ChatTarget{ChatID: 1}

	tr.Touch("stale", "a", target, t0)
	tr.Touch("fresh", "b", target, t0.Add(20*time.Minute))

	got := tr.IdleBefore(t0.Add(10 * time.Minute))
	if !reflect.DeepEqual(got, []string{"stale"}) {
		t.Fatalf("IdleBefore = %v, want [stale]", got)
	}
	if got := tr.IdleBefore(t0); len(got) != 0 {
		t.Fatalf("IdleBefore at t0 = %v, want empty (cutoff is exclusive)", got)
	}
}

func TestRemoveIfIdleBefore(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	t0 := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	target := transport.ChatTarget{ChatID: 1}

	tr.Touch("u1", "a", target, t0)

	// Activity since the idle scan keeps the session open.
	tr.Touch("u1", "a", target, t0.Add(5*time.Minute))
	if tr.RemoveIfIdleBefore("u1", t0.Add(time.Minute)) {
		t.Fatal("removed a session that was active again")
	}
	if tr.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tr.Len())
	}

	if !tr.RemoveIfIdleBefore("u1", t0.Add(10*time.Minute)) {
		t.Fatal("idle session not removed")
	}
	if tr.RemoveIfIdleBefore("u1", t0.Add(10*time.Minute)) {
		t.Fatal("second removal of an absent session reported true")
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	t0 := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	tr.Touch("u1", "a", transport.ChatTarget{ChatID: 1}, t0)
	tr.Remove("u1")
	tr.Remove("ghost")
	if tr.Len() != 0 {
		t.Fatalf("Len = %d, want 0", tr.Len())
	}
	if !tr.Touch("u1", "a", transport.ChatTarget{ChatID: 1}, t0) {
		t.Fatal("Touch after Remove must open a new session")
	}
}

func TestActiveSorted(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	t0 := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	target := transport.ChatTarget{ChatID: 1}

	for _, id := range []string{"c", "a", "b"} {
		tr.Touch(id, id, target, t0)
	}
	active := tr.Active()
	ids := make([]string, len(active))
	for i, info := range active {
		ids[i] = info.UserID
	}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Fatalf("Active order = %v", ids)
	}
}
