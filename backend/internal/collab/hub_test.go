package collab

import (
	"slices"
	"testing"

	"go.uber.org/zap"
)

func newHubSession(h *Hub, id string) (*Session, *recorder) {
	r := &recorder{}
	s := newSession(id, r)
	h.Register(s)
	return s, r
}

func TestHub_JoinIdempotent(t *testing.T) {
	h := NewHub(zap.NewNop())
	newHubSession(h, "a")

	if !h.Join("n1", "a") || !h.Join("n1", "a") {
		t.Fatal("Join returned false")
	}
	if m := h.Members("n1"); len(m) != 1 {
		t.Fatalf("members = %v", m)
	}
	if h.Join("n1", "ghost") {
		t.Fatal("unregistered session joined")
	}
}

func TestHub_BroadcastExcludingSender(t *testing.T) {
	h := NewHub(zap.NewNop())
	_, ra := newHubSession(h, "a")
	_, rb := newHubSession(h, "b")
	_, rc := newHubSession(h, "c")
	h.Join("n1", "a")
	h.Join("n1", "b")
	h.Join("n2", "c")

	if n := h.BroadcastExcluding("n1", "a", EventContentUpdate, ContentUpdate{Content: "x", NoteID: "n1"}); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if ra.count() != 0 || rb.count() != 1 || rc.count() != 0 {
		t.Fatalf("counts a=%d b=%d c=%d", ra.count(), rb.count(), rc.count())
	}
}

func TestHub_BroadcastGlobal(t *testing.T) {
	h := NewHub(zap.NewNop())
	_, ra := newHubSession(h, "a")
	_, rb := newHubSession(h, "b")
	h.Join("n1", "a")

	if n := h.BroadcastGlobal(EventUserLeft, "z"); n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}
	if ra.count() != 1 || rb.count() != 1 {
		t.Fatal("global broadcast missed a session")
	}
}

func TestHub_LeaveAndGC(t *testing.T) {
	h := NewHub(zap.NewNop())
	newHubSession(h, "a")
	newHubSession(h, "b")
	h.Join("n1", "a")
	h.Join("n1", "b")

	if room := h.Leave("a"); room != "n1" {
		t.Fatalf("Leave = %q", room)
	}
	if m := h.Members("n1"); !slices.Equal(m, []string{"b"}) {
		t.Fatalf("members = %v", m)
	}
	if room := h.Unregister("b"); room != "n1" {
		t.Fatalf("Unregister = %q", room)
	}
	h.mu.RLock()
	_, ok := h.rooms["n1"]
	h.mu.RUnlock()
	if ok {
		t.Fatal("empty room not removed")
	}
	if h.SendTo("b", EventUserLeft, "b") {
		t.Fatal("SendTo reached an unregistered session")
	}
}

func TestHub_JoinMovesRoom(t *testing.T) {
	h := NewHub(zap.NewNop())
	newHubSession(h, "a")
	h.Join("n1", "a")
	h.Join("n2", "a")

	if len(h.Members("n1")) != 0 || len(h.Members("n2")) != 1 {
		t.Fatalf("n1=%v n2=%v", h.Members("n1"), h.Members("n2"))
	}
}

func TestHub_FullQueueDropsForSlowSession(t *testing.T) {
	h := NewHub(zap.NewNop())
	_, slow := newHubSession(h, "slow")
	_, fast := newHubSession(h, "fast")
	slow.full = true
	h.Join("n1", "slow")
	h.Join("n1", "fast")

	if n := h.BroadcastRoom("n1", EventUserLeft, "x"); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if fast.count() != 1 {
		t.Fatal("fast session starved by slow one")
	}
}
