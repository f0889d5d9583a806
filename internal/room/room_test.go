package room

import (
	"sync"
	"testing"
	"time"

	"usion-arena/server/internal/netproto"
)

type fakeSender struct {
	mu     sync.Mutex
	frames []any
	closed bool
}

func (f *fakeSender) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, v)
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSender) CloseWithCode(code int, reason string) error {
	return f.Close()
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// sawType reports whether any received frame has the given message type.
func (f *fakeSender) sawType(msgType string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, frame := range f.frames {
		if env, ok := frame.(struct {
			Type    string `json:"type"`
			Payload any    `json:"payload"`
		}); ok && env.Type == msgType {
			return true
		}
	}
	return false
}

func newTestRoom() *Room {
	return New("room-1", Deps{SimHz: 60, NetHz: 60, FullSnapshotIntervalNetTicks: 60})
}

func TestUpsertSessionIsIdempotentPerSessionID(t *testing.T) {
	r := newTestRoom()
	senderA := &fakeSender{}

	first, err := r.UpsertSession("sess-1", "user-a", senderA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.AlreadyJoined {
		t.Fatalf("expected first join to not be marked already-joined")
	}

	second, err := r.UpsertSession("sess-1", "user-a", senderA)
	if err != nil {
		t.Fatalf("unexpected error on repeat join: %v", err)
	}
	if !second.AlreadyJoined {
		t.Fatalf("expected repeat join with same session id to be idempotent")
	}
	if r.SessionCount() != 1 {
		t.Fatalf("expected exactly one session, got %d", r.SessionCount())
	}
}

func TestUpsertSessionRejectsThirdParticipant(t *testing.T) {
	r := newTestRoom()
	if _, err := r.UpsertSession("sess-a", "user-a", &fakeSender{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.UpsertSession("sess-b", "user-b", &fakeSender{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.UpsertSession("sess-c", "user-c", &fakeSender{}); err == nil {
		t.Fatalf("expected a third distinct participant to be rejected")
	}
}

func TestEnqueueInputRejectsWhenNotRunning(t *testing.T) {
	r := newTestRoom()
	r.UpsertSession("sess-a", "user-a", &fakeSender{})

	reason, _ := r.EnqueueInput("user-a", 1, netproto.ActionData{}, time.Now())
	if reason != RejectRoomNotRunning {
		t.Fatalf("expected RoomNotRunning, got %q", reason)
	}
}

func TestEnqueueInputRejectsStaleSequence(t *testing.T) {
	r := newTestRoom()
	r.UpsertSession("sess-a", "user-a", &fakeSender{})
	r.UpsertSession("sess-b", "user-b", &fakeSender{})
	r.MaybeStart(1)
	defer r.stop()

	if reason, _ := r.EnqueueInput("user-a", 5, netproto.ActionData{}, time.Now()); reason != RejectNone {
		t.Fatalf("expected seq 5 to be accepted, got reject reason %q", reason)
	}
	reason, expectedGt := r.EnqueueInput("user-a", 5, netproto.ActionData{}, time.Now())
	if reason != RejectStaleInput {
		t.Fatalf("expected StaleInput on repeated seq, got %q", reason)
	}
	if expectedGt != 5 {
		t.Fatalf("expected expectedGt of 5, got %d", expectedGt)
	}
}

func TestMaybeStartBroadcastsGameStartOnceBothJoin(t *testing.T) {
	r := newTestRoom()
	senderA := &fakeSender{}
	senderB := &fakeSender{}
	r.UpsertSession("sess-a", "user-a", senderA)
	r.UpsertSession("sess-b", "user-b", senderB)

	r.MaybeStart(42)
	defer r.stop()

	time.Sleep(10 * time.Millisecond)

	if !senderA.sawType(netproto.TypeGameStart) || !senderB.sawType(netproto.TypeGameStart) {
		t.Fatalf("expected both sessions to receive a game_start broadcast")
	}
}

func TestRemoveSessionBelowMinimumEndsRunningMatch(t *testing.T) {
	r := newTestRoom()
	senderA := &fakeSender{}
	senderB := &fakeSender{}
	r.UpsertSession("sess-a", "user-a", senderA)
	r.UpsertSession("sess-b", "user-b", senderB)
	r.MaybeStart(7)

	time.Sleep(20 * time.Millisecond)
	r.RemoveSession("sess-b")
	time.Sleep(20 * time.Millisecond)

	foundMatchEnd := false
	for _, f := range senderA.frames {
		if env, ok := f.(struct {
			Type    string `json:"type"`
			Payload any    `json:"payload"`
		}); ok && env.Type == netproto.TypeMatchEnd {
			foundMatchEnd = true
		}
	}
	if !foundMatchEnd {
		t.Fatalf("expected a match_end frame after dropping below minimum participants")
	}
}

func TestRegistryDeregistersRoomAfterMidMatchDisconnect(t *testing.T) {
	reg := NewRegistry(func(id string) *Room {
		return New(id, Deps{SimHz: 60, NetHz: 60, FullSnapshotIntervalNetTicks: 60})
	})

	r := reg.GetOrCreate("room-1")
	senderA := &fakeSender{}
	senderB := &fakeSender{}
	r.UpsertSession("sess-a", "user-a", senderA)
	r.UpsertSession("sess-b", "user-b", senderB)
	r.MaybeStart(7)

	time.Sleep(20 * time.Millisecond)
	r.RemoveSession("sess-b")
	time.Sleep(20 * time.Millisecond)

	if _, ok := reg.Get("room-1"); ok {
		t.Fatalf("expected room-1 to be deregistered after the last remaining session disconnected mid-match")
	}
	if got := reg.Len(); got != 0 {
		t.Fatalf("expected registry to be empty, got %d rooms", got)
	}
}
