package room

import (
	"sync"
	"time"
)

// Sender is the minimal socket-write capability a session needs. The
// gateway supplies the concrete websocket implementation.
type Sender interface {
	WriteJSON(v any) error
	Close() error
	CloseWithCode(code int, reason string) error
}

// session is one connected socket bound to a participant.
type session struct {
	id     string
	userID string
	sender Sender

	mu sync.Mutex
}

func (s *session) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sender.WriteJSON(v)
}

// inputSlot is the latest-wins input record kept per user, per
// spec.md §4.5.1: a single overwritten slot, never a queue.
type inputSlot struct {
	turn           float64
	thrust         float64
	fire           bool
	firePressed    bool
	fireSeq        uint64
	lagCompMs      float64
	lastSeq        uint64
	ackSeq         uint64
	haveLagSample  bool
	lastClientSent time.Time
}

const (
	latencyEMAOld            = 0.8
	latencyEMANew            = 0.2
	maxLagCompMs             = 120.0
	minLagCompMs             = 0.0
	staleClientSentTolerance = 2 * time.Second
)

func clampLag(v float64) float64 {
	if v < minLagCompMs {
		return minLagCompMs
	}
	if v > maxLagCompMs {
		return maxLagCompMs
	}
	return v
}
