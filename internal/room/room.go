// Package room implements the Room Runtime (spec.md §4.5): per-match
// session bookkeeping, input admission, the self-correcting tick
// scheduler, delta/snapshot broadcast, and match termination, grounded on
// the teacher's Hub (hub.go) and Loop (internal/sim/loop.go) patterns.
package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"usion-arena/server/internal/delta"
	"usion-arena/server/internal/netproto"
	"usion-arena/server/internal/sim"
	"usion-arena/server/internal/stats"
	"usion-arena/server/internal/telemetry"
	"usion-arena/server/internal/webhook"
)

// MinParticipants is the number of joined users required to start, and
// below which a running match is torn down, per spec.md's two-player
// scope (§1 Non-goals: "more than two participants per room").
const MinParticipants = 2

// MaxParticipants bounds the room's participant set.
const MaxParticipants = 2

// Deps are the room's external collaborators, injected so the room never
// reaches for a global.
type Deps struct {
	Logger                       telemetry.Logger
	Metrics                      telemetry.Metrics
	Webhook                      *webhook.Signer
	DeployRegion                 string
	SimHz                        int
	NetHz                        int
	FullSnapshotIntervalNetTicks int
	// OnEmpty is invoked once the room has zero sessions left, regardless
	// of running/finished state, so the registry can deregister it.
	OnEmpty func(roomID string)
}

// Metric key names, following the teacher's sim_command_buffer_* idiom of
// a snake_case counter/gauge name with a _total suffix for counters.
const (
	roomTicksTotalMetricKey          = "room_ticks_total"
	roomInputRejectedTotalMetricKey  = "room_input_rejected_total"
	roomWebhookFailureTotalMetricKey = "room_webhook_failure_total"
	roomSessionsConnectedMetricKey   = "room_sessions_connected"
)

// JoinResult is what upsertSession reports back to the gateway so it can
// build the joined / player_joined frames.
type JoinResult struct {
	PlayerIDs     []string
	WaitingFor    int
	AlreadyJoined bool
}

// RejectReason names why enqueueInput refused a payload.
type RejectReason string

const (
	RejectNone           RejectReason = ""
	RejectRoomNotRunning RejectReason = netproto.ReasonRoomNotRunning
	RejectStaleInput     RejectReason = netproto.ReasonStaleInput
	RejectMatchFinished  RejectReason = netproto.ReasonMatchFinished
)

// Room owns one match's entire lifecycle.
type Room struct {
	id   string
	deps Deps

	mu             sync.Mutex
	sessions       map[string]*session
	userSessions   map[string]string
	participants   []string
	inputs         map[string]*inputSlot
	matchSessionID string

	world        *sim.World
	prevNetState *delta.State
	running      bool
	finished     bool
	simTick      uint64
	netTick      uint64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates an empty room. Its World is populated once maybeStart runs.
func New(id string, deps Deps) *Room {
	if deps.SimHz <= 0 {
		deps.SimHz = 60
	}
	if deps.NetHz <= 0 {
		deps.NetHz = 60
	}
	if deps.FullSnapshotIntervalNetTicks <= 0 {
		deps.FullSnapshotIntervalNetTicks = deps.NetHz
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NopMetrics()
	}
	return &Room{
		id:           id,
		deps:         deps,
		sessions:     make(map[string]*session),
		userSessions: make(map[string]string),
		inputs:       make(map[string]*inputSlot),
		stopCh:       make(chan struct{}),
	}
}

// ID returns the room's identifier.
func (r *Room) ID() string { return r.id }

func (r *Room) deployProfile() netproto.DeployProfile {
	return netproto.DeployProfile{DeployRegion: r.deps.DeployRegion, SimHz: r.deps.SimHz, NetHz: r.deps.NetHz}
}

// UpsertSession implements spec.md §4.6's join dispatch: a repeat join
// with the same session id is an idempotent no-op that returns the
// current snapshot; a new session id registers the user, assigns a
// participant slot if the user hasn't joined before, and is broadcast.
func (r *Room) UpsertSession(sessionID, userID string, sender Sender) (JoinResult, error) {
	r.mu.Lock()
	if _, ok := r.sessions[sessionID]; ok {
		result := JoinResult{
			PlayerIDs:     append([]string(nil), r.participants...),
			WaitingFor:    MinParticipants - len(r.participants),
			AlreadyJoined: true,
		}
		r.mu.Unlock()
		return result, nil
	}

	isKnownUser := false
	for _, id := range r.participants {
		if id == userID {
			isKnownUser = true
			break
		}
	}
	if !isKnownUser && len(r.participants) >= MaxParticipants {
		r.mu.Unlock()
		return JoinResult{}, fmt.Errorf("room %s: full", r.id)
	}

	r.sessions[sessionID] = &session{id: sessionID, userID: userID, sender: sender}
	r.userSessions[userID] = sessionID
	if r.matchSessionID == "" {
		r.matchSessionID = sessionID
	}
	if !isKnownUser {
		r.participants = append(r.participants, userID)
		r.inputs[userID] = &inputSlot{}
	}

	result := JoinResult{
		PlayerIDs:  append([]string(nil), r.participants...),
		WaitingFor: MinParticipants - len(r.participants),
	}
	participants := append([]string(nil), r.participants...)
	r.deps.Metrics.Store(roomSessionsConnectedMetricKey, uint64(len(r.sessions)))
	r.mu.Unlock()

	r.broadcast(netproto.TypePlayerJoined, netproto.PlayerJoinedPayload{
		RoomID: r.id, PlayerID: userID, PlayerIDs: participants, WaitingFor: result.WaitingFor,
	})

	return result, nil
}

// RemoveSession implements spec.md §4.5.6: departing a session may drop
// the participant count below the minimum, in which case a running match
// ends immediately with reason player_disconnected.
func (r *Room) RemoveSession(sessionID string) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, sessionID)
	if r.userSessions[sess.userID] == sessionID {
		delete(r.userSessions, sess.userID)
	}

	remainingConnected := len(r.userSessions)
	wasRunning := r.running
	r.deps.Metrics.Store(roomSessionsConnectedMetricKey, uint64(len(r.sessions)))
	r.mu.Unlock()

	r.broadcast(netproto.TypePlayerLeft, netproto.PlayerLeftPayload{RoomID: r.id, PlayerID: sess.userID})

	if wasRunning && remainingConnected < MinParticipants {
		// terminateForDisconnect empties r.sessions via closeAllSessions, so
		// emptiness must be re-checked after it runs, not before.
		r.terminateForDisconnect()
	}

	r.mu.Lock()
	empty := len(r.sessions) == 0
	r.mu.Unlock()
	if empty && r.deps.OnEmpty != nil {
		r.deps.OnEmpty(r.id)
	}
}

// SessionCount reports how many sockets are currently bound to the room.
func (r *Room) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EnqueueInput implements spec.md §4.5.1's admission rules: stale and
// not-running rejections, monotonic sequence and ack tracking, and EMA
// latency smoothing folded into the stored lag-comp value.
func (r *Room) EnqueueInput(userID string, seq uint64, action netproto.ActionData, now time.Time) (RejectReason, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		r.deps.Metrics.Add(roomInputRejectedTotalMetricKey, 1)
		return RejectRoomNotRunning, 0
	}
	if r.finished {
		r.deps.Metrics.Add(roomInputRejectedTotalMetricKey, 1)
		return RejectMatchFinished, 0
	}

	slot, ok := r.inputs[userID]
	if !ok {
		slot = &inputSlot{}
		r.inputs[userID] = slot
	}
	if seq <= slot.lastSeq {
		r.deps.Metrics.Add(roomInputRejectedTotalMetricKey, 1)
		return RejectStaleInput, slot.lastSeq
	}

	slot.lastSeq = seq
	slot.ackSeq = seq

	lagComp := slot.lagCompMs
	if action.ClientSentAtMs > 0 {
		clientSent := time.UnixMilli(action.ClientSentAtMs)
		age := now.Sub(clientSent)
		if age < 0 {
			age = -age
		}
		// Only fold in a sample whose client_sent_at_ms is newer than the
		// last one accepted; a replayed or reordered timestamp must not
		// corrupt the smoothed value.
		if age <= staleClientSentTolerance && clientSent.After(slot.lastClientSent) {
			sample := clampLag(float64(now.Sub(clientSent).Milliseconds()))
			if slot.haveLagSample {
				lagComp = clampLag(latencyEMAOld*lagComp + latencyEMANew*sample)
			} else {
				lagComp = sample
				slot.haveLagSample = true
			}
			slot.lastClientSent = clientSent
		}
	}
	slot.lagCompMs = lagComp

	slot.turn = action.Turn
	slot.thrust = action.Thrust
	slot.fire = action.Fire
	slot.firePressed = action.FirePressed
	slot.fireSeq = action.FireSeq

	return RejectNone, 0
}

// ackSeqByPlayerLocked returns the last acknowledged sequence of every user
// with an input slot, for building ack_seq_by_player frames. The caller
// must hold r.mu.
func (r *Room) ackSeqByPlayerLocked() map[string]uint64 {
	out := make(map[string]uint64, len(r.inputs))
	for userID, slot := range r.inputs {
		out[userID] = slot.ackSeq
	}
	return out
}

// MaybeStart begins the match once the room has its full participant
// set and isn't already running or finished.
func (r *Room) MaybeStart(seed int64) {
	r.mu.Lock()
	if r.running || r.finished || len(r.participants) < MinParticipants {
		r.mu.Unlock()
		return
	}
	r.world = sim.Init(r.participants, seed)
	r.running = true
	participants := append([]string(nil), r.participants...)
	r.mu.Unlock()

	r.broadcast(netproto.TypeGameStart, netproto.GameStartPayload{
		RoomID: r.id, PlayerIDs: participants, DeployProfile: r.deployProfile(),
	})

	go r.run()
}

// run drives the fixed-step scheduler, self-correcting per spec.md
// §4.5.2: after each tick, the next firing is scheduled for
// max(0, period - elapsedSinceTickStart); measured dt is clamped to
// [period, 2*period].
func (r *Room) run() {
	period := time.Second / time.Duration(r.deps.SimHz)
	timer := time.NewTimer(period)
	defer timer.Stop()

	last := time.Now()
	for {
		select {
		case <-r.stopCh:
			return
		case <-timer.C:
			tickStart := time.Now()
			dt := tickStart.Sub(last)
			if dt < period {
				dt = period
			} else if dt > 2*period {
				dt = 2 * period
			}
			last = tickStart

			finished := r.tick(float64(dt.Milliseconds()))
			elapsed := time.Since(tickStart)
			next := period - elapsed
			if next < 0 {
				next = 0
			}
			if finished {
				return
			}
			timer.Reset(next)
		}
	}
}

// tick executes spec.md §4.5.3's tick body and returns true once the
// match has ended.
func (r *Room) tick(dtMs float64) bool {
	r.mu.Lock()
	world := r.world
	if world == nil {
		r.mu.Unlock()
		return true
	}

	for userID, slot := range r.inputs {
		sim.ApplyInput(world, userID, sim.InputSnapshot{
			Turn: slot.turn, Thrust: slot.thrust, Fire: slot.fire,
			FirePressed: slot.firePressed, FireSeq: slot.fireSeq, LagCompMs: slot.lagCompMs,
		})
		slot.firePressed = false
	}

	sim.Tick(world, dtMs)
	r.simTick = world.Tick
	r.deps.Metrics.Add(roomTicksTotalMetricKey, 1)

	result := sim.IsTerminal(world)

	ratio := r.deps.SimHz / r.deps.NetHz
	if ratio < 1 {
		ratio = 1
	}
	shouldEmit := world.Tick%uint64(ratio) == 0

	var ackSeqByPlayer map[string]uint64
	if shouldEmit {
		r.netTick++
		ackSeqByPlayer = r.ackSeqByPlayerLocked()
	}
	r.mu.Unlock()

	if shouldEmit {
		r.emitNetworkFrame(world, ackSeqByPlayer)
	}

	if result.Terminal {
		r.mu.Lock()
		r.finished = true
		r.mu.Unlock()
		go r.handleMatchEnd(result)
		return true
	}
	return false
}

func (r *Room) emitNetworkFrame(world *sim.World, ackSeqByPlayer map[string]uint64) {
	next := delta.Project(world)

	r.mu.Lock()
	prev := r.prevNetState
	fullDue := prev == nil || (r.deps.FullSnapshotIntervalNetTicks > 0 && r.netTick%uint64(r.deps.FullSnapshotIntervalNetTicks) == 0)
	r.prevNetState = &next
	simTick := r.simTick
	r.mu.Unlock()

	now := time.Now().UnixMilli()
	profile := r.deployProfile()

	if fullDue {
		r.broadcast(netproto.TypeStateSnapshot, netproto.StateSnapshotPayload{
			RoomID: r.id, ProtocolVersion: netproto.ProtocolVersion,
			ServerTs: now, ServerTick: simTick, AckSeqByPlayer: ackSeqByPlayer,
			FullState: next, DeployProfile: profile,
		})
		return
	}

	d := delta.Build(prev, next)
	r.broadcast(netproto.TypeStateDelta, netproto.StateDeltaPayload{
		RoomID: r.id, ProtocolVersion: netproto.ProtocolVersion,
		ServerTs: now, ServerTick: simTick, AckSeqByPlayer: ackSeqByPlayer,
		ChangedEntities: d.ChangedEntities, RemovedEntities: d.RemovedEntities, DeployProfile: profile,
	})
}

// handleMatchEnd implements spec.md §4.5.5: broadcast match_end, submit
// the signed webhook (failure is logged only), then stop the scheduler.
func (r *Room) handleMatchEnd(result sim.TerminalResult) {
	r.mu.Lock()
	world := r.world
	sessionID := r.matchSessionID
	participants := append([]string(nil), r.participants...)
	r.mu.Unlock()

	finalStats := stats.Final(world)
	r.broadcast(netproto.TypeMatchEnd, netproto.MatchEndPayload{
		RoomID: r.id, ProtocolVersion: netproto.ProtocolVersion,
		ServerTs: time.Now().UnixMilli(), ServerTick: result.FinalTick,
		WinnerIDs: result.WinnerIDs, Reason: string(result.Reason), FinalStats: finalStats,
	})

	if r.deps.Webhook != nil {
		statsAny := make(map[string]any, len(finalStats))
		for id, rec := range finalStats {
			statsAny[id] = rec
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_, err := r.deps.Webhook.Submit(ctx, webhook.ResultPayload{
			RoomID: r.id, SessionID: sessionID, WinnerIDs: result.WinnerIDs,
			Participants: participants, Reason: string(result.Reason),
			FinalTick: result.FinalTick, FinalStats: statsAny,
		})
		if err != nil {
			r.deps.Logger.Printf("room %s: webhook submission failed: %v", r.id, err)
			r.deps.Metrics.Add(roomWebhookFailureTotalMetricKey, 1)
		}
	}

	r.stop()
}

// terminateForDisconnect implements the surviving half of spec.md
// §4.5.6: a running match loses a participant and must end immediately.
func (r *Room) terminateForDisconnect() {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	var survivors []string
	for userID := range r.userSessions {
		survivors = append(survivors, userID)
	}
	world := r.world
	finalTick := uint64(0)
	if world != nil {
		finalTick = world.Tick
	}
	r.mu.Unlock()

	finalStats := map[string]stats.Record{}
	if world != nil {
		finalStats = stats.Final(world)
	}
	r.broadcast(netproto.TypeMatchEnd, netproto.MatchEndPayload{
		RoomID: r.id, ProtocolVersion: netproto.ProtocolVersion,
		ServerTs: time.Now().UnixMilli(), ServerTick: finalTick,
		WinnerIDs: survivors, Reason: string(sim.ReasonPlayerDisconnected), FinalStats: finalStats,
	})

	r.closeAllSessions(4001)
	r.stop()
}

// broadcast wraps payload in the standard {type, payload} envelope and
// writes it to every session currently in the table, per spec.md §4.5.4.
// The envelope is not pre-serialized: each session's Sender encodes it
// separately. A failed write is logged and the remaining sessions still
// receive the frame.
func (r *Room) broadcast(msgType string, payload any) {
	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.Unlock()

	envelope := struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}{Type: msgType, Payload: payload}

	for _, sess := range sessions {
		if err := sess.send(envelope); err != nil {
			r.deps.Logger.Printf("room %s: broadcast to session %s failed: %v", r.id, sess.id, err)
		}
	}
}

func (r *Room) closeAllSessions(code int) {
	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]*session)
	r.userSessions = make(map[string]string)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.sender.CloseWithCode(code, "match ended")
	}
}

func (r *Room) stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Pong builds the payload for a ping response, per spec.md §4.6.
func (r *Room) Pong() netproto.PongPayload {
	r.mu.Lock()
	tick := r.simTick
	r.mu.Unlock()
	return netproto.PongPayload{RoomID: r.id, ServerTick: tick, ServerTs: time.Now().UnixMilli(), DeployProfile: r.deployProfile()}
}
