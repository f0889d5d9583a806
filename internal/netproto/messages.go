// Package netproto defines the wire envelope and message payloads
// exchanged over the arena's websocket endpoint, per spec.md §6.
package netproto

import "encoding/json"

// ProtocolVersion is the protocol_version value stamped on every outbound
// frame and expected (optionally) on inbound ones.
const ProtocolVersion = "2"

// Inbound message types.
const (
	TypeJoin  = "join"
	TypeInput = "input"
	TypePing  = "ping"
	TypeLeave = "leave"
)

// Outbound message types.
const (
	TypeJoined        = "joined"
	TypePlayerJoined  = "player_joined"
	TypePlayerLeft    = "player_left"
	TypeGameStart     = "game_start"
	TypeStateSnapshot = "state_snapshot"
	TypeStateDelta    = "state_delta"
	TypePong          = "pong"
	TypeMatchEnd      = "match_end"
	TypeError         = "error"
)

// Error codes carried in an error frame's payload.code.
const (
	ErrNoToken       = "NO_TOKEN"
	ErrInvalidToken  = "INVALID_TOKEN"
	ErrInputRejected = "INPUT_REJECTED"
)

// Input-rejection reasons carried in an error frame's payload.reason.
const (
	ReasonStaleInput     = "STALE_INPUT"
	ReasonRoomNotRunning = "ROOM_NOT_RUNNING"
	ReasonMatchFinished  = "MATCH_FINISHED"
)

// Inbound is the envelope every client-to-server frame is decoded into.
// Action data for "input" frames lives at Payload.action_data, falling
// back to the payload itself when that key is absent (spec.md §4.6).
type Inbound struct {
	Type            string          `json:"type"`
	RoomID          string          `json:"room_id,omitempty"`
	Seq             uint64          `json:"seq"`
	Ts              int64           `json:"ts"`
	SessionID       string          `json:"session_id,omitempty"`
	ProtocolVersion string          `json:"protocol_version,omitempty"`
	Payload         json.RawMessage `json:"payload"`
}

// InputPayload is the decoded body of an "input" frame.
type InputPayload struct {
	Seq        uint64          `json:"seq"`
	Payload    json.RawMessage `json:"payload"`
	ActionData *ActionData     `json:"-"`
}

// ActionData is the client's control snapshot for one tick.
type ActionData struct {
	Turn           float64 `json:"turn"`
	Thrust         float64 `json:"thrust"`
	Fire           bool    `json:"fire"`
	FirePressed    bool    `json:"fire_pressed"`
	FireSeq        uint64  `json:"fire_seq"`
	LagCompMs      float64 `json:"lag_comp_ms"`
	ClientSentAtMs int64   `json:"client_sent_at_ms"`
}

// wrapper mirrors the outbound {type, payload} envelope every server
// message uses, per spec.md §6.
type wrapper struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Envelope marshals payload under the standard {type, payload} shape.
func Envelope(msgType string, payload any) ([]byte, error) {
	return json.Marshal(wrapper{Type: msgType, Payload: payload})
}

// DeployProfile is embedded in every outbound frame that carries one.
type DeployProfile struct {
	DeployRegion string `json:"deploy_region"`
	SimHz        int    `json:"sim_hz"`
	NetHz        int    `json:"net_hz"`
}

type JoinedPayload struct {
	RoomID      string   `json:"room_id"`
	PlayerID    string   `json:"player_id"`
	PlayerIDs   []string `json:"player_ids"`
	WaitingFor  int      `json:"waiting_for"`
	DeployProfile
}

type PlayerJoinedPayload struct {
	RoomID     string   `json:"room_id"`
	PlayerID   string   `json:"player_id"`
	PlayerIDs  []string `json:"player_ids"`
	WaitingFor int      `json:"waiting_for"`
}

type PlayerLeftPayload struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
}

type GameStartPayload struct {
	RoomID    string   `json:"room_id"`
	PlayerIDs []string `json:"player_ids"`
	DeployProfile
}

type StateSnapshotPayload struct {
	RoomID          string            `json:"room_id"`
	ProtocolVersion string            `json:"protocol_version"`
	ServerTs        int64             `json:"server_ts"`
	ServerTick      uint64            `json:"server_tick"`
	AckSeqByPlayer  map[string]uint64 `json:"ack_seq_by_player"`
	FullState       any               `json:"full_state"`
	DeployProfile
}

type StateDeltaPayload struct {
	RoomID          string            `json:"room_id"`
	ProtocolVersion string            `json:"protocol_version"`
	ServerTs        int64             `json:"server_ts"`
	ServerTick      uint64            `json:"server_tick"`
	AckSeqByPlayer  map[string]uint64 `json:"ack_seq_by_player"`
	ChangedEntities any               `json:"changed_entities"`
	RemovedEntities any               `json:"removed_entities"`
	DeployProfile
}

type PongPayload struct {
	RoomID     string `json:"room_id"`
	ServerTick uint64 `json:"server_tick"`
	ServerTs   int64  `json:"server_ts"`
	DeployProfile
}

type MatchEndPayload struct {
	RoomID          string   `json:"room_id"`
	ProtocolVersion string   `json:"protocol_version"`
	ServerTs        int64    `json:"server_ts"`
	ServerTick      uint64   `json:"server_tick"`
	WinnerIDs       []string `json:"winner_ids"`
	Reason          string   `json:"reason"`
	FinalStats      any      `json:"final_stats"`
}

type ErrorPayload struct {
	Code       string `json:"code"`
	Message    string `json:"message,omitempty"`
	Reason     string `json:"reason,omitempty"`
	ExpectedGt uint64 `json:"expectedGt,omitempty"`
}
