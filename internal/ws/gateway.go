// Package ws implements the Connection Gateway (spec.md §4.6): socket
// upgrade on exactly "/ws", token verification with pre-auth frame
// buffering, and dispatch by message type into the room runtime.
// Grounded on the teacher's internal/net/ws handler (upgrade, per-socket
// read loop) generalized to the arena's auth-gated join/input/ping/leave
// protocol.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"usion-arena/server/internal/auth"
	"usion-arena/server/internal/netproto"
	"usion-arena/server/internal/room"
	"usion-arena/server/internal/sim"
	"usion-arena/server/internal/telemetry"
)

// Config tunes the gateway's expected token audience and logging.
type Config struct {
	Logger    telemetry.Logger
	ServiceID string
}

// Gateway upgrades and dispatches a single websocket endpoint.
type Gateway struct {
	verifier *auth.Verifier
	registry *room.Registry
	cfg      Config
	upgrader websocket.Upgrader
}

// NewGateway wires a Gateway against a token verifier and room registry.
func NewGateway(verifier *auth.Verifier, registry *room.Registry, cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	return &Gateway{
		verifier: verifier,
		registry: registry,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and drives the connection's lifetime.
// Callers must mount this at exactly "/ws"; every other path should
// never reach here (spec.md §4.6's "other paths rejected with 404").
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.cfg.Logger.Printf("ws: upgrade failed: %v", err)
		return
	}
	sender := &connSender{conn: conn}

	if token == "" {
		sender.WriteJSON(errorEnvelope(netproto.ErrNoToken, ""))
		sender.writeClose(websocket.ClosePolicyViolation, "no token")
		return
	}

	type verifyResult struct {
		claims auth.Claims
		err    error
	}
	resultCh := make(chan verifyResult, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		claims, err := g.verifier.Verify(ctx, token, auth.Options{ExpectedServiceID: g.cfg.ServiceID})
		resultCh <- verifyResult{claims, err}
	}()

	frameCh := make(chan []byte, 32)
	go func() {
		defer close(frameCh)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frameCh <- raw
		}
	}()

	var (
		authDone bool
		claims   auth.Claims
		buffer   []netproto.Inbound
		bound    *boundSession
	)

	defer func() {
		if bound != nil {
			bound.room.RemoveSession(bound.sessionID)
		}
	}()

	for {
		select {
		case res, ok := <-resultCh:
			if !ok {
				resultCh = nil
				continue
			}
			resultCh = nil
			authDone = true
			if res.err != nil {
				sender.WriteJSON(errorEnvelope(netproto.ErrInvalidToken, res.err.Error()))
				sender.writeClose(websocket.ClosePolicyViolation, "invalid token")
				return
			}
			claims = res.claims
			bound = &boundSession{
				sessionID: claims.SessionID,
				userID:    claims.Subject,
				roomID:    claims.RoomID,
				sender:    sender,
				registry:  g.registry,
			}
			for _, msg := range buffer {
				g.dispatch(bound, msg)
			}
			buffer = nil

		case raw, ok := <-frameCh:
			if !ok {
				return
			}
			var msg netproto.Inbound
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			if !authDone {
				buffer = append(buffer, msg)
				continue
			}
			g.dispatch(bound, msg)
		}
	}
}

// boundSession is the gateway's view of one authenticated connection:
// its identity and a lazily-resolved room handle.
type boundSession struct {
	sessionID string
	userID    string
	roomID    string
	sender    *connSender
	registry  *room.Registry
	room      *room.Room
}

func (g *Gateway) dispatch(b *boundSession, msg netproto.Inbound) {
	switch msg.Type {
	case netproto.TypeJoin:
		g.handleJoin(b)
	case netproto.TypeInput:
		g.handleInput(b, msg)
	case netproto.TypePing:
		g.handlePing(b)
	case netproto.TypeLeave:
		g.handleLeave(b)
	}
}

func (g *Gateway) handleJoin(b *boundSession) {
	r := b.registry.GetOrCreate(b.roomID)
	b.room = r

	result, err := r.UpsertSession(b.sessionID, b.userID, b.sender)
	if err != nil {
		b.sender.WriteJSON(errorEnvelope(netproto.ErrInvalidToken, err.Error()))
		return
	}

	b.sender.WriteJSON(envelope(netproto.TypeJoined, netproto.JoinedPayload{
		RoomID: b.roomID, PlayerID: b.userID, PlayerIDs: result.PlayerIDs,
		WaitingFor: result.WaitingFor,
	}))

	r.MaybeStart(sim.DeriveSeed(b.roomID))
}

func (g *Gateway) handleInput(b *boundSession, msg netproto.Inbound) {
	if b.room == nil {
		return
	}
	var payload netproto.InputPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}
	action := decodeActionData(payload)

	reason, expectedGt := b.room.EnqueueInput(b.userID, payload.Seq, action, time.Now())
	if reason != room.RejectNone {
		b.sender.WriteJSON(envelope(netproto.TypeError, netproto.ErrorPayload{
			Code: netproto.ErrInputRejected, Reason: string(reason), ExpectedGt: expectedGt,
		}))
	}
}

func (g *Gateway) handlePing(b *boundSession) {
	if b.room == nil {
		return
	}
	b.sender.WriteJSON(envelope(netproto.TypePong, b.room.Pong()))
}

func (g *Gateway) handleLeave(b *boundSession) {
	if b.room == nil {
		return
	}
	b.room.RemoveSession(b.sessionID)
	b.room = nil
}

// decodeActionData extracts the action payload from payload.action_data,
// falling back to the payload body itself, per spec.md §4.6.
func decodeActionData(payload netproto.InputPayload) netproto.ActionData {
	var withAction struct {
		ActionData *netproto.ActionData `json:"action_data"`
	}
	if err := json.Unmarshal(payload.Payload, &withAction); err == nil && withAction.ActionData != nil {
		return *withAction.ActionData
	}
	var direct netproto.ActionData
	json.Unmarshal(payload.Payload, &direct)
	return direct
}

func envelope(msgType string, payload any) any {
	return struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}{Type: msgType, Payload: payload}
}

func errorEnvelope(code, message string) any {
	return envelope(netproto.TypeError, netproto.ErrorPayload{Code: code, Message: message})
}
