// Package room implements the per-room broadcast hub, its client registry,
// and the process-wide registry that creates and reaps hubs.
package room

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rolecall/rolecall/internal/game/board"
	"github.com/rolecall/rolecall/internal/game/protocol"
)

// ErrAlreadyConnected indicates a join for a username that already holds a
// seat in the room.
var ErrAlreadyConnected = errors.New("user already connected")

// Hub is the authoritative actor for one room: membership, authorization,
// ordering, and broadcast. A single mutex serializes each authorize, apply,
// and broadcast step, so all clients observe board mutations in the same
// order.
type Hub struct {
	roomToken string
	host      UserInfo
	logger    *zap.Logger

	mu         sync.Mutex
	board      *board.Board
	clients    map[string]hubClient // keyed by username
	emptySince time.Time            // zero while the room is occupied
}

type hubClient struct {
	user   UserInfo
	outbox *Outbox
}

// NewHub creates a hub for the given room. The creating user supplies the
// room's host context: their username becomes the default controller the
// board stamps onto new entities.
func NewHub(roomToken string, creator UserInfo, logger *zap.Logger) *Hub {
	return &Hub{
		roomToken:  roomToken,
		host:       creator,
		logger:     logger.With(zap.String("room", roomToken)),
		board:      board.New(creator.Username),
		clients:    make(map[string]hubClient),
		emptySince: time.Now(),
	}
}

// Token returns the room token this hub serves.
func (h *Hub) Token() string {
	return h.roomToken
}

// Join registers a user's outbox with the hub.
//
// The duplicate check and the insert happen under one lock acquisition, so
// two racing joins for the same username cannot both succeed. Before the
// seat becomes visible the newcomer is seeded with a Connect message per
// existing client and the full board replay; afterwards a Connect for the
// newcomer is broadcast to everyone, newcomer included.
func (h *Hub) Join(user UserInfo, out *Outbox) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, taken := h.clients[user.Username]; taken {
		return ErrAlreadyConnected
	}

	for _, c := range h.clients {
		h.send(out, &protocol.Connect{
			Username: c.user.Username,
			Host:     c.user.IsHost,
			HostID:   h.host.ID,
		})
	}
	for _, msg := range h.board.Replay() {
		h.send(out, msg)
	}

	h.clients[user.Username] = hubClient{user: user, outbox: out}
	h.emptySince = time.Time{}
	h.logger.Info("client joined",
		zap.String("username", user.Username),
		zap.Bool("host", user.IsHost),
		zap.Int("clients", len(h.clients)),
	)

	h.broadcast(&protocol.Connect{
		Username: user.Username,
		Host:     user.IsHost,
		HostID:   h.host.ID,
	})
	return nil
}

// Leave removes a user's seat and tells the remaining clients. When the last
// seat empties, the idle clock starts for the reaper. Leaving a room the
// user is not in is a no-op.
func (h *Hub) Leave(user UserInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[user.Username]; !ok {
		return
	}
	delete(h.clients, user.Username)
	h.logger.Info("client left",
		zap.String("username", user.Username),
		zap.Int("clients", len(h.clients)),
	)

	h.broadcast(&protocol.Disconnect{Username: user.Username})

	if len(h.clients) == 0 {
		h.emptySince = time.Now()
	}
}

// Dispatch decodes a raw inbound frame from sender, authorizes it, applies
// it to the board, and broadcasts the (possibly server-stamped) result.
//
// Undecodable frames and unauthorized messages are dropped and logged; a
// board rejection is dropped silently. None of these tear down the sender's
// connection.
func (h *Hub) Dispatch(frame []byte, sender UserInfo) {
	msg, err := protocol.Decode(frame)
	if err != nil {
		h.logger.Warn("dropping undecodable frame",
			zap.String("username", sender.Username),
			zap.Error(err),
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.authorized(msg, sender) {
		h.logger.Warn("dropping unauthorized message",
			zap.String("username", sender.Username),
			zap.String("type", string(msg.Type())),
		)
		return
	}

	if !h.board.Apply(msg) {
		// Normal game flow: e.g. a placement on an occupied cell.
		return
	}

	h.broadcast(msg)
}

// authorized reports whether sender may issue msg. Board edits are
// host-only; movement is allowed for the host or the token's current
// controller; session events are server-originated and always pass.
//
// Caller must hold h.mu.
func (h *Hub) authorized(msg protocol.Message, sender UserInfo) bool {
	switch m := msg.(type) {
	case *protocol.PlaceToken, *protocol.DeleteToken, *protocol.PlaceObj,
		*protocol.DeleteObj, *protocol.SetController:
		return sender.IsHost
	case *protocol.Movement:
		if sender.IsHost {
			return true
		}
		controller, ok := h.board.Controller(m.TokenID)
		return ok && controller == sender.Username
	default:
		return true
	}
}

// broadcast encodes msg once and pushes it to every seat. A full or closed
// outbox only degrades that client; the rest of the room still receives the
// message. Caller must hold h.mu.
func (h *Hub) broadcast(msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		h.logger.Error("encoding broadcast", zap.String("type", string(msg.Type())), zap.Error(err))
		return
	}
	for _, c := range h.clients {
		if err := c.outbox.Push(frame); err != nil {
			h.logger.Warn("dropping frame for client",
				zap.String("username", c.user.Username),
				zap.Error(err),
			)
		}
	}
}

// send delivers one message to a single outbox, logging on failure.
// Caller must hold h.mu.
func (h *Hub) send(out *Outbox, msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		h.logger.Error("encoding message", zap.String("type", string(msg.Type())), zap.Error(err))
		return
	}
	if err := out.Push(frame); err != nil {
		h.logger.Warn("dropping frame for client",
			zap.String("username", out.Username()),
			zap.Error(err),
		)
	}
}

// ClientCount returns the number of occupied seats.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// idleFor reports how long the room has been empty as of now. Occupied
// rooms are never idle.
func (h *Hub) idleFor(now time.Time) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) > 0 || h.emptySince.IsZero() {
		return 0, false
	}
	return now.Sub(h.emptySince), true
}
