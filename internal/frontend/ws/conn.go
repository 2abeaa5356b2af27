package ws

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rolecall/rolecall/internal/config"
	"github.com/rolecall/rolecall/internal/directory"
	"github.com/rolecall/rolecall/internal/game/protocol"
	"github.com/rolecall/rolecall/internal/game/room"
)

// ErrMalformedHandshake indicates a client that deviated from the two-frame
// handshake (binary frame, early close, or read failure).
var ErrMalformedHandshake = errors.New("malformed handshake")

// session owns one client socket through its whole lifecycle: handshake,
// authorization, the paired read/write pumps, and teardown.
type session struct {
	sock     *websocket.Conn
	cfg      config.SessionConfig
	dir      directory.Directory
	registry *room.Registry
	logger   *zap.Logger
}

func newSession(sock *websocket.Conn, cfg config.SessionConfig, dir directory.Directory, registry *room.Registry, logger *zap.Logger) *session {
	return &session{
		sock:     sock,
		cfg:      cfg,
		dir:      dir,
		registry: registry,
		logger: logger.With(
			zap.String("conn", uuid.NewString()),
			zap.String("remote_addr", sock.RemoteAddr().String()),
		),
	}
}

// run drives the session to completion. The socket itself is closed by the
// acceptor once run returns.
func (s *session) run(ctx context.Context) {
	start := time.Now()

	userToken, gameToken, err := s.handshake()
	if err != nil {
		s.logger.Warn("handshake failed", zap.Error(err))
		return
	}

	user, reason := s.authorize(ctx, userToken, gameToken)
	if reason != "" {
		s.refuse(reason)
		return
	}

	out := room.NewOutbox(user.Username, s.cfg.SendBuffer)
	hub, err := s.registry.Connect(gameToken, user, out)
	if err != nil {
		if errors.Is(err, room.ErrAlreadyConnected) {
			s.refuse("user already connected")
		} else {
			s.logger.Error("joining room", zap.Error(err))
			s.refuse("internal error")
		}
		return
	}

	s.logger.Info("session active",
		zap.String("username", user.Username),
		zap.String("room", gameToken),
		zap.Bool("host", user.IsHost),
	)

	// Write pump: drains the outbox onto the socket so broadcasts from the
	// hub never block on this client's socket.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		s.writePump(out)
	}()

	// Read pump: feeds inbound frames to the hub until the socket dies.
	s.readPump(hub, user)

	hub.Leave(user)
	out.Close()
	<-writeDone

	s.logger.Info("session ended",
		zap.String("username", user.Username),
		zap.String("room", gameToken),
		zap.Duration("duration", time.Since(start)),
	)
}

// handshake reads the two opening frames: user token, then room token, each
// trimmed of surrounding whitespace. Anything else is malformed and the
// connection is dropped without a response.
func (s *session) handshake() (userToken, gameToken string, err error) {
	if s.cfg.HandshakeTimeout > 0 {
		_ = s.sock.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
		defer func() { _ = s.sock.SetReadDeadline(time.Time{}) }()
	}

	userToken, err = s.readToken()
	if err != nil {
		return "", "", err
	}
	gameToken, err = s.readToken()
	if err != nil {
		return "", "", err
	}
	return userToken, gameToken, nil
}

func (s *session) readToken() (string, error) {
	kind, data, err := s.sock.ReadMessage()
	if err != nil {
		return "", ErrMalformedHandshake
	}
	if kind != websocket.TextMessage {
		return "", ErrMalformedHandshake
	}
	return strings.TrimSpace(string(data)), nil
}

// authorize resolves the user against the directory. A non-empty reason
// means the session must be refused with a FailedConnection.
func (s *session) authorize(ctx context.Context, userToken, gameToken string) (room.UserInfo, string) {
	role, err := s.dir.CheckGamePermission(ctx, userToken, gameToken)
	if err != nil {
		s.logger.Warn("permission check failed", zap.Error(err))
		return room.UserInfo{}, "not authorized for game"
	}
	if role == directory.RoleNone {
		return room.UserInfo{}, "not authorized for game"
	}

	account, err := s.dir.GetAccount(ctx, userToken)
	if err != nil {
		s.logger.Warn("account lookup failed", zap.Error(err))
		return room.UserInfo{}, "unknown account"
	}

	return room.UserInfo{
		Token:    userToken,
		ID:       account.ID,
		Username: account.Username,
		IsHost:   role == directory.RoleHost,
	}, ""
}

// refuse tells the client why the session was rejected, then lets the caller
// close the socket.
func (s *session) refuse(reason string) {
	s.logger.Info("refusing session", zap.String("reason", reason))
	frame, err := protocol.Encode(&protocol.FailedConnection{Reason: reason})
	if err != nil {
		s.logger.Error("encoding refusal", zap.Error(err))
		return
	}
	s.writeFrame(frame)
}

// readPump forwards inbound text frames to the hub until the socket closes.
// Non-text frames are dropped; only a read error ends the session.
func (s *session) readPump(hub *room.Hub, user room.UserInfo) {
	for {
		kind, data, err := s.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("socket read failed", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			s.logger.Warn("dropping non-text frame", zap.Int("kind", kind))
			continue
		}
		hub.Dispatch(data, user)
	}
}

// writePump drains the outbox onto the socket until the outbox closes. A
// write failure is logged and the pump keeps draining so the hub side never
// backs up; the read pump observes the dead socket and tears the session
// down.
func (s *session) writePump(out *room.Outbox) {
	for frame := range out.Frames() {
		if err := s.writeFrame(frame); err != nil {
			s.logger.Warn("socket write failed", zap.Error(err))
		}
	}
}

func (s *session) writeFrame(frame []byte) error {
	if s.cfg.WriteTimeout > 0 {
		_ = s.sock.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	return s.sock.WriteMessage(websocket.TextMessage, frame)
}
