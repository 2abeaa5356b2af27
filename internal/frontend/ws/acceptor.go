// Package ws provides the WebSocket frontend for game sessions: the listener
// that accepts client sockets and the per-connection handshake and pumps.
package ws

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rolecall/rolecall/internal/config"
	"github.com/rolecall/rolecall/internal/directory"
	"github.com/rolecall/rolecall/internal/game/room"
)

// Acceptor listens for WebSocket connections and hands each one to a
// session handler.
type Acceptor struct {
	cfg      config.SessionConfig
	dir      directory.Directory
	registry *room.Registry
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	conns    map[*websocket.Conn]struct{}
	running  bool
	quit     chan struct{}
	wg       sync.WaitGroup
}

// NewAcceptor creates a WebSocket acceptor with the given configuration.
//
// Precondition: cfg must have a valid port; dir, registry, and logger must be
// non-nil.
func NewAcceptor(cfg config.SessionConfig, dir directory.Directory, registry *room.Registry, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:      cfg,
		dir:      dir,
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Game tokens gate access; the origin does not.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
		quit:  make(chan struct{}),
	}
}

// ListenAndServe starts the listener and serves connections until Stop is
// called. This method blocks until the acceptor is stopped.
//
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	a.mu.Lock()
	a.listener = listener
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	server := &http.Server{Handler: http.HandlerFunc(a.handleUpgrade)}
	if err := server.Serve(listener); err != nil {
		select {
		case <-a.quit:
			return nil
		default:
			return fmt.Errorf("serving websocket connections: %w", err)
		}
	}
	return nil
}

// handleUpgrade upgrades one HTTP request and runs its session to completion.
func (a *Acceptor) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	sock, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	if !a.track(sock) {
		_ = sock.Close()
		return
	}
	a.wg.Add(1)
	defer a.wg.Done()
	defer a.untrack(sock)
	defer sock.Close()

	sess := newSession(sock, a.cfg, a.dir, a.registry, a.logger)
	sess.run(r.Context())
}

// track registers a live socket so Stop can close it. Returns false if the
// acceptor is shutting down.
func (a *Acceptor) track(sock *websocket.Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return false
	}
	a.conns[sock] = struct{}{}
	return true
}

func (a *Acceptor) untrack(sock *websocket.Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conns, sock)
}

// Stop gracefully stops the acceptor: it closes the listener and every live
// socket, then waits for all session handlers to finish.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.quit)
	if a.listener != nil {
		_ = a.listener.Close()
	}
	for sock := range a.conns {
		_ = sock.Close()
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.logger.Info("websocket acceptor stopped")
}

// Addr returns the actual listening address, or empty string if not yet
// listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}
