package room

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rolecall/rolecall/internal/config"
)

// Registry is the process-wide map from room token to hub. Hubs are created
// lazily on first join and destroyed by the reaper once they have sat empty
// past the idle timeout.
//
// The registry lock covers resolve-or-create, join, and reap, so a join can
// never race a removal of the same room: at most one hub per token ever
// exists.
type Registry struct {
	cfg    config.RoomConfig
	logger *zap.Logger

	mu   sync.Mutex
	hubs map[string]*Hub

	quit chan struct{}
	done chan struct{}
}

// NewRegistry creates an empty Registry. The reaper does not run until
// Start is called.
func NewRegistry(cfg config.RoomConfig, logger *zap.Logger) *Registry {
	return &Registry{
		cfg:    cfg,
		logger: logger,
		hubs:   make(map[string]*Hub),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Connect resolves or creates the hub for roomToken and joins user to it as
// one atomic step.
//
// Postcondition: On success the user holds a seat in the returned hub.
// Returns ErrAlreadyConnected if the username already holds one.
func (r *Registry) Connect(roomToken string, user UserInfo, out *Outbox) (*Hub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hub, ok := r.hubs[roomToken]
	if !ok {
		hub = NewHub(roomToken, user, r.logger)
		r.hubs[roomToken] = hub
		r.logger.Info("created room hub", zap.String("room", roomToken))
	}

	if err := hub.Join(user, out); err != nil {
		return nil, err
	}
	return hub, nil
}

// Len returns the number of live hubs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hubs)
}

// Start runs the idle reaper until Stop is called. It blocks, satisfying the
// server.Service contract.
func (r *Registry) Start() error {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	defer close(r.done)

	for {
		select {
		case now := <-ticker.C:
			r.Sweep(now)
		case <-r.quit:
			return nil
		}
	}
}

// Stop terminates the reaper and waits for the current sweep to finish.
func (r *Registry) Stop() {
	close(r.quit)
	<-r.done
}

// Sweep removes every hub that has been empty for longer than the idle
// timeout. Exposed for tests; the reaper calls it on each tick.
func (r *Registry) Sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for token, hub := range r.hubs {
		idle, empty := hub.idleFor(now)
		if empty && idle > r.cfg.IdleTimeout {
			delete(r.hubs, token)
			r.logger.Info("reaped idle room",
				zap.String("room", token),
				zap.Duration("idle", idle),
			)
		}
	}
}
