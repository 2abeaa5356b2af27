package room

import (
	"fmt"
	"sync"
)

// Outbox is a client's bounded outbound queue, bridging the room hub to the
// connection's write pump. Pushes never block: when a slow client's queue is
// full the frame is dropped for that client only. The bound is a
// backpressure/drop policy, not a correctness mechanism.
type Outbox struct {
	username string
	frames   chan []byte
	mu       sync.Mutex
	closed   bool
}

// NewOutbox creates an Outbox for the given user.
//
// Precondition: username must be non-empty.
// Postcondition: Returns an Outbox with an open frames channel.
func NewOutbox(username string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Outbox{
		username: username,
		frames:   make(chan []byte, bufferSize),
	}
}

// Username returns the owning user's name.
func (o *Outbox) Username() string {
	return o.username
}

// Push enqueues a frame for the write pump.
//
// Postcondition: The frame is enqueued, or an error if the outbox is closed
// or full.
func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox for %s is closed", o.username)
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return fmt.Errorf("outbox for %s is full", o.username)
	}
}

// Frames returns the read-only frame channel. The connection's write pump
// drains this channel onto the socket.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Close marks the outbox as closed and closes the frames channel.
//
// Postcondition: The frames channel is closed. Further Push calls return an
// error. Close is idempotent.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
	}
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
