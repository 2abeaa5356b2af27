// Package testutil provides test helpers, including a WebSocket test client
// for session-level integration testing.
package testutil

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rolecall/rolecall/internal/game/protocol"
)

// WSClient is a WebSocket test client speaking the session wire protocol.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// DialWS connects to the session server at addr ("host:port").
//
// Precondition: addr must have a listening session acceptor.
// Postcondition: Returns a connected WSClient or fails the test.
func DialWS(t *testing.T, addr string) *WSClient {
	t.Helper()
	start := time.Now()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial("ws://"+addr, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v [%s]", addr, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	return &WSClient{conn: conn, t: t}
}

// Handshake sends the two opening token frames.
func (c *WSClient) Handshake(userToken, gameToken string) {
	c.t.Helper()
	c.SendText(userToken)
	c.SendText(gameToken)
}

// SendText writes one text frame.
func (c *WSClient) SendText(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// SendBinary writes one binary frame, for protocol-violation tests.
func (c *WSClient) SendBinary(data []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		c.t.Fatalf("sending binary frame: %v", err)
	}
}

// ReadMessage reads and decodes the next frame, failing the test on timeout.
func (c *WSClient) ReadMessage(timeout time.Duration) protocol.Message {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		c.t.Fatalf("decoding frame %q: %v", data, err)
	}
	return msg
}

// ExpectSilence asserts that no frame arrives within the window and that the
// connection stays open. A read timeout poisons the underlying gorilla
// connection, so this must be the client's final read.
func (c *WSClient) ExpectSilence(window time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(window))

	_, data, err := c.conn.ReadMessage()
	if err == nil {
		c.t.Fatalf("expected silence, got frame %q", data)
	}
	if te, ok := err.(interface{ Timeout() bool }); !ok || !te.Timeout() {
		c.t.Fatalf("expected read timeout, got: %v", err)
	}
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	_ = c.conn.Close()
}

// ExpectClosed asserts the server closes the connection without another
// decodable frame.
func (c *WSClient) ExpectClosed(timeout time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	_, data, err := c.conn.ReadMessage()
	if err == nil {
		c.t.Fatalf("expected close, got frame %q", data)
	}
}
