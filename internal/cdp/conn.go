// Package cdp connects to a Chrome DevTools Protocol endpoint and relays raw
// frames between the browser and a higher-level protocol dispatcher.
package cdp

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// Conn defines the interface for a WebSocket connection.
// This abstraction enables testing with mock connections.
type Conn interface {
	// Read reads a message from the connection.
	// Returns message type, payload, and any error.
	Read(ctx context.Context) (websocket.MessageType, []byte, error)

	// Write writes a message to the connection.
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error

	// Close closes the connection with a status code and reason.
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens the persistent channel at a debugger WebSocket URL.
// A nil error means the channel reached the open state.
type Dialer func(ctx context.Context, wsURL string) (Conn, error)

// WebSocketDialer returns a Dialer backed by coder/websocket.
// readLimit caps the size of a single inbound frame; values <= 0 keep the
// library default.
func WebSocketDialer(readLimit int64) Dialer {
	return func(ctx context.Context, wsURL string) (Conn, error) {
		conn, _, err := websocket.Dial(ctx, wsURL, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", wsURL, err)
		}
		if readLimit > 0 {
			conn.SetReadLimit(readLimit)
		}
		return conn, nil
	}
}
