package realtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
)

// Conn is a message-oriented bidirectional connection.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens Conns.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials the sync server over WebSocket.
type WebSocketDialer struct {
	Header http.Header
	dialer *websocket.Dialer
}

// NewWebSocketDialer creates a dialer with the given handshake timeout.
func NewWebSocketDialer(handshakeTimeout time.Duration, header http.Header) *WebSocketDialer {
	return &WebSocketDialer{
		Header: header,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: HTTP %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// textMessage mirrors websocket.TextMessage so fakes need not import the library.
const textMessage = websocket.TextMessage
