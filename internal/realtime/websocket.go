package realtime

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// CloseUnauthorized is the application close code servers use for an
// expired or revoked token.
const CloseUnauthorized = 4401

var _ Dialer = (*WebSocketDialer)(nil)

// WebSocketDialer dials gorilla/websocket connections.
type WebSocketDialer struct {
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
	MaxMessageSize    int64
}

func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	c, resp, err := dialer.DialContext(ctx, socketURL(rawURL), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, errors.Wrapf(ErrUnauthorized, "handshake rejected with HTTP %d", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "websocket dial")
	}
	return newWebSocketConn(c, d.WriteTimeout, d.HeartbeatInterval, d.MaxMessageSize), nil
}

// socketURL maps http(s) endpoints onto ws(s).
func socketURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		return "ws://" + strings.TrimPrefix(raw, "http://")
	default:
		return raw
	}
}

type webSocketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	heartbeat    time.Duration

	// Write mutex to ensure thread-safe writes
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newWebSocketConn(c *websocket.Conn, writeTimeout, heartbeat time.Duration, maxSize int64) *webSocketConn {
	w := &webSocketConn{
		conn:         c,
		writeTimeout: writeTimeout,
		heartbeat:    heartbeat,
		done:         make(chan struct{}),
	}
	if maxSize > 0 {
		c.SetReadLimit(maxSize)
	}
	if heartbeat > 0 {
		_ = c.SetReadDeadline(time.Now().Add(2 * heartbeat))
		c.SetPongHandler(func(string) error {
			return c.SetReadDeadline(time.Now().Add(2 * heartbeat))
		})
		go w.pingLoop()
	}
	return w
}

func (w *webSocketConn) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return nil, ErrConnectionClosed
			default:
			}
			if websocket.IsCloseError(err, CloseUnauthorized, websocket.ClosePolicyViolation) {
				return nil, errors.Wrap(ErrUnauthorized, err.Error())
			}
			return nil, errors.Wrap(err, "failed to read message")
		}
		// Only handle text and binary messages
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (w *webSocketConn) WriteMessage(data []byte) error {
	select {
	case <-w.done:
		return ErrConnectionClosed
	default:
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.writeTimeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

func (w *webSocketConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = w.conn.Close()
	})
	return err
}

func (w *webSocketConn) pingLoop() {
	ticker := time.NewTicker(w.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(w.heartbeat)
			if err := w.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
