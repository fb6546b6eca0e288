package realtimetest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/nexus-reussite/nexus-realtime/internal/realtime"
)

var (
	_ realtime.Conn   = (*FakeConn)(nil)
	_ realtime.Dialer = (*FakeDialer)(nil)
)

// FakeConn is an in-memory connection. Frames pushed with Push are returned
// by ReadMessage in order; Drop makes the next read fail.
type FakeConn struct {
	inbound chan []byte
	drops   chan error
	closed  chan struct{}
	once    sync.Once

	mu      sync.Mutex
	written [][]byte
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		inbound: make(chan []byte, 64),
		drops:   make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (c *FakeConn) ReadMessage() ([]byte, error) {
	select {
	case <-c.closed:
		return nil, realtime.ErrConnectionClosed
	default:
	}
	select {
	case data := <-c.inbound:
		return data, nil
	case err := <-c.drops:
		return nil, err
	case <-c.closed:
		return nil, realtime.ErrConnectionClosed
	}
}

func (c *FakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return realtime.ErrConnectionClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *FakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Push queues a raw inbound frame.
func (c *FakeConn) Push(data []byte) {
	c.inbound <- data
}

// PushEvent encodes payload as an inbound frame for event.
func (c *FakeConn) PushEvent(event string, payload any) {
	data, err := realtime.EncodeFrame(event, payload)
	if err != nil {
		panic(err)
	}
	c.Push(data)
}

// Drop simulates a server-side close or network failure.
func (c *FakeConn) Drop(err error) {
	c.drops <- err
}

// Written returns the decoded outbound frames.
func (c *FakeConn) Written() []realtime.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]realtime.Frame, 0, len(c.written))
	for _, raw := range c.written {
		var f realtime.Frame
		if json.Unmarshal(raw, &f) == nil {
			out = append(out, f)
		}
	}
	return out
}

// FakeDialer hands out FakeConns, or fails with Err when set.
type FakeDialer struct {
	mu      sync.Mutex
	err     error
	headers []http.Header
	conns   []*FakeConn
}

func (d *FakeDialer) Dial(_ context.Context, _ string, header http.Header) (realtime.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.headers = append(d.headers, header.Clone())
	if d.err != nil {
		return nil, d.err
	}
	c := NewFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

// Fail makes subsequent dials return err; nil restores success.
func (d *FakeDialer) Fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

// Attempts counts Dial calls.
func (d *FakeDialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.headers)
}

// LastHeader returns the header of the most recent Dial.
func (d *FakeDialer) LastHeader() http.Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.headers) == 0 {
		return nil
	}
	return d.headers[len(d.headers)-1]
}

// LastConn returns the most recently established connection.
func (d *FakeDialer) LastConn() *FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}
