package realtime

import (
	"context"
	"net/http"
)

// Conn is one live duplex connection. ReadMessage is called from a single
// goroutine; WriteMessage and Close may be called concurrently with it.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens connections. The bearer credential travels in header.
// Implementations return an error wrapping ErrUnauthorized when the server
// rejects the credential.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}
