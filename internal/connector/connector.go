// Package connector holds the pieces shared by the venue stream connectors:
// the websocket conn abstraction, the default gorilla dialer, and the
// single-flight reconnect timer. Each venue lives in its own subpackage and
// owns exactly one live socket at a time.
package connector

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// WriteWait is the time allowed to write a message to the peer.
	WriteWait = 10 * time.Second

	// PongWait is the time allowed to read the next pong from the peer.
	PongWait = 60 * time.Second

	// PingPeriod sends pings at this interval. Must be less than PongWait.
	PingPeriod = (PongWait * 9) / 10

	// ReconnectDelay is the fixed delay before a reconnect attempt after an
	// error or close. Not a correctness contract, just hygiene.
	ReconnectDelay = 2 * time.Second

	// RecycleDelay is the short delay used when a caller force-recycles the
	// connection.
	RecycleDelay = 100 * time.Millisecond
)

// Conn is the subset of *websocket.Conn the connectors use. Tests substitute
// scripted implementations.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer opens one websocket connection. header may be nil for venues
// without handshake authentication.
type Dialer func(ctx context.Context, header http.Header) (Conn, error)

// GorillaDialer returns a Dialer for the given endpoint using the gorilla
// websocket client with a bounded handshake.
func GorillaDialer(wsURL string) Dialer {
	return func(ctx context.Context, header http.Header) (Conn, error) {
		dialer := websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		}
		conn, _, err := dialer.DialContext(ctx, wsURL, header)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// ReconnectTimer is a single-flight reconnect slot. Scheduling while a timer
// is already pending replaces it rather than stacking a second attempt, so
// rapid error+close sequences yield exactly one reconnect.
type ReconnectTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

// Schedule arranges fn to run after d, cancelling any pending schedule.
func (r *ReconnectTimer) Schedule(d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(d, fn)
}

// Stop cancels any pending schedule.
func (r *ReconnectTimer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
