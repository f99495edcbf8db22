// Package remote provides the client for the remote authoritative record store.
package remote

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chronicle-app/chronicle/internal/logging"
)

// Notifier subscribes to the store's change feed and converts it into an
// opaque "something changed" signal. Frames carry no payload; consumers
// must re-fetch the full snapshot.
type Notifier struct {
	wsURL   string
	dialer  *websocket.Dialer
	changes chan struct{}
}

// NewNotifier creates a Notifier for the given websocket endpoint.
func NewNotifier(wsURL string) *Notifier {
	return &Notifier{
		wsURL: wsURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		// Buffer of one: signals received while the consumer is busy
		// collapse into a single pending signal.
		changes: make(chan struct{}, 1),
	}
}

// Changes returns the inbound change-signal channel.
func (n *Notifier) Changes() <-chan struct{} {
	return n.changes
}

// Run maintains the subscription until ctx is cancelled, reconnecting with
// backoff on failure.
func (n *Notifier) Run(ctx context.Context) {
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := n.dialer.DialContext(ctx, n.wsURL, nil)
		if err != nil {
			logging.Warn("Change feed connection failed",
				map[string]interface{}{"url": n.wsURL, "retry_in": backoff.String()})
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < time.Minute {
				backoff *= 2
			}
			continue
		}

		logging.Info("Change feed connected", map[string]interface{}{"url": n.wsURL})
		backoff = time.Second

		n.readLoop(ctx, conn)
		conn.Close()
	}
}

// readLoop consumes frames until the connection drops or ctx is cancelled.
func (n *Notifier) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if ctx.Err() == nil {
				logging.Warn("Change feed disconnected",
					map[string]interface{}{"error": err.Error()})
			}
			return
		}
		n.signal()
	}
}

// signal delivers a coalesced change signal.
func (n *Notifier) signal() {
	select {
	case n.changes <- struct{}{}:
	default:
	}
}
