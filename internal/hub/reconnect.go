package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Reconnection defaults. Delay doubles per attempt up to the ceiling.
const (
	defaultBaseDelay      = time.Second
	defaultMaxDelay       = 30 * time.Second
	defaultMaxAttempts    = 8
	defaultConnectTimeout = 10 * time.Second
)

// ErrDisconnectRequested means Close was called: the dial loop must stop
// entirely rather than keep retrying after an intentional disconnect.
var ErrDisconnectRequested = errors.New("hub: disconnect requested")

// ReconnectPolicy is the explicit backoff state for connection attempts:
// capped exponential delay over a bounded attempt count. Modeling this
// as data rather than ad hoc timers keeps cancellation unambiguous.
type ReconnectPolicy struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	MaxAttempts    int
	ConnectTimeout time.Duration
}

// withDefaults fills unset fields.
func (p ReconnectPolicy) withDefaults() ReconnectPolicy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.ConnectTimeout <= 0 {
		p.ConnectTimeout = defaultConnectTimeout
	}
	return p
}

// Delay returns the wait before the given attempt (0-based). Attempt 0
// has no delay.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Dialer connects to a rostrum websocket endpoint with reconnection
// backoff. It is the client-side counterpart of the hub: intended for
// in-process tooling and tests, and as the reference for how clients
// are expected to reconnect.
type Dialer struct {
	URL    string
	Policy ReconnectPolicy

	mu     sync.Mutex
	closed bool
}

// Close marks the dialer as intentionally disconnected. Any in-progress
// or future Dial stops at its next check instead of retrying.
func (d *Dialer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *Dialer) disconnectRequested() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Dial attempts to connect, retrying with the policy's backoff until it
// succeeds, the attempts run out, ctx is cancelled, or Close is
// called.
func (d *Dialer) Dial(ctx context.Context) (*websocket.Conn, error) {
	policy := d.Policy.withDefaults()

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if d.disconnectRequested() {
			return nil, ErrDisconnectRequested
		}
		if delay := policy.Delay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			if d.disconnectRequested() {
				return nil, ErrDisconnectRequested
			}
		}

		dialCtx, cancel := context.WithTimeout(ctx, policy.ConnectTimeout)
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, d.URL, nil)
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("hub: dial %s: all %d attempts failed: %w", d.URL, policy.MaxAttempts, lastErr)
}
