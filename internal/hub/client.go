package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zulandar/rostrum/internal/debate"
)

// sendBuffer is the per-client outbound queue depth. A client that
// cannot drain this many messages is dropped; it will resynchronize from
// a full snapshot when it reconnects.
const sendBuffer = 32

// Client is one authenticated websocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan outbound

	closeOnce sync.Once
	done      chan struct{}

	// sessionID is the room this client is in, guarded by hub.mu.
	sessionID string
}

// trySend queues a message without blocking. Callers hold hub.mu, so a
// slow client must not stall the broadcast; it is closed instead.
func (c *Client) trySend(msg outbound) {
	select {
	case c.send <- msg:
	default:
		c.close()
	}
}

// close signals the pumps to stop. Idempotent.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump reads and dispatches inbound messages until the connection
// drops, then cleans up room membership.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.close()
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("hub: read from %s: %v", c.userID, err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.trySend(errorMsg("malformed message"))
			continue
		}
		c.dispatch(msg)
	}
}

// dispatch routes one inbound message. Every known type is handled here;
// unknown types get a typed error back.
func (c *Client) dispatch(msg inbound) {
	ctx := context.Background()
	switch msg.Type {
	case MsgJoinSession:
		state, err := c.hub.join(c, msg.SessionID)
		if err != nil {
			c.trySend(errorMsg(userFacing(err)))
			return
		}
		c.trySend(sessionStateMsg(state))

	case MsgRequestState:
		// Explicit resync: reply to this socket only.
		state, err := c.hub.orch.LoadSession(ctx, msg.SessionID)
		if err != nil {
			c.trySend(errorMsg(userFacing(err)))
			return
		}
		c.trySend(sessionStateMsg(state))

	case MsgSubmitArgument:
		// The orchestrator enforces turn ownership and validity; the
		// room-wide snapshot push happens through SessionChanged.
		if _, err := c.hub.orch.SubmitArgument(ctx, msg.SessionID, c.userID, msg.Argument); err != nil {
			c.trySend(errorMsg(userFacing(err)))
		}

	case MsgJudge:
		if _, err := c.hub.orch.UserJudge(ctx, msg.SessionID, msg.Winner); err != nil {
			c.trySend(errorMsg(userFacing(err)))
		}

	case MsgPing:
		c.trySend(heartbeatMsg())

	default:
		c.trySend(errorMsg("unknown message type"))
	}
}

// writePump drains the send queue and emits periodic heartbeats. The
// absence of any traffic for longer than the heartbeat interval is the
// client's signal to reconnect; the hub never drops a connection merely
// for being idle.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.heartbeat)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteJSON(heartbeatMsg()); err != nil {
				c.close()
				return
			}
		}
	}
}

// userFacing maps orchestrator errors to client-safe message text.
func userFacing(err error) string {
	var vErr *debate.ValidationError
	var conflict *debate.StateConflictError
	var turnErr *debate.TurnError
	var tokErr *debate.TokenError
	switch {
	case errors.Is(err, debate.ErrNotFound):
		return "session not found"
	case errors.As(err, &vErr), errors.As(err, &conflict), errors.As(err, &turnErr), errors.As(err, &tokErr):
		return err.Error()
	default:
		log.Printf("hub: internal error: %v", err)
		return "internal error"
	}
}
