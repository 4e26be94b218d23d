package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zulandar/rostrum/internal/debate"
	"github.com/zulandar/rostrum/internal/models"
)

// defaultHeartbeat is the interval between server heartbeats when none
// is configured.
const defaultHeartbeat = 15 * time.Second

// Hub owns the room membership map and fans state changes out to rooms.
// Rooms are process-local: they only need to be consistent within the
// process serving those sockets.
type Hub struct {
	orch      *debate.Orchestrator
	heartbeat time.Duration

	mu    sync.Mutex
	rooms map[string]map[*Client]struct{}
}

// Opts holds parameters for creating a Hub.
type Opts struct {
	Orchestrator *debate.Orchestrator
	Heartbeat    time.Duration
}

// New creates a Hub and registers it as the orchestrator's broadcaster.
func New(opts Opts) *Hub {
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	h := &Hub{
		orch:      opts.Orchestrator,
		heartbeat: heartbeat,
		rooms:     make(map[string]map[*Client]struct{}),
	}
	if opts.Orchestrator != nil {
		opts.Orchestrator.SetBroadcaster(h)
	}
	return h
}

// ServeConn runs a websocket connection until it closes. The caller has
// already authenticated the transport token; userID is the identity it
// asserted. Blocks for the lifetime of the connection.
func (h *Hub) ServeConn(conn *websocket.Conn, userID string) {
	client := &Client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan outbound, sendBuffer),
		done:   make(chan struct{}),
	}
	go client.writePump()
	client.readPump()
}

// SessionChanged implements debate.Broadcaster: it loads the persisted
// snapshot and pushes it to every socket in the session's room.
func (h *Hub) SessionChanged(sessionID string) {
	state, err := h.orch.LoadSession(context.Background(), sessionID)
	if err != nil {
		log.Printf("hub: load session %s for broadcast: %v", sessionID, err)
		return
	}
	h.broadcast(state)
}

// broadcast pushes a snapshot (and any derived notices) to a room.
func (h *Hub) broadcast(state *debate.SessionState) {
	msgs := []outbound{sessionStateMsg(state)}
	if state.Status == models.StatusRunning && state.NextSpeaker != "" {
		msgs = append(msgs, yourTurnMsg(state.NextSpeaker, len(state.Turns)))
	}
	if state.Status == models.StatusFinished {
		msgs = append(msgs, winnerMsg(state))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[state.ID] {
		for _, msg := range msgs {
			client.trySend(msg)
		}
	}
}

// join authorizes a user for a session room and adds the client to it.
// Debaters join as participants; any authenticated user may observe.
// Rejoining is idempotent: the socket is re-added and gets a fresh
// snapshot, with no continuity assumed from any prior connection.
func (h *Hub) join(client *Client, sessionID string) (*debate.SessionState, error) {
	state, err := h.orch.LoadSession(context.Background(), sessionID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	if client.sessionID != "" && client.sessionID != sessionID {
		h.removeLocked(client)
	}
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[sessionID] = room
	}
	room[client] = struct{}{}
	client.sessionID = sessionID
	h.mu.Unlock()

	return state, nil
}

// leave removes a client from its room, dropping the room when empty.
func (h *Hub) leave(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	if client.sessionID == "" {
		return
	}
	if room, ok := h.rooms[client.sessionID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, client.sessionID)
		}
	}
	client.sessionID = ""
}

// RoomSize reports how many sockets are in a session's room.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[sessionID])
}
