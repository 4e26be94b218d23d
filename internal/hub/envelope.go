// Package hub manages realtime websocket connections: it authenticates
// them, groups them into per-session rooms, translates inbound client
// messages into orchestrator calls, and pushes full state snapshots to
// every socket in a room whenever the orchestrator reports a change.
package hub

import (
	"encoding/json"

	"github.com/zulandar/rostrum/internal/debate"
)

// Inbound message types. The dispatch switch in client.go is the single
// place a new type must be handled.
const (
	MsgJoinSession    = "JOIN_SESSION"
	MsgRequestState   = "REQUEST_STATE"
	MsgSubmitArgument = "SUBMIT_ARGUMENT"
	MsgJudge          = "JUDGE"
	MsgPing           = "PING"
)

// Outbound message types.
const (
	MsgSessionState = "SESSION_STATE"
	MsgYourTurn     = "YOUR_TURN"
	MsgWinner       = "WINNER"
	MsgError        = "ERROR"
	MsgHeartbeat    = "HEARTBEAT"
)

// inbound is the envelope for client-to-server messages.
type inbound struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Argument  string `json:"argument,omitempty"`
	Winner    string `json:"winner,omitempty"`
}

// outbound is the envelope for server-to-client messages. Fields beyond
// Type are populated per message kind; every state push carries the full
// snapshot so clients self-correct on the next message if one is lost.
type outbound struct {
	Type        string               `json:"type"`
	Data        *debate.SessionState `json:"data,omitempty"`
	Speaker     string               `json:"speaker,omitempty"`
	OrderIndex  *int                 `json:"orderIndex,omitempty"`
	Winner      string               `json:"winner,omitempty"`
	JudgeResult json.RawMessage      `json:"judgeResult,omitempty"`
	Message     string               `json:"message,omitempty"`
}

func sessionStateMsg(state *debate.SessionState) outbound {
	return outbound{Type: MsgSessionState, Data: state}
}

func yourTurnMsg(speaker string, orderIndex int) outbound {
	return outbound{Type: MsgYourTurn, Speaker: speaker, OrderIndex: &orderIndex}
}

func winnerMsg(state *debate.SessionState) outbound {
	return outbound{Type: MsgWinner, Winner: state.Winner, JudgeResult: state.JudgeResult}
}

func errorMsg(message string) outbound {
	return outbound{Type: MsgError, Message: message}
}

func heartbeatMsg() outbound {
	return outbound{Type: MsgHeartbeat}
}
