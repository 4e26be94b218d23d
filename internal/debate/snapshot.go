package debate

import (
	"encoding/json"
	"time"

	"github.com/zulandar/rostrum/internal/models"
)

// TurnView is one turn as exposed to clients.
type TurnView struct {
	OrderIndex int       `json:"orderIndex"`
	Speaker    string    `json:"speaker"`
	Response   string    `json:"response"`
	AudioRef   string    `json:"audioRef,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SessionState is the full client-facing snapshot of a session. Every
// broadcast carries one, so a client that misses or reorders a broadcast
// self-corrects on the next.
type SessionState struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	Rounds      int             `json:"rounds"`
	TotalTurns  int             `json:"totalTurns"`
	DebaterAID  string          `json:"debaterAId,omitempty"`
	DebaterBID  string          `json:"debaterBId,omitempty"`
	Status      string          `json:"status"`
	AutoJudge   bool            `json:"autoJudge"`
	Winner      string          `json:"winner,omitempty"`
	JudgeResult json.RawMessage `json:"judgeResult,omitempty"`
	NextSpeaker string          `json:"nextSpeaker,omitempty"`
	Turns       []TurnView      `json:"turns"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
}

// Snapshot converts a loaded session into its client-facing state.
func Snapshot(session *models.DebateSession) *SessionState {
	state := &SessionState{
		ID:         session.ID,
		Topic:      session.Topic,
		Rounds:     session.Rounds,
		TotalTurns: session.TotalTurns(),
		DebaterAID: session.DebaterAID,
		DebaterBID: session.DebaterBID,
		Status:     session.Status,
		AutoJudge:  session.AutoJudge,
		Winner:     session.Winner,
		Turns:      make([]TurnView, 0, len(session.Turns)),
		FinishedAt: session.FinishedAt,
	}
	if session.JudgeSummary != "" {
		state.JudgeResult = json.RawMessage(session.JudgeSummary)
	}
	for _, turn := range session.Turns {
		state.Turns = append(state.Turns, TurnView{
			OrderIndex: turn.OrderIndex,
			Speaker:    turn.Speaker,
			Response:   turn.Response,
			AudioRef:   turn.AudioRef,
			CreatedAt:  turn.CreatedAt,
		})
	}
	if session.Status == models.StatusRunning {
		state.NextSpeaker = NextSpeaker(len(session.Turns))
	}
	return state
}
