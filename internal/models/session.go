// Package models defines the GORM entities persisted by Rostrum.
package models

import "time"

// Session statuses. A session moves created → running → judging and ends
// in finished or failed; failed may re-enter judging via an explicit retry.
const (
	StatusCreated  = "created"
	StatusRunning  = "running"
	StatusJudging  = "judging"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Winner values recorded on a finished session.
const (
	WinnerA   = "A"
	WinnerB   = "B"
	WinnerTie = "TIE"
)

// DebateSession is one two-party debate and its lifecycle state. Topic,
// rounds and autoJudge are fixed at creation; everything else is mutated
// only through conditional status writes in the store package.
type DebateSession struct {
	ID         string `gorm:"primaryKey;size:36"`
	Topic      string `gorm:"size:512;not null"`
	Rounds     int    `gorm:"not null"`
	DebaterAID string `gorm:"size:64;index"`
	DebaterBID string `gorm:"size:64"`
	Status     string `gorm:"size:16;default:created;index"`
	AutoJudge  bool   `gorm:"default:false"`

	// JudgeAttempt counts entries into judging. Gateway results finish the
	// session only via a write pinned to the attempt that spawned them, so
	// a stale verdict can never overwrite a fresher one.
	JudgeAttempt int `gorm:"default:0"`

	Winner       string `gorm:"size:8"`
	JudgeSummary string `gorm:"type:text"` // JSON verdict, or error marker when failed

	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time

	Turns []DebateTurn `gorm:"foreignKey:SessionID"`
}

// TotalTurns is the number of turns after which the debate is complete.
func (s *DebateSession) TotalTurns() int {
	return s.Rounds * 2
}
