// Package announce bridges finished debates to chat platforms (Slack,
// Discord). Announcements are fire-and-forget: a platform failure is
// logged, never surfaced to the debate flow.
package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zulandar/rostrum/internal/models"
)

// announceTimeout bounds each platform call.
const announceTimeout = 10 * time.Second

// Announcement is one finished-debate notice, platform-independent.
type Announcement struct {
	SessionID string
	Topic     string
	Rounds    int
	DebaterA  string
	DebaterB  string
	Winner    string
	Summary   string // human-readable verdict reasoning, may be empty
}

// Adapter is the interface that platform-specific implementations must
// satisfy. Adapters are send-only: rostrum never reads from chat.
type Adapter interface {
	// Announce delivers one notice to the platform.
	Announce(ctx context.Context, a Announcement) error

	// Name identifies the platform in logs.
	Name() string
}

// FromSession converts a finished session into an announcement.
func FromSession(session *models.DebateSession) Announcement {
	return Announcement{
		SessionID: session.ID,
		Topic:     session.Topic,
		Rounds:    session.Rounds,
		DebaterA:  session.DebaterAID,
		DebaterB:  session.DebaterBID,
		Winner:    session.Winner,
		Summary:   summaryText(session.JudgeSummary),
	}
}

// summaryText extracts readable reasoning from the stored verdict JSON.
// Unparseable or manual verdicts produce an empty summary.
func summaryText(raw string) string {
	if raw == "" {
		return ""
	}
	var verdict struct {
		SideA struct {
			Reasoning string `json:"reasoning"`
		} `json:"sideA"`
		SideB struct {
			Reasoning string `json:"reasoning"`
		} `json:"sideB"`
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return ""
	}
	var parts []string
	if verdict.SideA.Reasoning != "" {
		parts = append(parts, "A: "+verdict.SideA.Reasoning)
	}
	if verdict.SideB.Reasoning != "" {
		parts = append(parts, "B: "+verdict.SideB.Reasoning)
	}
	return strings.Join(parts, " / ")
}

// Headline renders the one-line result shared by all platforms.
func (a Announcement) Headline() string {
	switch a.Winner {
	case models.WinnerTie:
		return fmt.Sprintf("Debate finished in a tie: %s", a.Topic)
	default:
		return fmt.Sprintf("Side %s wins the debate: %s", a.Winner, a.Topic)
	}
}

// Multi fans one announcement out to every configured adapter. It
// implements debate.Announcer.
type Multi struct {
	adapters []Adapter
}

// NewMulti builds a fan-out over the given adapters. Nil adapters are
// skipped, so callers can pass conditionally-constructed platforms.
func NewMulti(adapters ...Adapter) *Multi {
	m := &Multi{}
	for _, a := range adapters {
		if a != nil {
			m.adapters = append(m.adapters, a)
		}
	}
	return m
}

// Enabled reports whether any platform is configured.
func (m *Multi) Enabled() bool { return len(m.adapters) > 0 }

// SessionFinished announces the verdict to every platform. Failures are
// independent per adapter.
func (m *Multi) SessionFinished(session *models.DebateSession) {
	a := FromSession(session)
	for _, adapter := range m.adapters {
		ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
		if err := adapter.Announce(ctx, a); err != nil {
			log.Printf("announce: %s: %v", adapter.Name(), err)
		}
		cancel()
	}
}
