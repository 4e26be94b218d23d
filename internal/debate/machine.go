// Package debate implements the session state machine and the
// orchestration facade over it. Every mutation serializes through
// conditional writes in the store; a lost write means another caller
// already applied the transition and is treated as a benign no-op.
package debate

import (
	"fmt"
	"unicode/utf8"

	"github.com/zulandar/rostrum/internal/models"
)

// Input bounds, fixed by the product rules.
const (
	topicMinLen    = 10
	topicMaxLen    = 500
	roundsMin      = 1
	roundsMax      = 5
	argumentMinLen = 10
	argumentMaxLen = 2000
)

// NextSpeaker derives who speaks at the given turn count. Turn 0 is
// always A and speakers strictly alternate, so the speaker is a pure
// function of the count — there is no stored "current speaker" to drift
// out of sync with the transcript.
func NextSpeaker(turnCount int) string {
	if turnCount%2 == 0 {
		return models.SpeakerA
	}
	return models.SpeakerB
}

// ValidateTopic checks topic length bounds.
func ValidateTopic(topic string) error {
	n := utf8.RuneCountInString(topic)
	if n < topicMinLen || n > topicMaxLen {
		return &ValidationError{
			Field:  "topic",
			Reason: fmt.Sprintf("must be %d-%d characters, got %d", topicMinLen, topicMaxLen, n),
		}
	}
	return nil
}

// ValidateRounds checks the rounds bound.
func ValidateRounds(rounds int) error {
	if rounds < roundsMin || rounds > roundsMax {
		return &ValidationError{
			Field:  "rounds",
			Reason: fmt.Sprintf("must be %d-%d, got %d", roundsMin, roundsMax, rounds),
		}
	}
	return nil
}

// ValidateArgument checks argument length bounds.
func ValidateArgument(text string) error {
	n := utf8.RuneCountInString(text)
	if n < argumentMinLen || n > argumentMaxLen {
		return &ValidationError{
			Field:  "argument",
			Reason: fmt.Sprintf("must be %d-%d characters, got %d", argumentMinLen, argumentMaxLen, n),
		}
	}
	return nil
}

// ValidateWinner checks a manual verdict value.
func ValidateWinner(winner string) error {
	switch winner {
	case models.WinnerA, models.WinnerB, models.WinnerTie:
		return nil
	}
	return &ValidationError{Field: "winner", Reason: "must be A, B, or TIE"}
}

// speakerFor maps a user to their side, or "" if they are not a debater.
func speakerFor(session *models.DebateSession, userID string) string {
	switch {
	case userID != "" && userID == session.DebaterAID:
		return models.SpeakerA
	case userID != "" && userID == session.DebaterBID:
		return models.SpeakerB
	}
	return ""
}
