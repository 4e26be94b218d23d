package models

import "time"

// Speaker labels for turns.
const (
	SpeakerA = "A"
	SpeakerB = "B"
)

// DebateTurn is one debater's contribution at a fixed position in the
// transcript. Rows are append-only: after creation only AudioRef may be
// set, once a synthesized audio artifact arrives for the same position.
type DebateTurn struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	SessionID  string `gorm:"size:36;not null;uniqueIndex:idx_session_order"`
	OrderIndex int    `gorm:"not null;uniqueIndex:idx_session_order"`
	Speaker    string `gorm:"size:1;not null"`
	Response   string `gorm:"type:text;not null"`
	AudioRef   string `gorm:"size:512"`
	CreatedAt  time.Time

	Session DebateSession `gorm:"foreignKey:SessionID"`
}

// Alternate returns the speaker who follows the given one.
func Alternate(speaker string) string {
	if speaker == SpeakerA {
		return SpeakerB
	}
	return SpeakerA
}
