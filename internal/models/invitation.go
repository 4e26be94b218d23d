package models

import "time"

// InvitationToken is a single-use credential that binds a second debater
// to one session. Multiple unused tokens may be outstanding for the same
// session; each is consumed at most once, atomically.
type InvitationToken struct {
	Token     string `gorm:"primaryKey;size:36"`
	SessionID string `gorm:"size:36;not null;index"`
	ExpiresAt time.Time
	UsedAt    *time.Time
	UsedBy    string `gorm:"size:64"`
	CreatedAt time.Time

	Session DebateSession `gorm:"foreignKey:SessionID"`
}

// Expired reports whether the token's lifetime has passed at now.
func (t *InvitationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Used reports whether the token has already been redeemed.
func (t *InvitationToken) Used() bool {
	return t.UsedAt != nil
}
