package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/rostrum/internal/models"
	"gorm.io/gorm"
)

// Invitation redemption failures. Each case is distinct so callers can
// report a machine-readable reason.
var (
	ErrTokenNotFound        = errors.New("store: invitation token not found")
	ErrTokenExpired         = errors.New("store: invitation token expired")
	ErrTokenUsed            = errors.New("store: invitation token already used")
	ErrTokenSessionMismatch = errors.New("store: invitation token is for a different session")
)

// CreateInvitation mints a fresh single-use invitation token for a
// session. Previously issued unused tokens stay valid until they expire.
func CreateInvitation(db *gorm.DB, sessionID string, ttl time.Duration) (*models.InvitationToken, error) {
	token := models.InvitationToken{
		Token:     uuid.NewString(),
		SessionID: sessionID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := db.Create(&token).Error; err != nil {
		return nil, fmt.Errorf("store: create invitation for %s: %w", sessionID, err)
	}
	return &token, nil
}

// ConsumeInvitation atomically checks and consumes an invitation token.
// The final conditional write on used_at IS NULL is what guarantees that
// two concurrent redeemers cannot both succeed: the loser sees zero rows
// affected and gets ErrTokenUsed.
func ConsumeInvitation(db *gorm.DB, token, sessionID, userID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var inv models.InvitationToken
		err := tx.First(&inv, "token = ?", token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("store: load invitation: %w", err)
		}
		if inv.SessionID != sessionID {
			return ErrTokenSessionMismatch
		}
		if inv.Used() {
			return ErrTokenUsed
		}
		if inv.Expired(time.Now()) {
			return ErrTokenExpired
		}

		now := time.Now()
		result := tx.Model(&models.InvitationToken{}).
			Where("token = ? AND used_at IS NULL", token).
			Updates(map[string]interface{}{"used_at": &now, "used_by": userID})
		if result.Error != nil {
			return fmt.Errorf("store: consume invitation: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrTokenUsed
		}
		return nil
	})
}

// ExpireInvitations deletes unused tokens whose expiry has passed.
// Used tokens are kept for audit. Returns the number of rows removed.
func ExpireInvitations(db *gorm.DB, now time.Time) (int64, error) {
	result := db.Where("used_at IS NULL AND expires_at < ?", now).
		Delete(&models.InvitationToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("store: expire invitations: %w", result.Error)
	}
	return result.RowsAffected, nil
}
