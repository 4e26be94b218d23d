// Package store provides durable access to debate sessions, turns, and
// invitation tokens. It holds no policy: callers decide which writes to
// attempt, the store guarantees each conditional write applies atomically
// or not at all. A lost race surfaces as applied=false, never as an error.
package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zulandar/rostrum/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a referenced session does not exist.
var ErrNotFound = errors.New("store: not found")

// CreateSession persists a new session. The ID is assigned here if empty.
func CreateSession(db *gorm.DB, session *models.DebateSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = models.StatusCreated
	}
	if err := db.Create(session).Error; err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// GetSession loads a session with its turns ordered by position.
func GetSession(db *gorm.DB, id string) (*models.DebateSession, error) {
	var session models.DebateSession
	err := db.Preload("Turns", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("order_index ASC")
	}).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session %s: %w", id, err)
	}
	return &session, nil
}

// TransitionStatus applies a compare-and-set on the session status:
// the write lands only if the current status equals from. Extra column
// updates ride in the same statement so status and payload change
// together or not at all. Returns whether the write applied.
func TransitionStatus(db *gorm.DB, id, from, to string, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	result := db.Model(&models.DebateSession{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, fmt.Errorf("store: transition %s %s->%s: %w", id, from, to, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SetDebaterB assigns the second debater, conditional on the slot being
// empty and the user not already being debater A. Exactly one of any
// number of concurrent callers succeeds.
func SetDebaterB(db *gorm.DB, id, userID string) (bool, error) {
	result := db.Model(&models.DebateSession{}).
		Where("id = ? AND (debater_b_id = '' OR debater_b_id IS NULL) AND debater_a_id <> ?", id, userID).
		Update("debater_b_id", userID)
	if result.Error != nil {
		return false, fmt.Errorf("store: set debater B on %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}
