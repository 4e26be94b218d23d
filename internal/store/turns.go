package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/rostrum/internal/models"
	"gorm.io/gorm"
)

// Turn append failures the coordinator distinguishes.
var (
	// ErrSessionNotRunning means the session is not accepting turns.
	ErrSessionNotRunning = errors.New("store: session not running")
	// ErrWrongTurn means the given speaker is not the one due next. Also
	// returned when a concurrent append won the race for the same index.
	ErrWrongTurn = errors.New("store: not this speaker's turn")
	// ErrTurnNotFound means no turn exists at the given position.
	ErrTurnNotFound = errors.New("store: turn not found")
)

// AppendTurn appends one turn for speaker at the next order index and
// returns the persisted turn plus the new turn total. The order index is
// derived from the current count inside the transaction; the unique
// (session_id, order_index) index arbitrates concurrent appends, so two
// submissions can never both land at the same position. Speaker validity
// is re-derived from the count, never from cached state.
func AppendTurn(db *gorm.DB, sessionID, speaker, response string) (*models.DebateTurn, int, error) {
	var turn models.DebateTurn
	var total int

	err := db.Transaction(func(tx *gorm.DB) error {
		var session models.DebateSession
		if err := tx.First(&session, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("store: load session %s: %w", sessionID, err)
		}
		if session.Status != models.StatusRunning {
			return ErrSessionNotRunning
		}

		var count int64
		if err := tx.Model(&models.DebateTurn{}).
			Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
			return fmt.Errorf("store: count turns for %s: %w", sessionID, err)
		}

		expected := models.SpeakerA
		if count > 0 {
			var last models.DebateTurn
			if err := tx.Where("session_id = ?", sessionID).
				Order("order_index DESC").First(&last).Error; err != nil {
				return fmt.Errorf("store: load last turn for %s: %w", sessionID, err)
			}
			expected = models.Alternate(last.Speaker)
		}
		if speaker != expected {
			return ErrWrongTurn
		}

		turn = models.DebateTurn{
			SessionID:  sessionID,
			OrderIndex: int(count),
			Speaker:    speaker,
			Response:   response,
		}
		if err := tx.Create(&turn).Error; err != nil {
			if isDuplicateKey(err) {
				// A concurrent append claimed this index first.
				return ErrWrongTurn
			}
			return fmt.Errorf("store: append turn %d for %s: %w", count, sessionID, err)
		}
		total = int(count) + 1
		return nil
	})

	if err != nil {
		return nil, 0, err
	}
	return &turn, total, nil
}

// ListTurns returns all turns for a session in transcript order.
func ListTurns(db *gorm.DB, sessionID string) ([]models.DebateTurn, error) {
	var turns []models.DebateTurn
	if err := db.Where("session_id = ?", sessionID).
		Order("order_index ASC").Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("store: list turns for %s: %w", sessionID, err)
	}
	return turns, nil
}

// AttachAudio sets the audio artifact reference on an existing turn.
// This is the only permitted post-creation turn mutation; response,
// speaker and ordering are immutable.
func AttachAudio(db *gorm.DB, sessionID string, orderIndex int, ref string) error {
	result := db.Model(&models.DebateTurn{}).
		Where("session_id = ? AND order_index = ?", sessionID, orderIndex).
		Update("audio_ref", ref)
	if result.Error != nil {
		return fmt.Errorf("store: attach audio to %s[%d]: %w", sessionID, orderIndex, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTurnNotFound
	}
	return nil
}

// isDuplicateKey reports whether err is a unique-constraint violation.
// MySQL and SQLite spell these differently; matching on message text
// keeps both drivers covered without importing either directly.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "unique constraint")
}
