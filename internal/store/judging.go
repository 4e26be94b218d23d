package store

import (
	"fmt"
	"time"

	"github.com/zulandar/rostrum/internal/models"
	"gorm.io/gorm"
)

// EnterJudging moves a session into judging from the given prior status
// (running when the turn limit is reached, failed on retry). The attempt
// counter increments in the same write, so every entry into judging has
// a unique attempt number. Returns whether the write applied.
func EnterJudging(db *gorm.DB, id, from string) (bool, error) {
	result := db.Model(&models.DebateSession{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":        models.StatusJudging,
			"judge_attempt": gorm.Expr("judge_attempt + 1"),
			"winner":        "",
			"judge_summary": "",
		})
	if result.Error != nil {
		return false, fmt.Errorf("store: enter judging for %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CompleteJudging finishes a session with its verdict. The write is
// pinned to both status and the attempt that produced the verdict, so a
// stale gateway result that lost a race with a retry cannot land.
// Winner and summary change atomically with the status.
func CompleteJudging(db *gorm.DB, id string, attempt int, winner, summary string) (bool, error) {
	now := time.Now()
	result := db.Model(&models.DebateSession{}).
		Where("id = ? AND status = ? AND judge_attempt = ?", id, models.StatusJudging, attempt).
		Updates(map[string]interface{}{
			"status":        models.StatusFinished,
			"winner":        winner,
			"judge_summary": summary,
			"finished_at":   &now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("store: complete judging for %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FailJudging records a gateway failure for the given attempt, moving the
// session to failed with an error marker so it is never stuck in judging.
func FailJudging(db *gorm.DB, id string, attempt int, marker string) (bool, error) {
	result := db.Model(&models.DebateSession{}).
		Where("id = ? AND status = ? AND judge_attempt = ?", id, models.StatusJudging, attempt).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"judge_summary": marker,
		})
	if result.Error != nil {
		return false, fmt.Errorf("store: fail judging for %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}
