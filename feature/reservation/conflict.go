package reservation

import (
	"time"

	"loankeeper/core/status"
	"loankeeper/feature/reservation/models"

	"gorm.io/gorm"
)

// FindConflict returns the ID of a CONFIRMED reservation of the item
// whose window overlaps [start, end], or "" when there is none.
// Overlap is inclusive on both edges: two windows conflict when
// s1 <= e2 && s2 <= e1, so back-to-back reservations sharing a day
// collide. excludeID skips one reservation, for re-checks against
// itself.
func FindConflict(tx *gorm.DB, itemID string, start, end time.Time, excludeID string) (string, error) {
	q := tx.Model(&models.Reservation{}).
		Where("item_id = ? AND status = ?", itemID, status.ReservationConfirmed).
		Where("start_date <= ? AND end_date >= ?", end, start)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var conflicting models.Reservation
	err := q.Order("start_date ASC").Limit(1).Find(&conflicting).Error
	if err != nil {
		return "", err
	}
	return conflicting.ID, nil
}
