package reservation

import (
	"context"
	"fmt"
	"time"

	"loankeeper/core/status"
	historymodels "loankeeper/feature/history/models"
	itemmodels "loankeeper/feature/inventory/models"
	"loankeeper/feature/reservation/models"
	usermodels "loankeeper/feature/user/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SweepExpired removes CONFIRMED reservations whose end date has
// passed and returns how many it processed. Each reservation gets its
// own transaction: the candidate is re-checked under a row lock, so a
// concurrent sweep or cancellation simply makes this one skip it. A
// second run straight after a clean sweep processes zero.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	var candidates []string
	err := s.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("status = ? AND end_date < ?", status.ReservationConfirmed, now).
		Pluck("id", &candidates).Error
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range candidates {
		ok, err := s.expireOne(ctx, id, now)
		if err != nil {
			return swept, err
		}
		if ok {
			swept++
		}
	}

	if swept > 0 {
		s.logger.Info("Expired reservations swept",
			zap.Int("count", swept),
			zap.Time("as_of", now))
	}
	return swept, nil
}

// expireOne expires a single reservation, or reports false when it was
// already gone or no longer qualifies.
func (s *Service) expireOne(ctx context.Context, id string, now time.Time) (bool, error) {
	expired := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res models.Reservation
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status = ? AND end_date < ?", id, status.ReservationConfirmed, now).
			Limit(1).Find(&res)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if err := s.recorder.Reservation(tx, res.ID, nil, historymodels.ActionExpired,
			expiryComment(tx, res)); err != nil {
			return err
		}
		if err := tx.Delete(&models.Reservation{}, "id = ?", res.ID).Error; err != nil {
			return err
		}
		if _, err := s.reconciler.Run(tx, res.ItemID, now); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

// expiryComment names the item and user in the audit entry; the
// reservation row is about to be deleted, so the entry is the only
// place this context survives.
func expiryComment(tx *gorm.DB, res models.Reservation) string {
	itemName := res.ItemID
	var item itemmodels.Item
	if err := tx.First(&item, "id = ?", res.ItemID).Error; err == nil {
		itemName = item.Name
	}

	userName := res.UserID
	var user usermodels.User
	if err := tx.First(&user, "id = ?", res.UserID).Error; err == nil {
		userName = user.Username
	}

	return fmt.Sprintf("reservation of %s for %s (%s to %s) expired",
		itemName, userName,
		res.StartDate.Format("2006-01-02"), res.EndDate.Format("2006-01-02"))
}
