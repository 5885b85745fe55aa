package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"loankeeper/core/fault"
	"loankeeper/core/status"
	"loankeeper/feature/history"
	historymodels "loankeeper/feature/history/models"
	"loankeeper/feature/inventory"
	itemmodels "loankeeper/feature/inventory/models"
	"loankeeper/feature/reservation/models"
	usermodels "loankeeper/feature/user/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service handles reservation booking, cancellation, and expiry.
type Service struct {
	db         *gorm.DB
	recorder   *history.Recorder
	reconciler *inventory.Reconciler
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a new reservation service.
func NewService(db *gorm.DB, recorder *history.Recorder, reconciler *inventory.Reconciler, logger *zap.Logger) *Service {
	return &Service{
		db:         db,
		recorder:   recorder,
		reconciler: reconciler,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateInput carries the fields of a new booking.
type CreateInput struct {
	ItemID    string    `json:"itemId"`
	UserID    string    `json:"userId"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Create books an item. Range and conflict checks run before any
// write; a rejected booking leaves no trace.
func (s *Service) Create(ctx context.Context, in CreateInput, actorID string) (*models.Reservation, error) {
	if strings.TrimSpace(in.ItemID) == "" || strings.TrimSpace(in.UserID) == "" {
		return nil, fault.Validationf("itemId and userId are required")
	}
	if !in.EndDate.After(in.StartDate) {
		return nil, fault.InvalidRangef("reservation end %s is not after start %s",
			in.EndDate.Format(time.RFC3339), in.StartDate.Format(time.RFC3339))
	}

	res := &models.Reservation{
		ID:        uuid.NewString(),
		ItemID:    in.ItemID,
		UserID:    in.UserID,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Status:    status.ReservationConfirmed,
	}

	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item itemmodels.Item
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, "id = ?", in.ItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fault.NotFoundf("item %s", in.ItemID)
			}
			return err
		}
		if item.ReservationStatus == status.ItemOutOfOrder {
			return fault.Conflictf("item %s is out of order", item.Serial)
		}

		var users int64
		if err := tx.Model(&usermodels.User{}).
			Where("id = ?", in.UserID).Count(&users).Error; err != nil {
			return err
		}
		if users == 0 {
			return fault.NotFoundf("user %s", in.UserID)
		}

		conflictID, err := FindConflict(tx, in.ItemID, in.StartDate, in.EndDate, "")
		if err != nil {
			return err
		}
		if conflictID != "" {
			return fault.Conflictf("overlaps confirmed reservation %s", conflictID)
		}

		if err := tx.Create(res).Error; err != nil {
			return err
		}
		if err := s.recorder.Reservation(tx, res.ID, &actorID, historymodels.ActionReserved,
			fmt.Sprintf("item %s reserved for user %s", item.Serial, in.UserID)); err != nil {
			return err
		}

		// A booking whose window already covers now claims a free item
		// immediately; future windows leave the item as it stands.
		if item.ReservationStatus == status.ItemAvailable &&
			!in.StartDate.After(now) && !in.EndDate.Before(now) {
			return tx.Model(&itemmodels.Item{}).
				Where("id = ?", item.ID).
				Updates(map[string]any{
					"reservation_status": status.ItemReserved,
					"available":          false,
					"reserved_by":        in.UserID,
					"reserved_at":        in.StartDate,
					"updated_at":         now,
				}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Cancel removes a booking. The history entry outlives the row, which
// is deleted in the same transaction; the item is re-reconciled in
// case it was held for this booking.
func (s *Service) Cancel(ctx context.Context, id string, actorID string) error {
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res models.Reservation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&res, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fault.NotFoundf("reservation %s", id)
			}
			return err
		}

		if err := s.recorder.Reservation(tx, res.ID, &actorID, historymodels.ActionCancelled,
			fmt.Sprintf("reservation of item %s for user %s cancelled", res.ItemID, res.UserID)); err != nil {
			return err
		}
		if err := tx.Delete(&models.Reservation{}, "id = ?", res.ID).Error; err != nil {
			return err
		}

		_, err := s.reconciler.Run(tx, res.ItemID, now)
		return err
	})
}

// Query filters a reservation listing.
type Query struct {
	ItemID string
	UserID string
	Page   int
	Size   int
}

// List returns a page of reservations, soonest start first.
func (s *Service) List(ctx context.Context, q Query) ([]models.Reservation, int64, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}

	tx := s.db.WithContext(ctx).Model(&models.Reservation{})
	if q.ItemID != "" {
		tx = tx.Where("item_id = ?", q.ItemID)
	}
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reservations []models.Reservation
	err := tx.Order("start_date ASC").
		Offset((q.Page - 1) * q.Size).Limit(q.Size).
		Find(&reservations).Error
	return reservations, total, err
}
