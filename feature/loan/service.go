package loan

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
	"loankeeper/feature/loan/models"
	reservationmodels "loankeeper/feature/reservation/models"
	usermodels "loankeeper/feature/user/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service handles borrow and return transactions.
type Service struct {
	db         *gorm.DB
	recorder   *history.Recorder
	reconciler *inventory.Reconciler
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a new loan service.
func NewService(db *gorm.DB, recorder *history.Recorder, reconciler *inventory.Reconciler, logger *zap.Logger) *Service {
	return &Service{
		db:         db,
		recorder:   recorder,
		reconciler: reconciler,
		logger:     logger,
		now:        time.Now,
	}
}

// BorrowInput carries the fields of a new loan. BorrowedAt in the
// future records a SCHEDULED pickup; zero or past means borrow now.
type BorrowInput struct {
	ItemID     string     `json:"itemId"`
	UserID     string     `json:"userId"`
	BorrowedAt *time.Time `json:"borrowedAt,omitempty"`
	DueAt      time.Time  `json:"dueAt"`
	Note       string     `json:"note,omitempty"`
}

// Borrow records a loan. The whole check-then-write runs under a row
// lock on the item, so two concurrent borrows of the same item cannot
// both pass the open-loan check.
func (s *Service) Borrow(ctx context.Context, in BorrowInput, actorID string) (*models.Loan, error) {
	if strings.TrimSpace(in.ItemID) == "" || strings.TrimSpace(in.UserID) == "" {
		return nil, fault.Validationf("itemId and userId are required")
	}

	now := s.now()
	borrowedAt := now
	if in.BorrowedAt != nil {
		borrowedAt = *in.BorrowedAt
	}
	if in.DueAt.IsZero() || !in.DueAt.After(borrowedAt) {
		return nil, fault.InvalidRangef("due date must be after the borrow date")
	}

	loan := &models.Loan{
		ID:         uuid.NewString(),
		ItemID:     &in.ItemID,
		UserID:     in.UserID,
		BorrowedAt: borrowedAt,
		DueAt:      in.DueAt,
		Status:     status.LoanActive,
		Note:       in.Note,
	}
	if borrowedAt.After(now) {
		loan.Status = status.LoanScheduled
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item itemmodels.Item
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, "id = ?", in.ItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fault.NotFoundf("item %s", in.ItemID)
			}
			return err
		}

		var users int64
		if err := tx.Model(&usermodels.User{}).
			Where("id = ?", in.UserID).Count(&users).Error; err != nil {
			return err
		}
		if users == 0 {
			return fault.NotFoundf("user %s", in.UserID)
		}

		if item.ReservationStatus == status.ItemOutOfOrder {
			return fault.Conflictf("item %s is out of order", item.Serial)
		}
		if item.ReservationStatus == status.ItemReserved &&
			item.ReservedBy != nil && *item.ReservedBy != in.UserID {
			return fault.Conflictf("item %s is held for another user's reservation", item.Serial)
		}

		var open int64
		if err := tx.Model(&models.Loan{}).
			Where("item_id = ? AND returned_at IS NULL", in.ItemID).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return fault.Conflictf("item %s already has an open loan", item.Serial)
		}

		if err := tx.Create(loan).Error; err != nil {
			return err
		}
		if err := s.recorder.Loan(tx, loan.ID, &actorID, historymodels.ActionBorrowed,
			fmt.Sprintf("item %s borrowed by user %s", item.Name, in.UserID)); err != nil {
			return err
		}

		if err := s.fulfillReservations(tx, &item, in.UserID, borrowedAt, actorID); err != nil {
			return err
		}

		return tx.Model(&itemmodels.Item{}).
			Where("id = ?", item.ID).
			Updates(map[string]any{
				"reservation_status": status.ItemBorrowed,
				"available":          false,
				"reserved_by":        nil,
				"reserved_at":        nil,
				"updated_at":         now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// fulfillReservations consumes the borrower's confirmed reservations
// whose window covers the borrow date; the loan supersedes them.
func (s *Service) fulfillReservations(tx *gorm.DB, item *itemmodels.Item, userID string, at time.Time, actorID string) error {
	var reservations []reservationmodels.Reservation
	if err := tx.Where("item_id = ? AND user_id = ? AND status = ? AND start_date <= ? AND end_date >= ?",
		item.ID, userID, status.ReservationConfirmed, at, at).
		Find(&reservations).Error; err != nil {
		return err
	}
	for _, res := range reservations {
		if err := s.recorder.Reservation(tx, res.ID, &actorID, historymodels.ActionBorrowed,
			fmt.Sprintf("fulfilled by loan of item %s", item.Name)); err != nil {
			return err
		}
		if err := tx.Delete(&reservationmodels.Reservation{}, "id = ?", res.ID).Error; err != nil {
			return err
		}
	}
	return nil
}

// Return closes a loan. Calling it again on an already-returned loan
// is a no-op that reports the loan as it stands.
func (s *Service) Return(ctx context.Context, loanID string, actorID string) (*models.Loan, error) {
	var loan models.Loan
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&loan, "id = ?", loanID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fault.NotFoundf("loan %s", loanID)
			}
			return err
		}
		if loan.ReturnedAt != nil {
			return nil
		}

		if err := tx.Model(&models.Loan{}).
			Where("id = ?", loan.ID).
			Updates(map[string]any{
				"status":      status.LoanReturned,
				"returned_at": now,
				"returned_by": actorID,
				"updated_at":  now,
			}).Error; err != nil {
			return err
		}
		loan.Status = status.LoanReturned
		loan.ReturnedAt = &now
		loan.ReturnedBy = &actorID

		if loan.ItemID != nil {
			if err := s.settleItemAfterReturn(tx, *loan.ItemID, now); err != nil {
				return err
			}
		}

		return s.recorder.Loan(tx, loan.ID, &actorID, historymodels.ActionReturned,
			"loan returned")
	})
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// settleItemAfterReturn moves the item to its post-return state: held
// for the next confirmed reservation, kept BORROWED for a remaining
// scheduled loan, or back to AVAILABLE.
func (s *Service) settleItemAfterReturn(tx *gorm.DB, itemID string, now time.Time) error {
	var item itemmodels.Item
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "id = ?", itemID).Error; err != nil {
		return err
	}

	snap, err := s.reconciler.Snapshot(tx, &item)
	if err != nil {
		return err
	}

	next, reservedBy, reservedAt := status.AfterReturn(snap, now)
	return tx.Model(&itemmodels.Item{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"reservation_status": next,
			"available":          next == status.ItemAvailable,
			"reserved_by":        reservedBy,
			"reserved_at":        reservedAt,
			"updated_at":         now,
		}).Error
}

// Query filters a loan listing.
type Query struct {
	UserID string
	ItemID string
	Filter string // "", "open", "returned", "overdue"
	Page   int
	Size   int
}

// List returns a page of loans with their display status derived at
// the same instant, so overdue never depends on which path loaded it.
func (s *Service) List(ctx context.Context, q Query) ([]models.Loan, int64, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}

	now := s.now()
	tx := s.db.WithContext(ctx).Model(&models.Loan{})
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.ItemID != "" {
		tx = tx.Where("item_id = ?", q.ItemID)
	}
	switch q.Filter {
	case "open":
		tx = tx.Where("returned_at IS NULL")
	case "returned":
		tx = tx.Where("returned_at IS NOT NULL")
	case "overdue":
		tx = tx.Where("returned_at IS NULL AND due_at < ?", now)
	case "":
	default:
		return nil, 0, fault.Validationf("unknown loan filter %q", q.Filter)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var loans []models.Loan
	if err := tx.Order("borrowed_at DESC").
		Offset((q.Page - 1) * q.Size).Limit(q.Size).
		Find(&loans).Error; err != nil {
		return nil, 0, err
	}
	for i := range loans {
		loans[i].Status = status.EffectiveLoanStatus(loans[i].Snapshot(), now)
	}
	return loans, total, nil
}

// RepairItem reconciles one item, closing duplicate open loans and
// fixing drifted status fields. Safe to call on a healthy item.
func (s *Service) RepairItem(ctx context.Context, itemID string) (status.Plan, error) {
	var plan status.Plan
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.reconciler.Run(tx, itemID, now)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fault.NotFoundf("item %s", itemID)
			}
			return err
		}
		plan = p
		return nil
	})
	if err != nil {
		return status.Plan{}, err
	}
	return plan, nil
}
