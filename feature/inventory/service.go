package inventory

import (
	"context"
	"errors"
	"strings"
	"time"

	"loankeeper/core/fault"
	"loankeeper/core/status"
	"loankeeper/core/storage"
	"loankeeper/feature/history"
	historymodels "loankeeper/feature/history/models"
	"loankeeper/feature/inventory/models"
	loanmodels "loankeeper/feature/loan/models"
	reservationmodels "loankeeper/feature/reservation/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service handles catalog operations.
type Service struct {
	db         *gorm.DB
	recorder   *history.Recorder
	reconciler *Reconciler
	client     storage.Client
	bucket     string
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a new inventory service.
func NewService(db *gorm.DB, recorder *history.Recorder, reconciler *Reconciler, client storage.Client, bucket string, logger *zap.Logger) *Service {
	return &Service{
		db:         db,
		recorder:   recorder,
		reconciler: reconciler,
		client:     client,
		bucket:     bucket,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateInput carries the fields of a new catalog entry.
type CreateInput struct {
	Serial          string `json:"serial"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	ServiceCategory string `json:"serviceCategory"`
}

// Create adds a new item to the catalog.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Item, error) {
	if strings.TrimSpace(in.Serial) == "" || strings.TrimSpace(in.Name) == "" {
		return nil, fault.Validationf("serial and name are required")
	}
	if !models.ValidCategory(in.Category) {
		return nil, fault.Validationf("unknown category %q", in.Category)
	}

	item := &models.Item{
		ID:                uuid.NewString(),
		Serial:            in.Serial,
		Name:              in.Name,
		Category:          in.Category,
		ServiceCategory:   in.ServiceCategory,
		ReservationStatus: status.ItemAvailable,
		Available:         true,
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// Detail is an item with its derived state and current open loan.
type Detail struct {
	Item          models.Item       `json:"item"`
	DerivedStatus status.ItemStatus `json:"derivedStatus"`
	OpenLoan      *loanmodels.Loan  `json:"openLoan,omitempty"`
	Overdue       bool              `json:"overdue"`
}

// Get returns one item. Reads run the reconciler too: stored state that
// drifted from the loan records is repaired before it is reported.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	var detail Detail
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.reconciler.Run(tx, id, now); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fault.NotFoundf("item %s", id)
			}
			return err
		}
		if err := tx.First(&detail.Item, "id = ?", id).Error; err != nil {
			return err
		}

		var open loanmodels.Loan
		err := tx.Where("item_id = ? AND returned_at IS NULL", id).
			Order("borrowed_at ASC").First(&open).Error
		switch {
		case err == nil:
			open.Status = status.EffectiveLoanStatus(open.Snapshot(), now)
			detail.OpenLoan = &open
			detail.Overdue = open.Status == status.LoanOverdue
		case errors.Is(err, gorm.ErrRecordNotFound):
			// No open loan.
		default:
			return err
		}

		detail.DerivedStatus = detail.Item.ReservationStatus
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// Query filters an item listing.
type Query struct {
	Q      string // keyword against serial/name
	Status string // "", "available", "borrowed", "reserved", "out_of_order"
	Page   int
	Size   int
}

// List returns a page of items. Listing reads are unsynchronized;
// dashboards tolerate the brief drift between a write and its repair.
func (s *Service) List(ctx context.Context, q Query) ([]models.Item, int64, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}

	tx := s.db.WithContext(ctx).Model(&models.Item{})
	if kw := strings.TrimSpace(q.Q); kw != "" {
		like := "%" + strings.ToLower(kw) + "%"
		tx = tx.Where("LOWER(serial) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}
	switch q.Status {
	case "available":
		tx = tx.Where("available = TRUE")
	case "borrowed":
		tx = tx.Where("reservation_status = ?", status.ItemBorrowed)
	case "reserved":
		tx = tx.Where("reservation_status = ?", status.ItemReserved)
	case "out_of_order":
		tx = tx.Where("reservation_status = ?", status.ItemOutOfOrder)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []models.Item
	err := tx.Order("created_at DESC").Offset((q.Page - 1) * q.Size).Limit(q.Size).Find(&items).Error
	return items, total, err
}

// Update applies a validated update request. Direct status changes are
// rejected with a conflict while the item has an open loan.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest, actorID string) (*models.Item, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var item models.Item
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fault.NotFoundf("item %s", id)
			}
			return err
		}

		updates := map[string]any{"updated_at": now}
		if req.Rename != nil {
			updates["name"] = req.Rename.Name
		}
		if req.ChangeCategory != nil {
			updates["category"] = req.ChangeCategory.Category
		}
		if req.ChangeServiceCategory != nil {
			updates["service_category"] = req.ChangeServiceCategory.ServiceCategory
		}

		if sc := req.SetReservationStatus; sc != nil {
			snap, err := s.reconciler.Snapshot(tx, &item)
			if err != nil {
				return err
			}
			if !status.CanModifyStatus(snap) {
				return fault.Conflictf("item %s has an open loan; status is derived and cannot be set", item.Serial)
			}
			updates["reservation_status"] = sc.Target
			updates["available"] = sc.Target == status.ItemAvailable
			if sc.Target == status.ItemReserved {
				updates["reserved_by"] = sc.ActingUserID
				updates["reserved_at"] = now
			} else {
				updates["reserved_by"] = nil
				updates["reserved_at"] = nil
			}
		}

		if err := tx.Model(&models.Item{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&item, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete removes an item. Blocked while any non-returned loan exists;
// returned loans are detached, confirmed reservations are cancelled
// with a history entry each.
func (s *Service) Delete(ctx context.Context, id string, actorID string) error {
	var photoObject string
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fault.NotFoundf("item %s", id)
			}
			return err
		}

		var open int64
		if err := tx.Model(&loanmodels.Loan{}).
			Where("item_id = ? AND returned_at IS NULL", id).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return fault.Conflictf("item %s still has %d open loan(s)", item.Serial, open)
		}

		// Returned loans survive the item; only the reference goes.
		if err := tx.Model(&loanmodels.Loan{}).
			Where("item_id = ?", id).
			Updates(map[string]any{"item_id": nil, "updated_at": now}).Error; err != nil {
			return err
		}

		var reservations []reservationmodels.Reservation
		if err := tx.Where("item_id = ? AND status = ?", id, status.ReservationConfirmed).
			Find(&reservations).Error; err != nil {
			return err
		}
		actor := actorID
		for _, res := range reservations {
			if err := s.recorder.Reservation(tx, res.ID, &actor, historymodels.ActionCancelled,
				"cancelled because item "+item.Serial+" was deleted"); err != nil {
				return err
			}
		}
		if err := tx.Where("item_id = ?", id).
			Delete(&reservationmodels.Reservation{}).Error; err != nil {
			return err
		}

		photoObject = item.PhotoObject
		return tx.Delete(&models.Item{ID: id}).Error
	})
	if err != nil {
		return err
	}

	// Best effort: the row is gone, a stray object is not worth failing over.
	if photoObject != "" {
		if err := s.removePhotoObject(ctx, photoObject); err != nil {
			s.logger.Warn("Failed to remove photo for deleted item",
				zap.String("item_id", id), zap.Error(err))
		}
	}
	return nil
}
