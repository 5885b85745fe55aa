package history

import (
	"context"

	"loankeeper/feature/history/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service lists the audit logs.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a new history service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Query filters a history listing.
type Query struct {
	EntityID string
	Action   string
	Page     int
	Size     int
}

func (q *Query) normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 50
	}
}

// ListLoanHistory returns loan history entries, newest first.
func (s *Service) ListLoanHistory(ctx context.Context, q Query) ([]models.LoanHistory, int64, error) {
	q.normalize()
	tx := s.db.WithContext(ctx).Model(&models.LoanHistory{})
	if q.EntityID != "" {
		tx = tx.Where("loan_id = ?", q.EntityID)
	}
	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.LoanHistory
	err := tx.Order("created_at DESC").Offset((q.Page - 1) * q.Size).Limit(q.Size).Find(&rows).Error
	return rows, total, err
}

// ListReservationHistory returns reservation history entries, newest first.
func (s *Service) ListReservationHistory(ctx context.Context, q Query) ([]models.ReservationHistory, int64, error) {
	q.normalize()
	tx := s.db.WithContext(ctx).Model(&models.ReservationHistory{})
	if q.EntityID != "" {
		tx = tx.Where("reservation_id = ?", q.EntityID)
	}
	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.ReservationHistory
	err := tx.Order("created_at DESC").Offset((q.Page - 1) * q.Size).Limit(q.Size).Find(&rows).Error
	return rows, total, err
}

// ListUserHistory returns user action history entries, newest first.
func (s *Service) ListUserHistory(ctx context.Context, q Query) ([]models.UserActionHistory, int64, error) {
	q.normalize()
	tx := s.db.WithContext(ctx).Model(&models.UserActionHistory{})
	if q.EntityID != "" {
		tx = tx.Where("user_id = ?", q.EntityID)
	}
	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.UserActionHistory
	err := tx.Order("created_at DESC").Offset((q.Page - 1) * q.Size).Limit(q.Size).Find(&rows).Error
	return rows, total, err
}
