package models

import (
	"time"

	"loankeeper/core/status"
)

// Loan records one borrow of an item by a user.
//
// ItemID is nullable: deleting an item detaches its returned loans
// instead of cascading them. The stored Status never holds OVERDUE;
// status.EffectiveLoanStatus derives that at read time.
type Loan struct {
	ID         string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	ItemID     *string           `gorm:"type:varchar(36);index" json:"itemId,omitempty"`
	UserID     string            `gorm:"type:varchar(36);index;not null" json:"userId"`
	BorrowedAt time.Time         `gorm:"index;not null" json:"borrowedAt"`
	DueAt      time.Time         `gorm:"not null" json:"dueAt"`
	ReturnedAt *time.Time        `gorm:"index" json:"returnedAt,omitempty"`
	ReturnedBy *string           `gorm:"type:varchar(36)" json:"returnedBy,omitempty"`
	Status     status.LoanStatus `gorm:"size:20;not null;default:'ACTIVE'" json:"status"`
	Note       string            `gorm:"size:255" json:"note,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func (Loan) TableName() string { return "loans" }

// Snapshot converts the row into the engine's view.
func (l Loan) Snapshot() status.LoanSnapshot {
	return status.LoanSnapshot{
		ID:         l.ID,
		UserID:     l.UserID,
		Status:     l.Status,
		BorrowedAt: l.BorrowedAt,
		DueAt:      l.DueAt,
		ReturnedAt: l.ReturnedAt,
	}
}
