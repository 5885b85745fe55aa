package models

import (
	"time"

	"loankeeper/core/status"
)

// Reservation holds an item for a user over a date range.
// Expired and cancelled reservations are deleted after their history
// entry is written; the row itself is not kept as an archive.
type Reservation struct {
	ID        string                   `gorm:"type:varchar(36);primaryKey" json:"id"`
	ItemID    string                   `gorm:"type:varchar(36);index;not null" json:"itemId"`
	UserID    string                   `gorm:"type:varchar(36);index;not null" json:"userId"`
	StartDate time.Time                `gorm:"index;not null" json:"startDate"`
	EndDate   time.Time                `gorm:"index;not null" json:"endDate"`
	Status    status.ReservationStatus `gorm:"size:20;not null;default:'CONFIRMED'" json:"status"`
	CreatedAt time.Time                `json:"createdAt"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

func (Reservation) TableName() string { return "reservations" }

// Snapshot converts the row into the engine's view.
func (r Reservation) Snapshot() status.ReservationSnapshot {
	return status.ReservationSnapshot{
		ID:        r.ID,
		UserID:    r.UserID,
		Status:    r.Status,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
	}
}
