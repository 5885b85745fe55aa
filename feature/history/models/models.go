package models

import "time"

// History actions shared by all three logs.
const (
	ActionCreated   = "CREATED"
	ActionBorrowed  = "BORROWED"
	ActionReturned  = "RETURNED"
	ActionReserved  = "RESERVED"
	ActionCancelled = "CANCELLED"
	ActionExpired   = "EXPIRED"
	ActionRepaired  = "REPAIRED"
	ActionUpdated   = "UPDATED"
	ActionDeleted   = "DELETED"
	ActionLogin     = "LOGIN"
	ActionResetLink = "RESET_LINK_ISSUED"
)

// LoanHistory is an append-only audit entry for loan state changes.
// Rows are written in the same transaction as the change they describe
// and are never updated or deleted afterwards.
type LoanHistory struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	LoanID    string    `gorm:"type:varchar(36);index;not null" json:"loanId"`
	Action    string    `gorm:"size:30;not null" json:"action"`
	ActorID   *string   `gorm:"type:varchar(36)" json:"actorId,omitempty"`
	Comment   string    `gorm:"size:500" json:"comment,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (LoanHistory) TableName() string { return "loan_history" }

// ReservationHistory is the append-only audit log for reservations.
// It outlives the reservation row, which is deleted on expiry/cancel.
type ReservationHistory struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ReservationID string    `gorm:"type:varchar(36);index;not null" json:"reservationId"`
	Action        string    `gorm:"size:30;not null" json:"action"`
	ActorID       *string   `gorm:"type:varchar(36)" json:"actorId,omitempty"`
	Comment       string    `gorm:"size:500" json:"comment,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"createdAt"`
}

func (ReservationHistory) TableName() string { return "reservation_history" }

// UserActionHistory is the append-only audit log for user lifecycle
// and authentication events. ActorID is nil for system actions.
type UserActionHistory struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);index;not null" json:"userId"`
	Action    string    `gorm:"size:30;not null" json:"action"`
	ActorID   *string   `gorm:"type:varchar(36)" json:"actorId,omitempty"`
	Comment   string    `gorm:"size:500" json:"comment,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (UserActionHistory) TableName() string { return "user_action_history" }
