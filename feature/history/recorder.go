package history

import (
	"loankeeper/feature/history/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Recorder appends audit entries. Every method takes the caller's
// transaction handle: the history row and the state change it describes
// commit or roll back together. There are no update or delete paths.
type Recorder struct{}

// NewRecorder creates a history recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Loan appends a loan history entry. actorID is nil for system actions.
func (r *Recorder) Loan(tx *gorm.DB, loanID string, actorID *string, action, comment string) error {
	return tx.Create(&models.LoanHistory{
		ID:      uuid.NewString(),
		LoanID:  loanID,
		Action:  action,
		ActorID: actorID,
		Comment: comment,
	}).Error
}

// Reservation appends a reservation history entry.
func (r *Recorder) Reservation(tx *gorm.DB, reservationID string, actorID *string, action, comment string) error {
	return tx.Create(&models.ReservationHistory{
		ID:            uuid.NewString(),
		ReservationID: reservationID,
		Action:        action,
		ActorID:       actorID,
		Comment:       comment,
	}).Error
}

// User appends a user action history entry.
func (r *Recorder) User(tx *gorm.DB, userID string, actorID *string, action, comment string) error {
	return tx.Create(&models.UserActionHistory{
		ID:      uuid.NewString(),
		UserID:  userID,
		Action:  action,
		ActorID: actorID,
		Comment: comment,
	}).Error
}
