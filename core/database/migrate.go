package database

import (
	historymodels "loankeeper/feature/history/models"
	inventorymodels "loankeeper/feature/inventory/models"
	loanmodels "loankeeper/feature/loan/models"
	reservationmodels "loankeeper/feature/reservation/models"
	usermodels "loankeeper/feature/user/models"

	"gorm.io/gorm"
)

// Migrate creates or updates the Loankeeper schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&usermodels.User{},
		&inventorymodels.Item{},
		&loanmodels.Loan{},
		&reservationmodels.Reservation{},
		&historymodels.LoanHistory{},
		&historymodels.ReservationHistory{},
		&historymodels.UserActionHistory{},
	); err != nil {
		return err
	}

	// Open-loan lookups drive every reconciliation pass; the composite
	// index keeps the "current loan for item" query off a table scan.
	// MySQL has no partial unique indexes, so the at-most-one-open-loan
	// invariant is enforced by the row-locked borrow transaction instead.
	if !db.Migrator().HasIndex(&loanmodels.Loan{}, "loans_item_borrowed_at") {
		if err := db.Exec(`CREATE INDEX loans_item_borrowed_at ON loans (item_id, borrowed_at DESC)`).Error; err != nil {
			return err
		}
	}
	return nil
}
