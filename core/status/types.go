package status

import "time"

// ItemStatus is the stored availability state of an item.
type ItemStatus string

const (
	ItemAvailable  ItemStatus = "AVAILABLE"
	ItemReserved   ItemStatus = "RESERVED"
	ItemBorrowed   ItemStatus = "BORROWED"
	ItemOutOfOrder ItemStatus = "OUT_OF_ORDER"
)

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemAvailable, ItemReserved, ItemBorrowed, ItemOutOfOrder:
		return true
	default:
		return false
	}
}

// LoanStatus is the lifecycle state of a loan.
//
// OVERDUE is never stored; it is derived at read time from DueAt vs. now
// by EffectiveLoanStatus so that every read path agrees at the same instant.
type LoanStatus string

const (
	LoanScheduled LoanStatus = "SCHEDULED"
	LoanActive    LoanStatus = "ACTIVE"
	LoanOverdue   LoanStatus = "OVERDUE"
	LoanReturned  LoanStatus = "RETURNED"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationPending   ReservationStatus = "PENDING"
)

// LoanSnapshot is the engine's view of a loan row.
type LoanSnapshot struct {
	ID         string
	UserID     string
	Status     LoanStatus
	BorrowedAt time.Time
	DueAt      time.Time
	ReturnedAt *time.Time
}

// Open reports whether the loan still occupies its item: a non-returned
// SCHEDULED, ACTIVE, or OVERDUE loan.
func (l LoanSnapshot) Open() bool {
	if l.ReturnedAt != nil {
		return false
	}
	switch l.Status {
	case LoanScheduled, LoanActive, LoanOverdue:
		return true
	default:
		return false
	}
}

// ReservationSnapshot is the engine's view of a reservation row.
type ReservationSnapshot struct {
	ID        string
	UserID    string
	Status    ReservationStatus
	StartDate time.Time
	EndDate   time.Time
}

// ItemSnapshot bundles an item's stored fields with its loan and
// reservation records for a reconciliation pass.
type ItemSnapshot struct {
	ID           string
	Stored       ItemStatus
	Available    bool
	ReservedBy   *string
	ReservedAt   *time.Time
	Loans        []LoanSnapshot
	Reservations []ReservationSnapshot
}

// Plan is the outcome of reconciling one item. Applying the plan and
// reconciling again yields a plan with Changed == false.
type Plan struct {
	ItemID string

	// Desired stored status after reconciliation.
	Desired ItemStatus
	// DesiredAvailable is the denormalized mirror: Desired == AVAILABLE.
	DesiredAvailable bool
	// ReservedBy / ReservedAt to store alongside a RESERVED status;
	// nil when Desired is not RESERVED.
	ReservedBy *string
	ReservedAt *time.Time

	// DuplicateLoanIDs lists open loans beyond the earliest-borrowed one.
	// These violate the at-most-one-open-loan invariant and must be closed.
	DuplicateLoanIDs []string

	// StatusChanged reports that the stored status disagrees with Desired.
	StatusChanged bool
	// MirrorChanged reports that the available flag disagrees with Desired.
	MirrorChanged bool
	// Changed reports whether the stored fields disagree with the plan.
	Changed bool
	// Reasons describes each repair in operator-readable form.
	Reasons []string
}

// Summary aggregates reconciliation results across a catalog pass.
type Summary struct {
	TotalItems     int `json:"total_items"`
	StatusRepairs  int `json:"status_repairs"`
	MirrorRepairs  int `json:"mirror_repairs"`
	DuplicateLoans int `json:"duplicate_loans"`
}

// Reporter receives every plan that requires a repair. Operators hook
// this to audit how often stored state drifts from derived state.
type Reporter func(Plan)
