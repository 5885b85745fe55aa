package status

import "time"

// IsBorrowed reports whether the item has at least one open loan.
// SCHEDULED loans count: the item is committed even before pickup.
func IsBorrowed(item ItemSnapshot) bool {
	for _, l := range item.Loans {
		if l.Open() {
			return true
		}
	}
	return false
}

// Derive computes the canonical status of an item. An open loan forces
// BORROWED; otherwise the stored status passes through unchanged.
func Derive(item ItemSnapshot) ItemStatus {
	if IsBorrowed(item) {
		return ItemBorrowed
	}
	return item.Stored
}

// CanModifyStatus reports whether a status-changing request may proceed.
// Callers must reject with a conflict error when this is false.
func CanModifyStatus(item ItemSnapshot) bool {
	return !IsBorrowed(item)
}

// EffectiveLoanStatus derives the display status of a loan at a given
// instant. OVERDUE exists only here: the stored column keeps SCHEDULED
// or ACTIVE, and every read path calls this function so that two reads
// at the same instant always agree.
func EffectiveLoanStatus(l LoanSnapshot, now time.Time) LoanStatus {
	if l.ReturnedAt != nil || l.Status == LoanReturned {
		return LoanReturned
	}
	if l.Status == LoanScheduled && l.BorrowedAt.After(now) {
		return LoanScheduled
	}
	if !l.DueAt.IsZero() && l.DueAt.Before(now) {
		return LoanOverdue
	}
	return LoanActive
}

// NextReservation returns the upcoming reservation the item should be
// held for: the CONFIRMED reservation with the earliest start date
// whose window has not yet ended at now. Nil when there is none.
func NextReservation(item ItemSnapshot, now time.Time) *ReservationSnapshot {
	var next *ReservationSnapshot
	for i := range item.Reservations {
		r := &item.Reservations[i]
		if r.Status != ReservationConfirmed || r.EndDate.Before(now) {
			continue
		}
		if next == nil || r.StartDate.Before(next.StartDate) {
			next = r
		}
	}
	return next
}

// NextScheduledLoan returns the open SCHEDULED loan with the earliest
// borrow date, or nil.
func NextScheduledLoan(item ItemSnapshot) *LoanSnapshot {
	var next *LoanSnapshot
	for i := range item.Loans {
		l := &item.Loans[i]
		if !l.Open() || l.Status != LoanScheduled {
			continue
		}
		if next == nil || l.BorrowedAt.Before(next.BorrowedAt) {
			next = l
		}
	}
	return next
}

// AfterReturn decides where an item lands once its open loan closes.
// A pending confirmed reservation claims the item for its user; failing
// that, another scheduled loan keeps it BORROWED; otherwise AVAILABLE.
// The snapshot must already reflect the closed loan.
func AfterReturn(item ItemSnapshot, now time.Time) (ItemStatus, *string, *time.Time) {
	if r := NextReservation(item, now); r != nil {
		uid := r.UserID
		start := r.StartDate
		return ItemReserved, &uid, &start
	}
	if NextScheduledLoan(item) != nil {
		return ItemBorrowed, nil, nil
	}
	return ItemAvailable, nil, nil
}
