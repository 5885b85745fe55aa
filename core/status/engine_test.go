package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var (
	testNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	day     = 24 * time.Hour
)

func openLoan(id string, st LoanStatus, borrowedAt time.Time) LoanSnapshot {
	return LoanSnapshot{
		ID:         id,
		UserID:     "user-1",
		Status:     st,
		BorrowedAt: borrowedAt,
		DueAt:      borrowedAt.Add(7 * day),
	}
}

func returnedLoan(id string, borrowedAt, returnedAt time.Time) LoanSnapshot {
	l := openLoan(id, LoanReturned, borrowedAt)
	l.ReturnedAt = &returnedAt
	return l
}

func TestIsBorrowed(t *testing.T) {
	tests := []struct {
		name  string
		loans []LoanSnapshot
		want  bool
	}{
		{"no loans", nil, false},
		{"active loan", []LoanSnapshot{openLoan("l1", LoanActive, testNow.Add(-day))}, true},
		{"overdue loan", []LoanSnapshot{openLoan("l1", LoanOverdue, testNow.Add(-10*day))}, true},
		{"scheduled loan", []LoanSnapshot{openLoan("l1", LoanScheduled, testNow.Add(day))}, true},
		{"returned loan", []LoanSnapshot{returnedLoan("l1", testNow.Add(-3*day), testNow.Add(-day))}, false},
		{"returned then active", []LoanSnapshot{
			returnedLoan("l1", testNow.Add(-3*day), testNow.Add(-2*day)),
			openLoan("l2", LoanActive, testNow.Add(-day)),
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := ItemSnapshot{ID: "item-1", Stored: ItemAvailable, Available: true, Loans: tt.loans}
			assert.Equal(t, tt.want, IsBorrowed(item))
			assert.Equal(t, !tt.want, CanModifyStatus(item))
		})
	}
}

func TestDerive(t *testing.T) {
	t.Run("open loan forces borrowed", func(t *testing.T) {
		item := ItemSnapshot{
			Stored: ItemAvailable,
			Loans:  []LoanSnapshot{openLoan("l1", LoanActive, testNow.Add(-day))},
		}
		assert.Equal(t, ItemBorrowed, Derive(item))
	})

	t.Run("stored status passes through", func(t *testing.T) {
		for _, st := range []ItemStatus{ItemAvailable, ItemReserved, ItemOutOfOrder} {
			assert.Equal(t, st, Derive(ItemSnapshot{Stored: st}))
		}
	})
}

func TestEffectiveLoanStatus(t *testing.T) {
	tests := []struct {
		name string
		loan LoanSnapshot
		want LoanStatus
	}{
		{"returned", returnedLoan("l1", testNow.Add(-3*day), testNow.Add(-day)), LoanReturned},
		{"scheduled before pickup", openLoan("l1", LoanScheduled, testNow.Add(2*day)), LoanScheduled},
		{"scheduled past pickup", openLoan("l1", LoanScheduled, testNow.Add(-day)), LoanActive},
		{"active within due date", openLoan("l1", LoanActive, testNow.Add(-day)), LoanActive},
		{"active past due date", openLoan("l1", LoanActive, testNow.Add(-10*day)), LoanOverdue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveLoanStatus(tt.loan, testNow))
		})
	}

	t.Run("read paths agree at the same instant", func(t *testing.T) {
		l := openLoan("l1", LoanActive, testNow.Add(-10*day))
		assert.Equal(t, EffectiveLoanStatus(l, testNow), EffectiveLoanStatus(l, testNow))
		assert.Equal(t, LoanActive, EffectiveLoanStatus(l, l.DueAt.Add(-time.Minute)))
		assert.Equal(t, LoanOverdue, EffectiveLoanStatus(l, l.DueAt.Add(time.Minute)))
	})
}

func TestNextReservation(t *testing.T) {
	confirmed := func(id string, start, end time.Time) ReservationSnapshot {
		return ReservationSnapshot{ID: id, UserID: "user-" + id, Status: ReservationConfirmed, StartDate: start, EndDate: end}
	}

	t.Run("earliest start wins", func(t *testing.T) {
		item := ItemSnapshot{Reservations: []ReservationSnapshot{
			confirmed("b", testNow.Add(5*day), testNow.Add(8*day)),
			confirmed("a", testNow.Add(2*day), testNow.Add(4*day)),
		}}
		r := NextReservation(item, testNow)
		assert.Equal(t, "a", r.ID)
	})

	t.Run("expired and non-confirmed skipped", func(t *testing.T) {
		item := ItemSnapshot{Reservations: []ReservationSnapshot{
			confirmed("past", testNow.Add(-5*day), testNow.Add(-2*day)),
			{ID: "pending", Status: ReservationPending, StartDate: testNow, EndDate: testNow.Add(day)},
			{ID: "cancelled", Status: ReservationCancelled, StartDate: testNow, EndDate: testNow.Add(day)},
		}}
		assert.Nil(t, NextReservation(item, testNow))
	})

	t.Run("running reservation counts", func(t *testing.T) {
		item := ItemSnapshot{Reservations: []ReservationSnapshot{
			confirmed("now", testNow.Add(-day), testNow.Add(day)),
		}}
		r := NextReservation(item, testNow)
		assert.Equal(t, "now", r.ID)
	})
}

func TestAfterReturn(t *testing.T) {
	t.Run("reservation claims the item", func(t *testing.T) {
		item := ItemSnapshot{Reservations: []ReservationSnapshot{
			{ID: "r1", UserID: "user-9", Status: ReservationConfirmed, StartDate: testNow.Add(day), EndDate: testNow.Add(3 * day)},
		}}
		st, by, at := AfterReturn(item, testNow)
		assert.Equal(t, ItemReserved, st)
		assert.Equal(t, "user-9", *by)
		assert.Equal(t, testNow.Add(day), *at)
	})

	t.Run("scheduled loan keeps it borrowed", func(t *testing.T) {
		item := ItemSnapshot{Loans: []LoanSnapshot{openLoan("l2", LoanScheduled, testNow.Add(2*day))}}
		st, by, _ := AfterReturn(item, testNow)
		assert.Equal(t, ItemBorrowed, st)
		assert.Nil(t, by)
	})

	t.Run("otherwise available", func(t *testing.T) {
		st, by, _ := AfterReturn(ItemSnapshot{}, testNow)
		assert.Equal(t, ItemAvailable, st)
		assert.Nil(t, by)
	})

	t.Run("reservation beats scheduled loan", func(t *testing.T) {
		item := ItemSnapshot{
			Loans: []LoanSnapshot{openLoan("l2", LoanScheduled, testNow.Add(2*day))},
			Reservations: []ReservationSnapshot{
				{ID: "r1", UserID: "user-9", Status: ReservationConfirmed, StartDate: testNow.Add(day), EndDate: testNow.Add(3 * day)},
			},
		}
		st, _, _ := AfterReturn(item, testNow)
		assert.Equal(t, ItemReserved, st)
	})
}
