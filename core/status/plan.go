package status

import (
	"fmt"
	"sort"
	"time"
)

// Reconcile computes the repair plan for one item. It is pure and
// idempotent: applying the plan to the stored row and reconciling the
// updated snapshot again produces a plan with Changed == false.
func Reconcile(item ItemSnapshot, now time.Time) Plan {
	plan := Plan{ItemID: item.ID}

	open := openLoans(item)

	// At-most-one-open-loan: everything past the earliest borrow is a
	// duplicate that the caller must close.
	if len(open) > 1 {
		for _, l := range open[1:] {
			plan.DuplicateLoanIDs = append(plan.DuplicateLoanIDs, l.ID)
			plan.Reasons = append(plan.Reasons,
				fmt.Sprintf("loan %s duplicates open loan %s", l.ID, open[0].ID))
		}
	}

	switch {
	case len(open) > 0:
		plan.Desired = ItemBorrowed

	case item.Stored == ItemBorrowed:
		// Stored says borrowed but no open loan backs it up.
		plan.Desired, plan.ReservedBy, plan.ReservedAt = AfterReturn(item, now)

	case item.Stored == ItemReserved:
		if r := NextReservation(item, now); r != nil {
			uid := r.UserID
			start := r.StartDate
			plan.Desired, plan.ReservedBy, plan.ReservedAt = ItemReserved, &uid, &start
		} else {
			// Reserved with no confirmed reservation left behind it.
			plan.Desired = ItemAvailable
		}

	default:
		plan.Desired = item.Stored
	}

	plan.DesiredAvailable = plan.Desired == ItemAvailable

	if plan.Desired != item.Stored {
		plan.StatusChanged = true
		plan.Changed = true
		plan.Reasons = append(plan.Reasons,
			fmt.Sprintf("status %s does not match derived %s", item.Stored, plan.Desired))
	}
	if plan.DesiredAvailable != item.Available {
		plan.MirrorChanged = true
		plan.Changed = true
		plan.Reasons = append(plan.Reasons,
			fmt.Sprintf("available=%t does not mirror status %s", item.Available, plan.Desired))
	}
	if plan.Desired == ItemReserved && !sameRef(plan.ReservedBy, item.ReservedBy) {
		plan.Changed = true
		plan.Reasons = append(plan.Reasons, "reserving user does not match next reservation")
	}
	if plan.Desired == ItemReserved && !sameTime(plan.ReservedAt, item.ReservedAt) {
		plan.Changed = true
		plan.Reasons = append(plan.Reasons, "hold timestamp does not match next reservation")
	}
	if plan.Desired != ItemReserved && item.ReservedBy != nil {
		plan.Changed = true
		plan.Reasons = append(plan.Reasons, "stale reserving user on non-reserved item")
	}
	if len(plan.DuplicateLoanIDs) > 0 {
		plan.Changed = true
	}

	return plan
}

// Summarize folds a set of plans into aggregate repair counts and
// feeds each changed plan to the reporter, when one is set.
func Summarize(plans []Plan, report Reporter) Summary {
	s := Summary{TotalItems: len(plans)}
	for _, p := range plans {
		if !p.Changed {
			continue
		}
		if p.StatusChanged {
			s.StatusRepairs++
		}
		if p.MirrorChanged {
			s.MirrorRepairs++
		}
		s.DuplicateLoans += len(p.DuplicateLoanIDs)
		if report != nil {
			report(p)
		}
	}
	return s
}

// openLoans returns the item's open loans ordered by borrow date.
func openLoans(item ItemSnapshot) []LoanSnapshot {
	var open []LoanSnapshot
	for _, l := range item.Loans {
		if l.Open() {
			open = append(open, l)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		return open[i].BorrowedAt.Before(open[j].BorrowedAt)
	})
	return open
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
