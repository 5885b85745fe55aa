package inventory

import (
	"fmt"
	"strings"
	"time"

	"loankeeper/core/status"
	"loankeeper/feature/history"
	historymodels "loankeeper/feature/history/models"
	"loankeeper/feature/inventory/models"
	loanmodels "loankeeper/feature/loan/models"
	reservationmodels "loankeeper/feature/reservation/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reconciler bridges the pure status engine and the database. Every
// write path that can change loan or reservation state runs it against
// the affected item inside the same transaction, so the stored status
// and available mirror can never drift past a commit.
type Reconciler struct {
	recorder *history.Recorder
	logger   *zap.Logger
	report   status.Reporter
}

// NewReconciler creates a reconciler. report may be nil; repairs are
// always logged, the hook is for additional operator auditing.
func NewReconciler(recorder *history.Recorder, logger *zap.Logger, report status.Reporter) *Reconciler {
	return &Reconciler{recorder: recorder, logger: logger, report: report}
}

// Snapshot loads the item's loans and reservations into the engine's view.
func (r *Reconciler) Snapshot(tx *gorm.DB, item *models.Item) (status.ItemSnapshot, error) {
	snap := status.ItemSnapshot{
		ID:         item.ID,
		Stored:     item.ReservationStatus,
		Available:  item.Available,
		ReservedBy: item.ReservedBy,
		ReservedAt: item.ReservedAt,
	}

	var loans []loanmodels.Loan
	if err := tx.Where("item_id = ?", item.ID).Find(&loans).Error; err != nil {
		return snap, err
	}
	for _, l := range loans {
		snap.Loans = append(snap.Loans, l.Snapshot())
	}

	var reservations []reservationmodels.Reservation
	if err := tx.Where("item_id = ?", item.ID).Find(&reservations).Error; err != nil {
		return snap, err
	}
	for _, res := range reservations {
		snap.Reservations = append(snap.Reservations, res.Snapshot())
	}

	return snap, nil
}

// Run locks the item row, reconciles it, and applies the plan. It is
// idempotent: a second call immediately after finds nothing to repair.
func (r *Reconciler) Run(tx *gorm.DB, itemID string, now time.Time) (status.Plan, error) {
	var item models.Item
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "id = ?", itemID).Error; err != nil {
		return status.Plan{}, err
	}

	snap, err := r.Snapshot(tx, &item)
	if err != nil {
		return status.Plan{}, err
	}

	plan := status.Reconcile(snap, now)
	if !plan.Changed {
		return plan, nil
	}
	return plan, r.Apply(tx, &item, plan, now)
}

// Apply writes the plan: item status fields, duplicate-loan closures,
// and the audit entries documenting each repair.
func (r *Reconciler) Apply(tx *gorm.DB, item *models.Item, plan status.Plan, now time.Time) error {
	if err := tx.Model(&models.Item{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"reservation_status": plan.Desired,
			"available":          plan.DesiredAvailable,
			"reserved_by":        plan.ReservedBy,
			"reserved_at":        plan.ReservedAt,
			"updated_at":         now,
		}).Error; err != nil {
		return err
	}

	for _, loanID := range plan.DuplicateLoanIDs {
		if err := tx.Model(&loanmodels.Loan{}).
			Where("id = ? AND returned_at IS NULL", loanID).
			Updates(map[string]any{
				"status":      status.LoanReturned,
				"returned_at": now,
				"updated_at":  now,
			}).Error; err != nil {
			return err
		}
		// System action: no actor.
		if err := r.recorder.Loan(tx, loanID, nil, historymodels.ActionRepaired,
			fmt.Sprintf("closed as duplicate open loan for item %s", item.Serial)); err != nil {
			return err
		}
	}

	r.logger.Warn("Repaired item status",
		zap.String("item_id", item.ID),
		zap.String("from", string(item.ReservationStatus)),
		zap.String("to", string(plan.Desired)),
		zap.String("reasons", strings.Join(plan.Reasons, "; ")),
	)
	if r.report != nil {
		r.report(plan)
	}

	item.ReservationStatus = plan.Desired
	item.Available = plan.DesiredAvailable
	item.ReservedBy = plan.ReservedBy
	item.ReservedAt = plan.ReservedAt
	return nil
}
