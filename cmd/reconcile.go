package cmd

import (
	"fmt"
	"strings"
	"time"

	"loankeeper/core/config"
	"loankeeper/core/database"
	"loankeeper/core/logger"
	"loankeeper/core/status"
	"loankeeper/feature/history"
	"loankeeper/feature/inventory"
	itemmodels "loankeeper/feature/inventory/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var applyRepairs bool

// reconcileCmd walks the whole catalog and reports every item whose
// stored status, available mirror, or open loans disagree with the
// derived state.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile item status against loans and reservations",
	Long: `Reconcile every item's stored status against its loan and reservation
records.

Reports drifted statuses, stale available mirrors, stale reserving
users, and duplicate open loans. Read-only by default.

Examples:
  # Report only (dry-run)
  loankeeper reconcile

  # Apply the repairs
  loankeeper reconcile --apply`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&applyRepairs, "apply", false, "Apply the repairs instead of only reporting them")
	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	recorder := history.NewRecorder()
	reconciler := inventory.NewReconciler(recorder, l, nil)
	now := time.Now()

	var itemIDs []string
	if err := db.Model(&itemmodels.Item{}).Order("serial ASC").Pluck("id", &itemIDs).Error; err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	plans := make([]status.Plan, 0, len(itemIDs))
	for _, id := range itemIDs {
		var plan status.Plan
		if applyRepairs {
			err = db.Transaction(func(tx *gorm.DB) error {
				p, err := reconciler.Run(tx, id, now)
				plan = p
				return err
			})
		} else {
			var item itemmodels.Item
			if err = db.First(&item, "id = ?", id).Error; err == nil {
				var snap status.ItemSnapshot
				if snap, err = reconciler.Snapshot(db, &item); err == nil {
					plan = status.Reconcile(snap, now)
				}
			}
		}
		if err != nil {
			return fmt.Errorf("failed to reconcile item %s: %w", id, err)
		}
		plans = append(plans, plan)
	}

	report := func(p status.Plan) {
		l.Warn("Item needs repair",
			zap.String("item_id", p.ItemID),
			zap.String("desired", string(p.Desired)),
			zap.Strings("duplicate_loans", p.DuplicateLoanIDs),
			zap.String("reasons", strings.Join(p.Reasons, "; ")),
		)
	}
	summary := status.Summarize(plans, report)

	l.Info("Reconciliation finished",
		zap.Bool("applied", applyRepairs),
		zap.Int("total_items", summary.TotalItems),
		zap.Int("status_repairs", summary.StatusRepairs),
		zap.Int("mirror_repairs", summary.MirrorRepairs),
		zap.Int("duplicate_loans", summary.DuplicateLoans),
	)
	return nil
}
