package cmd

import (
	"context"
	"fmt"
	"time"

	"loankeeper/core/config"
	"loankeeper/core/database"
	"loankeeper/core/logger"
	"loankeeper/feature/history"
	"loankeeper/feature/inventory"
	"loankeeper/feature/reservation"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// sweepCmd runs one reservation expiry sweep and exits. The same code
// path runs on the cron schedule inside the server; this command is
// for operators and for external schedulers.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue reservations once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		svc := reservation.NewService(db, recorder, reconciler, l)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		count, err := svc.SweepExpired(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		l.Info("Sweep finished", zap.Int("expired", count))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(sweepCmd)
}
