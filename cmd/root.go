package cmd

import (
	"fmt"
	"os"

	"loankeeper/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "loankeeper",
	Short: "Loan Keeper Service",
	Long: `Loan Keeper manages a lendable catalog: items, loans, reservations,
and the append-only history behind them. The stored item status is
derived state, reconciled against the loan and reservation records on
every write.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// CLI errors go through the console logger so they match the
		// rest of the tool's output.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
