package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmehdipour/subhub/internal/app"
	"github.com/jmehdipour/subhub/internal/logger"
	"github.com/spf13/cobra"
)

var sweepHoursBack int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Replay recent provider events that never reached the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		hours := sweepHoursBack
		if hours <= 0 {
			hours = cfg.Sweep.HoursBack
		}

		a, err := app.Build(cmd.Context(), cfg, logger.Log)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		st, err := a.Sweeper.Sweep(cmd.Context(), hours)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(st)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepHoursBack, "hours-back", 0, "window to replay (default sweep.hours_back)")
}
