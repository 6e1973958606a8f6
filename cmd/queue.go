package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Operator actions on the job queue.",
	}
	cmd.AddCommand(newQueueReviveDeadCmd())
	cmd.AddCommand(newQueueResetStuckCmd())
	cmd.AddCommand(newQueueStatsCmd())
	return cmd
}

func newQueueReviveDeadCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "revive-dead",
		Short: "Reset dead jobs back to queued with a fresh attempt budget.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			revived, err := a.Queue.ReviveDead(ctx, limit)
			if err != nil {
				return err
			}
			a.Logger.Info("dead jobs revived", zap.Int64("revived", revived))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum dead jobs to revive")
	return cmd
}

func newQueueResetStuckCmd() *cobra.Command {
	var minutes int

	cmd := &cobra.Command{
		Use:   "reset-stuck",
		Short: "Requeue processing jobs whose claimant went silent.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			olderThan := time.Duration(minutes) * time.Minute
			if minutes <= 0 {
				olderThan = a.Cfg.StuckAfter()
			}
			reset, err := a.Queue.ResetStuckProcessing(ctx, olderThan)
			if err != nil {
				return err
			}
			a.Logger.Info("stuck jobs reset",
				zap.Duration("older_than", olderThan),
				zap.Int64("reset", reset),
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&minutes, "minutes", 0, "staleness threshold in minutes (default from config)")
	return cmd
}

func newQueueStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print job counts per status as JSON.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Queue.Stats(ctx)
			if err != nil {
				return err
			}
			out := make(map[string]int64, len(stats))
			for status, count := range stats {
				out[string(status)] = count
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
