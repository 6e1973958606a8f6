package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPromoteCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote recently published staging rows and prune old product rows.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cutoff := time.Now().UTC().AddDate(0, 0, -a.Cfg.CutoffDays)

			promoted, err := a.Promoter.PromoteRecentRecipes(ctx, cutoff, limit)
			if err != nil {
				return err
			}
			pruned, err := a.Promoter.PruneOlderThan(ctx, cutoff)
			if err != nil {
				return err
			}

			a.Logger.Info("promotion pass complete",
				zap.Time("cutoff", cutoff),
				zap.Int("promoted", promoted),
				zap.Int64("pruned", pruned),
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 2000, "maximum staging rows to promote in one pass")
	return cmd
}
