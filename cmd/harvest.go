package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vantran-dev/recipeharvest/internal/frontier"
)

func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Walk the keyword listings once and enqueue detail jobs.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			controller := frontier.New(
				frontier.Config{
					MaxPagesPerKeyword: a.Cfg.Harvest.MaxPagesPerKeyword,
					StaleMaxPages:      a.Cfg.Harvest.StaleMaxPages,
					ZeroNewPageLimit:   a.Cfg.Harvest.ZeroNewPageLimit,
					PageDelay:          a.Cfg.PageDelay(),
				},
				a.Site,
				a.Fetcher,
				a.Queue,
				a.Feedback,
				a.Logger,
			)
			return controller.Run(ctx, frontier.Seeds{
				Tier1: a.Cfg.Seeds.Tier1,
				Tier2: a.Cfg.Seeds.Tier2,
			})
		},
	}
}
