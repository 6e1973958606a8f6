package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vantran-dev/recipeharvest/internal/clock/system"
	"github.com/vantran-dev/recipeharvest/internal/id/uuid"
	"github.com/vantran-dev/recipeharvest/internal/ops"
	"github.com/vantran-dev/recipeharvest/internal/worker"
)

func newWorkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Run the detail worker pool and the ops HTTP endpoint until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			opsServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.Cfg.Ops.Port),
				Handler:           ops.NewServer(a.Queue, a.Logger).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				a.Logger.Info("ops server listening", zap.Int("port", a.Cfg.Ops.Port))
				if serveErr := opsServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
					a.Logger.Error("ops server failed", zap.Error(serveErr))
				}
			}()

			topic := ""
			if a.Cfg.Publish.Enabled {
				topic = a.Cfg.Publish.Topic
			}
			pool := worker.New(
				a.Queue, a.Staging, a.Promoter, a.Feedback,
				a.Fetcher, a.Extractor, a.BlobStore, a.Publisher,
				system.New(), uuid.New(), a.Site,
				worker.Config{
					Count:          a.Cfg.Worker.Count,
					PollInterval:   a.Cfg.PollInterval(),
					FetchTimeout:   a.Cfg.FetchTimeout(),
					RateLimitPause: a.Cfg.RateLimitPause(),
					CutoffDays:     a.Cfg.CutoffDays,
					ArchivePrefix:  a.Cfg.Archive.Prefix,
					Topic:          topic,
				},
				a.Logger,
			)

			a.Logger.Info("worker pool starting", zap.Int("workers", a.Cfg.Worker.Count))
			pool.Run(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := opsServer.Shutdown(shutdownCtx); err != nil {
				a.Logger.Warn("ops server shutdown", zap.Error(err))
			}
			return nil
		},
	}
}
