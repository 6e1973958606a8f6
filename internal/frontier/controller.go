// Package frontier walks the keyword search listings and feeds the job
// queue. The walk is single-threaded: one tier at a time, one keyword at
// a time, one page at a time.
package frontier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vantran-dev/recipeharvest/internal/extract"
	"github.com/vantran-dev/recipeharvest/internal/harvest"
	"github.com/vantran-dev/recipeharvest/internal/metrics"
)

// Config controls how far the controller walks per keyword.
type Config struct {
	MaxPagesPerKeyword int
	StaleMaxPages      int
	ZeroNewPageLimit   int
	PageDelay          time.Duration
}

// Seeds holds the keyword lists per tier, tier 1 first.
type Seeds struct {
	Tier1 []string
	Tier2 []string
}

// Controller drives one harvest pass over the configured seeds.
type Controller struct {
	cfg      Config
	site     harvest.Site
	fetcher  harvest.Fetcher
	queue    harvest.JobQueue
	feedback harvest.FeedbackTracker
	logger   *zap.Logger

	sleep func(context.Context, time.Duration)
}

// New builds a Controller. Zero config fields fall back to the documented
// defaults.
func New(
	cfg Config,
	site harvest.Site,
	fetcher harvest.Fetcher,
	queue harvest.JobQueue,
	feedback harvest.FeedbackTracker,
	logger *zap.Logger,
) *Controller {
	if cfg.MaxPagesPerKeyword <= 0 {
		cfg.MaxPagesPerKeyword = 30
	}
	if cfg.StaleMaxPages <= 0 {
		cfg.StaleMaxPages = 2
	}
	if cfg.ZeroNewPageLimit <= 0 {
		cfg.ZeroNewPageLimit = 2
	}
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:      cfg,
		site:     site,
		fetcher:  fetcher,
		queue:    queue,
		feedback: feedback,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Run walks every tier and keyword once. Fetch problems stop the affected
// keyword only; queue errors abort the run.
func (c *Controller) Run(ctx context.Context, seeds Seeds) error {
	tiers := []struct {
		tier     int
		keywords []string
	}{
		{1, seeds.Tier1},
		{2, seeds.Tier2},
	}
	for _, t := range tiers {
		for _, keyword := range t.keywords {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.harvestKeyword(ctx, t.tier, keyword); err != nil {
				return fmt.Errorf("harvest keyword %q: %w", keyword, err)
			}
		}
	}
	return nil
}

func (c *Controller) harvestKeyword(ctx context.Context, tier int, keyword string) error {
	maxPages := c.cfg.MaxPagesPerKeyword
	stale, err := c.feedback.IsStale(ctx, keyword)
	if err != nil {
		return fmt.Errorf("read feedback: %w", err)
	}
	if stale {
		maxPages = c.cfg.StaleMaxPages
	}

	log := c.logger.With(
		zap.Int("tier", tier),
		zap.String("keyword", keyword),
		zap.Bool("stale", stale),
	)

	prevSignature := ""
	zeroNewStreak := 0
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if page > 1 {
			c.sleep(ctx, c.cfg.PageDelay)
		}

		url := c.site.ListingURL(keyword, page)
		resp, err := c.fetcher.Fetch(ctx, url)
		if err != nil {
			metrics.ObserveListingPage(tier, "error")
			log.Warn("listing fetch failed, stopping keyword",
				zap.Int("page", page), zap.Error(err))
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			metrics.ObserveListingPage(tier, "error")
			log.Warn("listing returned non-200, stopping keyword",
				zap.Int("page", page), zap.Int("status", resp.StatusCode))
			return nil
		}

		ids := extract.ListingItemIDs(resp.Body, c.site)
		if len(ids) == 0 {
			metrics.ObserveListingPage(tier, "empty")
			log.Debug("empty listing page, stopping keyword", zap.Int("page", page))
			return nil
		}

		signature := harvest.SignatureOfIDs(ids)
		if signature == prevSignature {
			metrics.ObserveListingPage(tier, "repeat")
			log.Debug("listing page repeats previous page, stopping keyword",
				zap.Int("page", page))
			return nil
		}
		prevSignature = signature

		inserted, skipped, err := c.queue.Enqueue(ctx, harvest.EnqueueBatch{
			Source:  c.site.Source,
			Locale:  c.site.Locale,
			Keyword: keyword,
			Tier:    tier,
			Page:    page,
			ItemIDs: ids,
		})
		if err != nil {
			return fmt.Errorf("enqueue page %d: %w", page, err)
		}
		metrics.ObserveListingPage(tier, "ok")
		metrics.AddEnqueued(inserted, skipped)
		log.Info("listing page harvested",
			zap.Int("page", page),
			zap.Int("found", len(ids)),
			zap.Int("inserted", inserted),
			zap.Int("skipped", skipped),
		)

		if inserted == 0 {
			zeroNewStreak++
			if zeroNewStreak >= c.cfg.ZeroNewPageLimit {
				log.Debug("no new items on consecutive pages, stopping keyword",
					zap.Int("page", page))
				return nil
			}
		} else {
			zeroNewStreak = 0
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
