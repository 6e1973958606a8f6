// Package worker implements the detail-page processing loop.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vantran-dev/recipeharvest/internal/harvest"
	"github.com/vantran-dev/recipeharvest/internal/metrics"
)

// Config controls pool behavior.
type Config struct {
	Count          int
	PollInterval   time.Duration
	FetchTimeout   time.Duration
	RateLimitPause time.Duration
	CutoffDays     int
	ArchivePrefix  string
	ContentType    string
	Topic          string
}

// IDGenerator mints worker identities.
type IDGenerator interface {
	New() string
}

// Pool runs a fixed set of workers that claim jobs, fetch detail pages,
// extract recipes and drive staging, feedback and promotion. A job failure
// never stops a worker; it is recorded on the row and the loop moves on.
type Pool struct {
	queue     harvest.JobQueue
	staging   harvest.StagingStore
	promoter  harvest.Promoter
	feedback  harvest.FeedbackTracker
	fetcher   harvest.Fetcher
	extractor harvest.Extractor
	blobStore harvest.BlobStore
	publisher harvest.Publisher
	clock     harvest.Clock
	ids       IDGenerator
	site      harvest.Site
	cfg       Config
	logger    *zap.Logger

	sleep func(context.Context, time.Duration)
}

// New constructs a Pool. blobStore and publisher may be nil; archival and
// promotion events are then skipped.
func New(
	queue harvest.JobQueue,
	staging harvest.StagingStore,
	promoter harvest.Promoter,
	feedback harvest.FeedbackTracker,
	fetcher harvest.Fetcher,
	extractor harvest.Extractor,
	blobStore harvest.BlobStore,
	publisher harvest.Publisher,
	clock harvest.Clock,
	ids IDGenerator,
	site harvest.Site,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if cfg.Count <= 0 {
		cfg.Count = 3
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 20 * time.Second
	}
	if cfg.RateLimitPause <= 0 {
		cfg.RateLimitPause = time.Second
	}
	if cfg.CutoffDays <= 0 {
		cfg.CutoffDays = 30
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		queue:     queue,
		staging:   staging,
		promoter:  promoter,
		feedback:  feedback,
		fetcher:   fetcher,
		extractor: extractor,
		blobStore: blobStore,
		publisher: publisher,
		clock:     clock,
		ids:       ids,
		site:      site,
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Run blocks until the context finishes.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Count; i++ {
		workerID := fmt.Sprintf("worker-%d-%s", i, p.ids.New())
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runLoop(ctx, workerID)
		}()
	}
	wg.Wait()
}

func (p *Pool) runLoop(ctx context.Context, workerID string) {
	log := p.logger.With(zap.String("worker_id", workerID))
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.queue.Claim(ctx, workerID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("claim failed", zap.Error(err))
			p.sleep(ctx, p.cfg.PollInterval)
			continue
		}
		if job == nil {
			metrics.ObserveEmptyPoll()
			p.sleep(ctx, p.cfg.PollInterval)
			continue
		}

		metrics.IncActiveWorkers()
		pause := p.processJob(ctx, log, job)
		metrics.DecActiveWorkers()

		if pause > 0 {
			p.sleep(ctx, pause)
		}
	}
}

// processJob runs one claimed job to a terminal status and returns an
// extra delay to apply before the next claim.
func (p *Pool) processJob(ctx context.Context, log *zap.Logger, job *harvest.CrawlJob) time.Duration {
	log = log.With(
		zap.Int64("job_id", job.ID),
		zap.Int64("item_id", job.ItemID),
		zap.String("keyword", job.Keyword),
		zap.Int("attempt", job.Attempts),
	)

	if strings.TrimSpace(job.RequestedURL) == "" {
		p.markInvalid(ctx, log, job, "missing_requested_url", nil)
		return 0
	}
	if parsed, ok := p.site.ItemIDFromDetailURL(job.RequestedURL); !ok || parsed != job.ItemID {
		p.markInvalid(ctx, log, job, "bad_requested_url", nil)
		return 0
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	resp, err := p.fetcher.Fetch(fetchCtx, job.RequestedURL)
	cancel()
	if err != nil {
		p.markFailed(ctx, log, job, "request_error:"+err.Error(), nil)
		return 0
	}

	status := resp.StatusCode
	switch {
	case status == http.StatusMovedPermanently || status == http.StatusFound:
		p.markInvalid(ctx, log, job, "redirect", &status)
		return 0
	case resp.URL != job.RequestedURL:
		p.markInvalid(ctx, log, job, "url_mismatch", &status)
		return 0
	case status == http.StatusNotFound || status == http.StatusGone:
		p.markInvalid(ctx, log, job, "notfound", &status)
		return 0
	case status == http.StatusTooManyRequests || status >= 500:
		p.markFailed(ctx, log, job, fmt.Sprintf("http_%d", status), &status)
		return p.cfg.RateLimitPause
	case status != http.StatusOK:
		p.markFailed(ctx, log, job, fmt.Sprintf("http_%d", status), &status)
		return 0
	}

	recipe := p.extractor.Recipe(resp.Body, job.RequestedURL, job.ItemID)
	if recipe == nil {
		p.markInvalid(ctx, log, job, "no_recipe_jsonld", &status)
		return 0
	}

	rawBlobURI := p.archive(ctx, log, job, resp.Body)

	if err := p.staging.WriteStaging(ctx, job, recipe, rawBlobURI); err != nil {
		p.markFailed(ctx, log, job, "staging_write:"+err.Error(), &status)
		return 0
	}

	cutoff := p.clock.Now().AddDate(0, 0, -p.cfg.CutoffDays)
	if recipe.DatePublished != nil && recipe.DatePublished.Before(cutoff) {
		if err := p.feedback.RecordStale(ctx, job.Keyword, job.Page, *recipe.DatePublished); err != nil {
			log.Error("record stale failed", zap.Error(err))
		} else {
			metrics.ObserveStaleRecorded()
		}
	} else {
		promoted, err := p.promoter.PromoteIfRecent(ctx, job.ItemID, cutoff)
		if err != nil {
			// Promotion is re-runnable through the batch pass, so the
			// job still completes.
			log.Error("promotion failed", zap.Error(err))
		} else if promoted {
			metrics.ObservePromotion()
			p.publishPromotion(ctx, log, job)
		}
	}

	if err := p.queue.MarkDone(ctx, job.ID); err != nil {
		log.Error("mark done failed", zap.Error(err))
		return 0
	}
	metrics.ObserveJobOutcome(string(harvest.JobStatusDone))
	log.Info("job done")
	return 0
}

func (p *Pool) archive(ctx context.Context, log *zap.Logger, job *harvest.CrawlJob, body []byte) string {
	if p.blobStore == nil {
		return ""
	}
	path := fmt.Sprintf("%s/%s/%d.html", job.Source, job.Locale, job.ItemID)
	if prefix := strings.Trim(p.cfg.ArchivePrefix, "/"); prefix != "" {
		path = prefix + "/" + path
	}
	uri, err := p.blobStore.PutObject(ctx, path, p.cfg.ContentType, body)
	if err != nil {
		log.Warn("archive failed", zap.Error(err))
		return ""
	}
	return uri
}

func (p *Pool) publishPromotion(ctx context.Context, log *zap.Logger, job *harvest.CrawlJob) {
	if p.publisher == nil || p.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"source":      job.Source,
		"locale":      job.Locale,
		"item_id":     job.ItemID,
		"keyword":     job.Keyword,
		"promoted_at": p.clock.Now().Format(time.RFC3339),
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.Topic, payload); err != nil {
		log.Warn("promotion publish failed", zap.Error(err))
	}
}

func (p *Pool) markInvalid(ctx context.Context, log *zap.Logger, job *harvest.CrawlJob, reason string, httpStatus *int) {
	if err := p.queue.MarkInvalid(ctx, job.ID, reason, httpStatus); err != nil {
		log.Error("mark invalid failed", zap.Error(err))
		return
	}
	metrics.ObserveJobOutcome(string(harvest.JobStatusInvalid))
	log.Info("job invalid", zap.String("reason", reason))
}

func (p *Pool) markFailed(ctx context.Context, log *zap.Logger, job *harvest.CrawlJob, errText string, httpStatus *int) {
	if err := p.queue.MarkFailed(ctx, job, errText, httpStatus); err != nil {
		log.Error("mark failed errored", zap.Error(err))
		return
	}
	metrics.ObserveJobOutcome("failed")
	log.Warn("job failed", zap.String("error", errText))
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
