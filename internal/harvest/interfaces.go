package harvest

import (
	"context"
	"time"
)

// JobQueue owns the crawl-job lifecycle. Every operation is atomic and safe
// under concurrent invocation; only Claim requires true mutual exclusion.
type JobQueue interface {
	// Enqueue inserts one row per previously unseen identity and reports
	// how many identities were inserted vs. already present.
	Enqueue(ctx context.Context, batch EnqueueBatch) (inserted, skipped int, err error)

	// Claim hands exactly one eligible job to the caller, or nil when the
	// backlog has nothing ready. Two concurrent claimers never receive the
	// same job.
	Claim(ctx context.Context, workerID string) (*CrawlJob, error)

	MarkDone(ctx context.Context, jobID int64) error
	MarkInvalid(ctx context.Context, jobID int64, reason string, httpStatus *int) error

	// MarkFailed requeues the job with backoff, or moves it to dead when
	// the attempt budget is spent.
	MarkFailed(ctx context.Context, job *CrawlJob, errText string, httpStatus *int) error

	// Requeue is a manual override that clears error state.
	Requeue(ctx context.Context, jobID int64, delay time.Duration) error

	// ReviveDead resets up to limit dead jobs to queued with a fresh
	// attempt budget. Never triggered automatically.
	ReviveDead(ctx context.Context, limit int) (int64, error)

	// ResetStuckProcessing requeues jobs whose claimant went silent.
	ResetStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error)

	Stats(ctx context.Context) (QueueStats, error)
}

// FeedbackTracker persists the per-keyword staleness signal.
type FeedbackTracker interface {
	RecordStale(ctx context.Context, keyword string, page int, datePublished time.Time) error
	IsStale(ctx context.Context, keyword string) (bool, error)
}

// StagingStore writes the staging aggregate. Child collections are replaced
// wholesale on every write.
type StagingStore interface {
	WriteStaging(ctx context.Context, job *CrawlJob, rec *Recipe, rawBlobURI string) error
}

// Promoter moves staging aggregates into the product store.
type Promoter interface {
	PromoteIfRecent(ctx context.Context, itemID int64, cutoff time.Time) (bool, error)
	PromoteRecentRecipes(ctx context.Context, cutoff time.Time, limit int) (int, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Fetcher retrieves a single page without following redirects.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Extractor turns detail-page bytes into a Recipe, or nil when the page
// carries no extractable record.
type Extractor interface {
	Recipe(body []byte, requestedURL string, itemID int64) *Recipe
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes promotion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
