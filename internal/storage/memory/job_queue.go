// Package memory provides in-memory store implementations for development
// and testing. The job queue honors the same lifecycle contract as the
// Postgres implementation; a single mutex stands in for row locking.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vantran-dev/recipeharvest/internal/harvest"
)

type identity struct {
	source string
	locale string
	itemID int64
}

// JobQueue is a mutex-guarded harvest.JobQueue.
type JobQueue struct {
	mu          sync.Mutex
	seq         int64
	jobs        map[int64]*harvest.CrawlJob
	byIdentity  map[identity]int64
	site        harvest.Site
	maxAttempts int
	clock       harvest.Clock
}

// NewJobQueue constructs an empty queue. clock may be nil, in which case
// wall time is used.
func NewJobQueue(site harvest.Site, maxAttempts int, clock harvest.Clock) *JobQueue {
	if maxAttempts <= 0 {
		maxAttempts = harvest.DefaultMaxAttempts
	}
	return &JobQueue{
		jobs:        make(map[int64]*harvest.CrawlJob),
		byIdentity:  make(map[identity]int64),
		site:        site,
		maxAttempts: maxAttempts,
		clock:       clock,
	}
}

func (q *JobQueue) now() time.Time {
	if q.clock != nil {
		return q.clock.Now()
	}
	return time.Now().UTC()
}

// Enqueue inserts one queued job per previously unseen identity.
func (q *JobQueue) Enqueue(_ context.Context, batch harvest.EnqueueBatch) (int, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	seen := make(map[int64]struct{}, len(batch.ItemIDs))
	inserted, skipped := 0, 0
	for _, itemID := range batch.ItemIDs {
		if _, dup := seen[itemID]; dup {
			continue
		}
		seen[itemID] = struct{}{}

		key := identity{batch.Source, batch.Locale, itemID}
		if _, exists := q.byIdentity[key]; exists {
			skipped++
			continue
		}
		q.seq++
		job := &harvest.CrawlJob{
			ID:            q.seq,
			Source:        batch.Source,
			Locale:        batch.Locale,
			ItemID:        itemID,
			RequestedURL:  q.site.DetailURL(itemID),
			Keyword:       batch.Keyword,
			Tier:          batch.Tier,
			Page:          batch.Page,
			Priority:      harvest.PriorityFor(batch.Tier, batch.Page),
			Status:        harvest.JobStatusQueued,
			MaxAttempts:   q.maxAttempts,
			NextAttemptAt: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		q.jobs[job.ID] = job
		q.byIdentity[key] = job.ID
		inserted++
	}
	return inserted, skipped, nil
}

// Claim picks the most urgent eligible job, or nil when nothing is ready.
// The queue mutex makes the select-and-mutate atomic, so concurrent
// claimers always receive distinct jobs.
func (q *JobQueue) Claim(_ context.Context, workerID string) (*harvest.CrawlJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var candidates []*harvest.CrawlJob
	for _, job := range q.jobs {
		if job.Status == harvest.JobStatusQueued &&
			!job.NextAttemptAt.After(now) &&
			job.Attempts < job.MaxAttempts {
			candidates = append(candidates, job)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	job := candidates[0]
	job.Status = harvest.JobStatusProcessing
	job.Attempts++
	job.ClaimedBy = &workerID
	claimedAt := now
	job.ClaimedAt = &claimedAt
	job.LastError = nil
	job.HTTPStatus = nil
	job.UpdatedAt = now

	out := *job
	return &out, nil
}

// MarkDone records terminal success.
func (q *JobQueue) MarkDone(_ context.Context, jobID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[jobID]; ok {
		job.Status = harvest.JobStatusDone
		job.UpdatedAt = q.now()
	}
	return nil
}

// MarkInvalid records a terminal non-retryable failure.
func (q *JobQueue) MarkInvalid(_ context.Context, jobID int64, reason string, httpStatus *int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[jobID]; ok {
		job.Status = harvest.JobStatusInvalid
		job.InvalidReason = &reason
		job.HTTPStatus = httpStatus
		job.UpdatedAt = q.now()
	}
	return nil
}

// MarkFailed requeues with backoff or moves the job to dead when the
// attempt budget is spent.
func (q *JobQueue) MarkFailed(_ context.Context, claimed *harvest.CrawlJob, errText string, httpStatus *int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[claimed.ID]
	if !ok {
		return nil
	}
	now := q.now()
	job.LastError = &errText
	job.HTTPStatus = httpStatus
	job.UpdatedAt = now
	if job.Attempts >= job.MaxAttempts {
		job.Status = harvest.JobStatusDead
		return nil
	}
	job.Status = harvest.JobStatusQueued
	job.NextAttemptAt = now.Add(harvest.RetryDelay(job.Attempts))
	return nil
}

// Requeue clears error state and makes the job eligible after delay.
func (q *JobQueue) Requeue(_ context.Context, jobID int64, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[jobID]; ok {
		job.Status = harvest.JobStatusQueued
		job.NextAttemptAt = q.now().Add(delay)
		job.InvalidReason = nil
		job.HTTPStatus = nil
		job.LastError = nil
		job.UpdatedAt = q.now()
	}
	return nil
}

// ReviveDead resets up to limit dead jobs to queued with a fresh budget.
func (q *JobQueue) ReviveDead(_ context.Context, limit int) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var revived int64
	now := q.now()
	for _, job := range q.jobs {
		if revived >= int64(limit) {
			break
		}
		if job.Status != harvest.JobStatusDead {
			continue
		}
		job.Status = harvest.JobStatusQueued
		job.Attempts = 0
		job.NextAttemptAt = now
		job.LastError = nil
		job.UpdatedAt = now
		revived++
	}
	return revived, nil
}

// ResetStuckProcessing requeues processing jobs claimed before the
// staleness threshold.
func (q *JobQueue) ResetStuckProcessing(_ context.Context, olderThan time.Duration) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var reset int64
	now := q.now()
	threshold := now.Add(-olderThan)
	for _, job := range q.jobs {
		if job.Status != harvest.JobStatusProcessing {
			continue
		}
		if job.ClaimedAt == nil || job.ClaimedAt.After(threshold) {
			continue
		}
		job.Status = harvest.JobStatusQueued
		job.ClaimedBy = nil
		job.ClaimedAt = nil
		job.UpdatedAt = now
		reset++
	}
	return reset, nil
}

// Stats reports job counts per status.
func (q *JobQueue) Stats(_ context.Context) (harvest.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := make(harvest.QueueStats)
	for _, job := range q.jobs {
		stats[job.Status]++
	}
	return stats, nil
}

// Job returns a copy of the stored job, for assertions in tests.
func (q *JobQueue) Job(jobID int64) (harvest.CrawlJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return harvest.CrawlJob{}, false
	}
	return *job, true
}
