package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vantran-dev/recipeharvest/internal/harvest"
)

const jobColumns = `id, source, locale, item_id, requested_url, keyword, tier, page, priority,
	status, attempts, max_attempts, next_attempt_at, claimed_by, claimed_at,
	invalid_reason, http_status, last_error, created_at, updated_at`

// JobQueue implements harvest.JobQueue on Postgres. Claiming relies on
// FOR UPDATE SKIP LOCKED so concurrent claimers step over each other's
// candidate rows instead of waiting.
type JobQueue struct {
	db          DB
	site        harvest.Site
	maxAttempts int
}

// NewJobQueue constructs a JobQueue. maxAttempts <= 0 falls back to the
// default budget.
func NewJobQueue(db DB, site harvest.Site, maxAttempts int) *JobQueue {
	if maxAttempts <= 0 {
		maxAttempts = harvest.DefaultMaxAttempts
	}
	return &JobQueue{db: db, site: site, maxAttempts: maxAttempts}
}

// Enqueue inserts one queued row per previously unseen identity. Input IDs
// are de-duplicated first; identities already present count as skipped.
func (q *JobQueue) Enqueue(ctx context.Context, batch harvest.EnqueueBatch) (int, int, error) {
	seen := make(map[int64]struct{}, len(batch.ItemIDs))
	ids := make([]int64, 0, len(batch.ItemIDs))
	urls := make([]string, 0, len(batch.ItemIDs))
	for _, id := range batch.ItemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		urls = append(urls, q.site.DetailURL(id))
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}

	tag, err := q.db.Exec(ctx, `
		INSERT INTO crawl_jobs
			(source, locale, item_id, requested_url, keyword, tier, page, priority, status, max_attempts, next_attempt_at)
		SELECT $1, $2, u.item_id, u.requested_url, $3, $4, $5, $6, 'queued', $7, now()
		FROM unnest($8::bigint[], $9::text[]) AS u(item_id, requested_url)
		ON CONFLICT (source, locale, item_id) DO NOTHING;`,
		batch.Source,
		batch.Locale,
		batch.Keyword,
		batch.Tier,
		batch.Page,
		harvest.PriorityFor(batch.Tier, batch.Page),
		q.maxAttempts,
		ids,
		urls,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("enqueue crawl jobs: %w", err)
	}
	inserted := int(tag.RowsAffected())
	return inserted, len(ids) - inserted, nil
}

// Claim hands out at most one eligible job. The subquery locks a candidate
// row; a concurrent claimer skips it and takes the next one, so no two
// workers ever receive the same job. Returns (nil, nil) when the backlog
// has nothing ready.
func (q *JobQueue) Claim(ctx context.Context, workerID string) (*harvest.CrawlJob, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE crawl_jobs SET
			status = 'processing',
			attempts = crawl_jobs.attempts + 1,
			claimed_by = $1,
			claimed_at = now(),
			last_error = NULL,
			http_status = NULL,
			updated_at = now()
		WHERE id = (
			SELECT id FROM crawl_jobs
			WHERE status = 'queued' AND next_attempt_at <= now() AND attempts < max_attempts
			ORDER BY priority, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns+`;`,
		workerID,
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim crawl job: %w", err)
	}
	return job, nil
}

// MarkDone records terminal success.
func (q *JobQueue) MarkDone(ctx context.Context, jobID int64) error {
	if _, err := q.db.Exec(ctx,
		`UPDATE crawl_jobs SET status = 'done', updated_at = now() WHERE id = $1;`,
		jobID,
	); err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	return nil
}

// MarkInvalid records a terminal, non-retryable failure. The remaining
// attempt budget is irrelevant from here on.
func (q *JobQueue) MarkInvalid(ctx context.Context, jobID int64, reason string, httpStatus *int) error {
	if _, err := q.db.Exec(ctx, `
		UPDATE crawl_jobs SET
			status = 'invalid', invalid_reason = $2, http_status = $3, updated_at = now()
		WHERE id = $1;`,
		jobID, reason, httpStatus,
	); err != nil {
		return fmt.Errorf("mark job invalid: %w", err)
	}
	return nil
}

// MarkFailed handles the retryable failure class. With budget left the job
// goes back to queued with backoff keyed by the attempt just spent; on the
// last attempt it goes to dead.
func (q *JobQueue) MarkFailed(ctx context.Context, job *harvest.CrawlJob, errText string, httpStatus *int) error {
	if job.Attempts >= job.MaxAttempts {
		if _, err := q.db.Exec(ctx, `
			UPDATE crawl_jobs SET
				status = 'dead', last_error = $2, http_status = $3, updated_at = now()
			WHERE id = $1;`,
			job.ID, errText, httpStatus,
		); err != nil {
			return fmt.Errorf("mark job dead: %w", err)
		}
		return nil
	}
	delay := harvest.RetryDelay(job.Attempts)
	if _, err := q.db.Exec(ctx, `
		UPDATE crawl_jobs SET
			status = 'queued',
			next_attempt_at = now() + ($2 * interval '1 second'),
			last_error = $3,
			http_status = $4,
			updated_at = now()
		WHERE id = $1;`,
		job.ID, delay.Seconds(), errText, httpStatus,
	); err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

// Requeue is a manual override that clears error state.
func (q *JobQueue) Requeue(ctx context.Context, jobID int64, delay time.Duration) error {
	if _, err := q.db.Exec(ctx, `
		UPDATE crawl_jobs SET
			status = 'queued',
			next_attempt_at = now() + ($2 * interval '1 second'),
			invalid_reason = NULL,
			http_status = NULL,
			last_error = NULL,
			updated_at = now()
		WHERE id = $1;`,
		jobID, delay.Seconds(),
	); err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	return nil
}

// ReviveDead bulk-resets up to limit dead jobs to queued with a fresh
// attempt budget. Explicit recovery only; nothing calls this automatically.
func (q *JobQueue) ReviveDead(ctx context.Context, limit int) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE crawl_jobs SET
			status = 'queued', attempts = 0, next_attempt_at = now(),
			last_error = NULL, updated_at = now()
		WHERE id IN (
			SELECT id FROM crawl_jobs WHERE status = 'dead' ORDER BY updated_at LIMIT $1
		);`,
		limit,
	)
	if err != nil {
		return 0, fmt.Errorf("revive dead jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ResetStuckProcessing requeues jobs whose claimant has been silent longer
// than olderThan; the crash-recovery path for workers that died mid-job.
func (q *JobQueue) ResetStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE crawl_jobs SET
			status = 'queued', claimed_by = NULL, claimed_at = NULL, updated_at = now()
		WHERE status = 'processing' AND claimed_at < now() - ($1 * interval '1 second');`,
		olderThan.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats reports row counts per status.
func (q *JobQueue) Stats(ctx context.Context) (harvest.QueueStats, error) {
	rows, err := q.db.Query(ctx, `SELECT status, count(*) FROM crawl_jobs GROUP BY status;`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(harvest.QueueStats)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan queue stats row: %w", err)
		}
		stats[harvest.JobStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue stats: %w", err)
	}
	return stats, nil
}

func scanJob(row pgx.Row) (*harvest.CrawlJob, error) {
	var job harvest.CrawlJob
	err := row.Scan(
		&job.ID,
		&job.Source,
		&job.Locale,
		&job.ItemID,
		&job.RequestedURL,
		&job.Keyword,
		&job.Tier,
		&job.Page,
		&job.Priority,
		&job.Status,
		&job.Attempts,
		&job.MaxAttempts,
		&job.NextAttemptAt,
		&job.ClaimedBy,
		&job.ClaimedAt,
		&job.InvalidReason,
		&job.HTTPStatus,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
