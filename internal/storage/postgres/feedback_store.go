package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// FeedbackStore implements harvest.FeedbackTracker on Postgres.
type FeedbackStore struct {
	db DB
}

// NewFeedbackStore constructs a FeedbackStore.
func NewFeedbackStore(db DB) *FeedbackStore {
	return &FeedbackStore{db: db}
}

// RecordStale upserts the staleness signal for a keyword. is_stale is
// sticky once set; stale_page and oldest_published_seen only ever move
// down. Safe to call repeatedly with the same observation.
func (f *FeedbackStore) RecordStale(ctx context.Context, keyword string, page int, datePublished time.Time) error {
	if _, err := f.db.Exec(ctx, `
		INSERT INTO keyword_feedback (keyword, is_stale, stale_page, oldest_published_seen, updated_at)
		VALUES ($1, TRUE, $2, $3, now())
		ON CONFLICT (keyword) DO UPDATE SET
			is_stale = TRUE,
			stale_page = LEAST(keyword_feedback.stale_page, EXCLUDED.stale_page),
			oldest_published_seen = LEAST(keyword_feedback.oldest_published_seen, EXCLUDED.oldest_published_seen),
			updated_at = now();`,
		keyword, page, datePublished,
	); err != nil {
		return fmt.Errorf("record keyword staleness: %w", err)
	}
	return nil
}

// IsStale reports whether deeper pagination on this keyword has been
// flagged as wasted effort. An absent row means not stale.
func (f *FeedbackStore) IsStale(ctx context.Context, keyword string) (bool, error) {
	var stale bool
	err := f.db.QueryRow(ctx,
		`SELECT is_stale FROM keyword_feedback WHERE keyword = $1;`, keyword,
	).Scan(&stale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("read keyword feedback: %w", err)
	}
	return stale, nil
}
