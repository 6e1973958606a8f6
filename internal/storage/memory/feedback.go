package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vantran-dev/recipeharvest/internal/harvest"
)

// FeedbackTracker is a mutex-guarded harvest.FeedbackTracker.
type FeedbackTracker struct {
	mu      sync.RWMutex
	entries map[string]*harvest.KeywordFeedback
}

// NewFeedbackTracker constructs an empty tracker.
func NewFeedbackTracker() *FeedbackTracker {
	return &FeedbackTracker{entries: make(map[string]*harvest.KeywordFeedback)}
}

// RecordStale mirrors the Postgres upsert: is_stale is sticky, page and
// oldest-seen only move down.
func (f *FeedbackTracker) RecordStale(_ context.Context, keyword string, page int, datePublished time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[keyword]
	if !ok {
		published := datePublished
		f.entries[keyword] = &harvest.KeywordFeedback{
			Keyword:             keyword,
			IsStale:             true,
			StalePage:           page,
			OldestPublishedSeen: &published,
			UpdatedAt:           time.Now().UTC(),
		}
		return nil
	}
	entry.IsStale = true
	if page < entry.StalePage {
		entry.StalePage = page
	}
	if entry.OldestPublishedSeen == nil || datePublished.Before(*entry.OldestPublishedSeen) {
		published := datePublished
		entry.OldestPublishedSeen = &published
	}
	entry.UpdatedAt = time.Now().UTC()
	return nil
}

// IsStale reports the staleness flag; absent keywords are not stale.
func (f *FeedbackTracker) IsStale(_ context.Context, keyword string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.entries[keyword]
	return ok && entry.IsStale, nil
}

// Feedback returns a copy of the stored entry, for assertions in tests.
func (f *FeedbackTracker) Feedback(keyword string) (harvest.KeywordFeedback, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.entries[keyword]
	if !ok {
		return harvest.KeywordFeedback{}, false
	}
	return *entry, true
}
