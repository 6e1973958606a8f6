// Package harvest defines core types shared across subsystems.
package harvest

import "time"

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the queue store.
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusInvalid    JobStatus = "invalid"
	JobStatusDead       JobStatus = "dead"
)

// DefaultMaxAttempts is the retry budget assigned to new jobs.
const DefaultMaxAttempts = 3

// PriorityFor derives the queue priority from tier and page.
// Lower values are claimed first: tier 1 before tier 2, earlier pages first.
func PriorityFor(tier, page int) int {
	return tier*1000 + page
}

// CrawlJob is one unit of detail-crawl work. Identity is
// (Source, Locale, ItemID); enqueueing the same identity twice never
// creates a second row.
type CrawlJob struct {
	ID            int64
	Source        string
	Locale        string
	ItemID        int64
	RequestedURL  string
	Keyword       string
	Tier          int
	Page          int
	Priority      int
	Status        JobStatus
	Attempts      int
	MaxAttempts   int
	NextAttemptAt time.Time
	ClaimedBy     *string
	ClaimedAt     *time.Time
	InvalidReason *string
	HTTPStatus    *int
	LastError     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EnqueueBatch carries the identifiers discovered on one listing page.
type EnqueueBatch struct {
	Source  string
	Locale  string
	Keyword string
	Tier    int
	Page    int
	ItemIDs []int64
}

// KeywordFeedback is the persisted cross-run staleness signal for a keyword.
type KeywordFeedback struct {
	Keyword             string
	IsStale             bool
	StalePage           int
	OldestPublishedSeen *time.Time
	UpdatedAt           time.Time
}

// RecipeStep is one ordered instruction, optionally illustrated.
type RecipeStep struct {
	Text  string
	Image string
}

// RecipeComment is a reader comment, deduplicated by normalized text hash.
type RecipeComment struct {
	AuthorName    string
	AuthorURL     string
	URL           string
	DatePublished *time.Time
	Text          string
	TextHash      string
}

// Recipe is the structured record extracted from a detail page. It doubles
// as the staging aggregate: child collections are ordered and fully replace
// whatever a previous fetch wrote.
type Recipe struct {
	ItemID        int64
	URL           string
	Name          string
	Description   string
	HeroImage     string
	DatePublished *time.Time
	DateModified  *time.Time
	Cuisine       string
	AuthorName    string
	AuthorURL     string
	KeywordsRaw   string
	Keywords      []string
	Ingredients   []string
	Steps         []RecipeStep
	BookmarkCount *int
	LikeCount     *int
	CommentCount  *int
	Comments      []RecipeComment
}

// QueueStats reports row counts per job status.
type QueueStats map[JobStatus]int64

// FetchResponse is the result of fetching one page. Redirects are never
// followed; a 3xx StatusCode is returned as-is.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}
