package frontier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vantran-dev/recipeharvest/internal/harvest"
	"github.com/vantran-dev/recipeharvest/internal/metrics"
	"github.com/vantran-dev/recipeharvest/internal/storage/memory"
)

type fakeFetcher struct {
	pages    map[string]harvest.FetchResponse
	failures map[string]error
	visited  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (harvest.FetchResponse, error) {
	f.visited = append(f.visited, url)
	if err, ok := f.failures[url]; ok {
		return harvest.FetchResponse{}, err
	}
	if resp, ok := f.pages[url]; ok {
		return resp, nil
	}
	// Unknown pages behave like an exhausted listing.
	return harvest.FetchResponse{URL: url, StatusCode: http.StatusOK, Body: []byte("<html></html>")}, nil
}

func listingPage(site harvest.Site, ids ...int64) harvest.FetchResponse {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<a href="/%s/cong-thuc/%d">r</a>`, site.Locale, id)
	}
	b.WriteString("</body></html>")
	return harvest.FetchResponse{StatusCode: http.StatusOK, Body: []byte(b.String())}
}

func newController(t *testing.T, cfg Config, fetcher *fakeFetcher) (*Controller, *memory.JobQueue, *memory.FeedbackTracker) {
	t.Helper()
	metrics.Init()
	site := harvest.Site{Source: "cookpad", Locale: "vn"}
	queue := memory.NewJobQueue(site, 3, nil)
	feedback := memory.NewFeedbackTracker()
	c := New(cfg, site, fetcher, queue, feedback, nil)
	c.sleep = func(context.Context, time.Duration) {}
	return c, queue, feedback
}

func TestRunStopsOnEmptyPage(t *testing.T) {
	site := harvest.Site{Source: "cookpad", Locale: "vn"}
	fetcher := &fakeFetcher{pages: map[string]harvest.FetchResponse{
		site.ListingURL("pho", 1): listingPage(site, 1, 2, 3),
		site.ListingURL("pho", 2): {StatusCode: http.StatusOK, Body: []byte("<html></html>")},
	}}
	c, queue, _ := newController(t, Config{}, fetcher)

	require.NoError(t, c.Run(context.Background(), Seeds{Tier1: []string{"pho"}}))
	require.Len(t, fetcher.visited, 2)

	stats, err := queue.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), stats[harvest.JobStatusQueued])
}

func TestRunStopsOnRepeatedSignatureBeforeEnqueue(t *testing.T) {
	site := harvest.Site{Source: "cookpad", Locale: "vn"}
	fetcher := &fakeFetcher{pages: map[string]harvest.FetchResponse{
		site.ListingURL("pho", 1): listingPage(site, 1, 2, 3),
		site.ListingURL("pho", 2): listingPage(site, 1, 2, 3),
		site.ListingURL("pho", 3): listingPage(site, 9, 9, 9),
	}}
	c, queue, _ := newController(t, Config{}, fetcher)

	require.NoError(t, c.Run(context.Background(), Seeds{Tier1: []string{"pho"}}))
	// Page 2 repeats page 1's signature, so page 3 is never visited.
	require.Len(t, fetcher.visited, 2)

	stats, err := queue.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), stats[harvest.JobStatusQueued])
}

func TestRunStopsAfterConsecutiveZeroNewPages(t *testing.T) {
	site := harvest.Site{Source: "cookpad", Locale: "vn"}
	fetcher := &fakeFetcher{pages: map[string]harvest.FetchResponse{
		site.ListingURL("pho", 1): listingPage(site, 1, 2),
		// Different order gives a fresh signature, but every ID is known.
		site.ListingURL("pho", 2): listingPage(site, 2, 1),
		site.ListingURL("pho", 3): listingPage(site, 1, 2),
		site.ListingURL("pho", 4): listingPage(site, 7, 8),
	}}
	c, _, _ := newController(t, Config{}, fetcher)

	require.NoError(t, c.Run(context.Background(), Seeds{Tier1: []string{"pho"}}))
	// Pages 2 and 3 insert nothing; the keyword stops before page 4.
	require.Len(t, fetcher.visited, 3)
}

func TestRunLimitsStaleKeywordPages(t *testing.T) {
	site := harvest.Site{Source: "cookpad", Locale: "vn"}
	fetcher := &fakeFetcher{pages: map[string]harvest.FetchResponse{
		site.ListingURL("pho", 1): listingPage(site, 1, 2),
		site.ListingURL("pho", 2): listingPage(site, 3, 4),
		site.ListingURL("pho", 3): listingPage(site, 5, 6),
	}}
	c, _, feedback := newController(t, Config{StaleMaxPages: 2}, fetcher)
	require.NoError(t, feedback.RecordStale(context.Background(), "pho", 1,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	require.NoError(t, c.Run(context.Background(), Seeds{Tier1: []string{"pho"}}))
	require.Len(t, fetcher.visited, 2)
}

func TestRunFetchFailureStopsKeywordOnly(t *testing.T) {
	site := harvest.Site{Source: "cookpad", Locale: "vn"}
	fetcher := &fakeFetcher{
		failures: map[string]error{
			site.ListingURL("pho", 1): fmt.Errorf("connection refused"),
		},
		pages: map[string]harvest.FetchResponse{
			site.ListingURL("bun", 1): listingPage(site, 10),
		},
	}
	c, queue, _ := newController(t, Config{}, fetcher)

	require.NoError(t, c.Run(context.Background(), Seeds{Tier1: []string{"pho", "bun"}}))

	stats, err := queue.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats[harvest.JobStatusQueued])
}

func TestRunStopsOnNon200Listing(t *testing.T) {
	site := harvest.Site{Source: "cookpad", Locale: "vn"}
	fetcher := &fakeFetcher{pages: map[string]harvest.FetchResponse{
		site.ListingURL("pho", 1): {StatusCode: http.StatusServiceUnavailable},
	}}
	c, queue, _ := newController(t, Config{}, fetcher)

	require.NoError(t, c.Run(context.Background(), Seeds{Tier1: []string{"pho"}}))
	require.Len(t, fetcher.visited, 1)

	stats, err := queue.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats[harvest.JobStatusQueued])
}

func TestRunWalksTierOneBeforeTierTwo(t *testing.T) {
	site := harvest.Site{Source: "cookpad", Locale: "vn"}
	fetcher := &fakeFetcher{pages: map[string]harvest.FetchResponse{
		site.ListingURL("ga", 1):  listingPage(site, 1),
		site.ListingURL("pho", 1): listingPage(site, 2),
	}}
	c, queue, _ := newController(t, Config{}, fetcher)

	require.NoError(t, c.Run(context.Background(), Seeds{
		Tier1: []string{"pho"},
		Tier2: []string{"ga"},
	}))
	require.Equal(t, site.ListingURL("pho", 1), fetcher.visited[0])

	job, err := queue.Claim(context.Background(), "w")
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, "pho", job.Keyword)
	require.Equal(t, 1, job.Tier)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{}
	c, _, _ := newController(t, Config{}, fetcher)

	err := c.Run(ctx, Seeds{Tier1: []string{"pho"}})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, fetcher.visited)
}
