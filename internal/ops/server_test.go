package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantran-dev/recipeharvest/internal/harvest"
	"github.com/vantran-dev/recipeharvest/internal/metrics"
	"github.com/vantran-dev/recipeharvest/internal/storage/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.JobQueue) {
	t.Helper()
	metrics.Init()
	queue := memory.NewJobQueue(harvest.Site{Source: "cookpad", Locale: "vn"}, 3, nil)
	srv := httptest.NewServer(NewServer(queue, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, queue
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQueueStats(t *testing.T) {
	srv, queue := newTestServer(t)

	_, _, err := queue.Enqueue(context.Background(), harvest.EnqueueBatch{
		Source: "cookpad", Locale: "vn", Keyword: "pho", Tier: 1, Page: 1,
		ItemIDs: []int64{1, 2, 3},
	})
	require.NoError(t, err)

	job, err := queue.Claim(context.Background(), "w1")
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, queue.MarkDone(context.Background(), job.ID))

	resp, err := http.Get(srv.URL + "/queue/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Counts map[string]int64 `json:"counts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, int64(2), payload.Counts["queued"])
	require.Equal(t, int64(1), payload.Counts["done"])
}
