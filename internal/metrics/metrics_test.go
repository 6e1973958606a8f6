package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if harvestListingPagesTotal == nil || workerJobOutcomesTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveListingPage(1, "ok")
	if val := testutil.ToFloat64(harvestListingPagesTotal); val != 1 {
		t.Errorf("expected harvestListingPagesTotal to be 1, got %f", val)
	}

	AddEnqueued(3, 2)
	if val := testutil.ToFloat64(harvestJobsEnqueuedTotal); val != 3 {
		t.Errorf("expected harvestJobsEnqueuedTotal to be 3, got %f", val)
	}
	if val := testutil.ToFloat64(harvestJobsSkippedTotal); val != 2 {
		t.Errorf("expected harvestJobsSkippedTotal to be 2, got %f", val)
	}

	IncActiveWorkers()
	if val := testutil.ToFloat64(workerActiveWorkers); val != 1 {
		t.Errorf("expected workerActiveWorkers to be 1, got %f", val)
	}
	DecActiveWorkers()
	if val := testutil.ToFloat64(workerActiveWorkers); val != 0 {
		t.Errorf("expected workerActiveWorkers to be 0, got %f", val)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	if Handler() == nil {
		t.Fatal("expected a non-nil metrics handler")
	}
}
