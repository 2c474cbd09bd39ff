package core

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
)

func TestJobsAndIterationsLogicIsCorrect(t *testing.T) {
	iterations := 10_000
	batchSize := 1_000
	maximumAvailableWorkers := 4

	jobs, nWorkers := GetNumberOfJobsAndWorkers(iterations, batchSize, maximumAvailableWorkers)

	if len(jobs) != 10 {
		t.Errorf("Expected 10 jobs, got %d", len(jobs))
	}
	if nWorkers != 4 {
		t.Errorf("Expected 4 workers, got %d", nWorkers)
	}
	for i := 1; i < len(jobs); i++ {
		if jobs[i].start != jobs[i-1].end {
			t.Errorf("Expected job %d to start where job %d ends", i, i-1)
		}
	}

	// last job is short
	jobs, nWorkers = GetNumberOfJobsAndWorkers(3_500, 1_000, 4)
	if len(jobs) != 4 {
		t.Errorf("Expected 4 jobs, got %d", len(jobs))
	}
	if nWorkers != 4 {
		t.Errorf("Expected 4 workers, got %d", nWorkers)
	}
	if jobs[3].end != 3_500 {
		t.Errorf("Expected last job to end at 3_500 (exclusive), got %d", jobs[3].end)
	}

	jobs, nWorkers = GetNumberOfJobsAndWorkers(10, 1_000, 4)
	if len(jobs) != 1 || nWorkers != 1 {
		t.Errorf("Expected 1 job and 1 worker, got %d and %d", len(jobs), nWorkers)
	}
	if jobs[0].start != 0 || jobs[0].end != 10 {
		t.Errorf("Expected job [0, 10), got [%d, %d)", jobs[0].start, jobs[0].end)
	}

	jobs, nWorkers = GetNumberOfJobsAndWorkers(0, 1_000, 4)
	if len(jobs) != 0 || nWorkers != 0 {
		t.Errorf("Expected no work for zero iterations, got %d jobs and %d workers", len(jobs), nWorkers)
	}
}

func TestRunJobsVisitsEveryIndexOnce(t *testing.T) {
	n := 101
	visits := make([]int32, n)

	err := runJobs(context.Background(), n, func(i int) error {
		atomic.AddInt32(&visits[i], 1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, v := range visits {
		if v != 1 {
			t.Errorf("index %d visited %d times", i, v)
		}
	}
}

func TestRunJobsRecoversPanics(t *testing.T) {
	err := runJobs(context.Background(), 10, func(i int) error {
		if i == 7 {
			panic("boom")
		}
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "job 7 panicked") {
		t.Fatalf("expected the panic to surface as an error, got %v", err)
	}
}

func TestRunJobsStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := runJobs(ctx, 100, func(i int) error {
		calls.Add(1)
		return nil
	})
	if err == nil {
		t.Fatalf("expected a context error")
	}
	if calls.Load() != 0 {
		t.Errorf("expected no work after cancellation, got %d calls", calls.Load())
	}
}
