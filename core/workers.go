package core

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	ex "corr.service/data/extensions"
)

const (
	Workers   = 8
	BatchSize = 4 // assets per job, per asset work is small so batches stay tiny
)

type job struct {
	start int
	end   int // exclusive
}

// GetNumberOfJobsAndWorkers splits iterations into batches of batchSize and
// caps the worker count at the number of batches.
func GetNumberOfJobsAndWorkers(iterations int, batchSize int, workers int) ([]job, int) {
	if iterations <= 0 || batchSize <= 0 {
		return nil, 0
	}

	nJobs := int(math.Ceil(float64(iterations) / float64(batchSize)))
	nWorkers := ex.Min(nJobs, workers)

	jobs := make([]job, nJobs)
	for i := range nJobs {
		jobs[i] = job{
			start: i * batchSize,
			end:   ex.Min((i+1)*batchSize, iterations),
		}
	}

	return jobs, nWorkers
}

// runJobs calls fn once per index in [0, n) on a bounded pool of workers.
// A panic inside fn is turned into an error for that index, the first error
// cancels the remaining jobs.
func runJobs(ctx context.Context, n int, fn func(i int) error) error {
	jobs, nWorkers := GetNumberOfJobsAndWorkers(n, BatchSize, Workers)
	if len(jobs) == 0 {
		return nil
	}

	jobsChannel := make(chan job, len(jobs))
	for _, j := range jobs {
		jobsChannel <- j
	}
	close(jobsChannel)

	g, ctx := errgroup.WithContext(ctx)
	for range nWorkers {
		g.Go(func() error {
			for j := range jobsChannel {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				for i := j.start; i < j.end; i++ {
					if err := safeCall(i, fn); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}

	return g.Wait()
}

func safeCall(i int, fn func(i int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %d panicked: %v", i, r)
		}
	}()
	return fn(i)
}
