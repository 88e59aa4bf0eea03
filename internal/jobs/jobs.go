package jobs

import (
	"context"

	"github.com/stackfetch/stack-fetcher/internal/logger"
)

// Job is the handle for one launched background operation.
// Handles are created per launch and cannot alias an unrelated operation.
type Job struct {
	// name identifies the operation in logs.
	name string
	// done is closed when the operation finishes.
	done chan struct{}
	// err is the operation's outcome; read only after done is closed.
	err error
}

// Name returns the label the job was launched with.
func (j *Job) Name() string {
	return j.name
}

// Err returns the job's outcome. It blocks until the job finishes.
func (j *Job) Err() error {
	<-j.done
	return j.err
}

// Set tracks a group of concurrently launched background operations.
// A Set is consumed exactly once by WaitAll and must not be reused afterwards.
// Launch and WaitAll are intended to be called from a single goroutine.
type Set struct {
	jobs []*Job
}

// Launch starts fn in the background and returns its handle.
func (s *Set) Launch(ctx context.Context, name string, fn func(context.Context) error) *Job {
	job := &Job{
		name: name,
		done: make(chan struct{}),
	}

	go func() {
		defer close(job.done)

		job.err = fn(ctx)
	}()

	s.jobs = append(s.jobs, job)

	return job
}

// WaitAll blocks until every launched operation has finished and returns the
// number of operations that failed. Zero means full success.
//
// An individual failure never interrupts the wait: remaining operations are
// always waited for, so no background work is left running on partial failure.
func (s *Set) WaitAll(ctx context.Context) int {
	failures := 0

	for _, job := range s.jobs {
		if err := job.Err(); err != nil {
			failures++

			logger.ErrorKV(ctx, "Background job failed", "job", job.Name(), "error", err)
		}
	}

	s.jobs = nil

	return failures
}

// Len returns the number of launched operations still tracked by the set.
func (s *Set) Len() int {
	return len(s.jobs)
}
