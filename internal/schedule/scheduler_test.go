package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	started chan struct{}
	release chan struct{}
	runs    atomic.Int32
}

func (j *blockingJob) Name() string { return "blocking" }

func (j *blockingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	close(j.started)
	<-j.release
	return nil
}

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := NewCronScheduler()
	job := &blockingJob{started: make(chan struct{}), release: make(chan struct{})}
	require.Error(t, s.AddJob(job, "not a cron spec"))
	require.NoError(t, s.AddJob(job, "0 3 * * *"))
}

func TestWrapSkipsOverlappingRuns(t *testing.T) {
	s := NewCronScheduler()
	s.Start(context.Background())
	defer s.Stop()

	job := &blockingJob{started: make(chan struct{}), release: make(chan struct{})}
	run := s.wrap(job)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		run()
	}()
	<-job.started

	// A tick firing while the first run is in flight must be dropped.
	run()
	require.EqualValues(t, 1, job.runs.Load())

	close(job.release)
	wg.Wait()

	// After the first run completes the job is runnable again.
	job.started = make(chan struct{})
	job.release = make(chan struct{})
	close(job.release)
	run()
	require.EqualValues(t, 2, job.runs.Load())
}
