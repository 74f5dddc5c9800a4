package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/vesta/engine/core"
)

// Job is CPU work that must not touch the device, e.g. image decoding.
type Job func() error

type jobTask struct {
	run  Job
	done chan<- error
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan jobTask
	wg         sync.WaitGroup

	mutex    sync.Mutex
	shutdown bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan jobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				err := job.run()
				if err != nil {
					core.LogError(err.Error())
				}
				job.done <- err
			}
		}()
	}
}

/**
 * @brief Shuts the job system down. Queued jobs still run.
 */
func (js *JobSystem) Shutdown() error {
	js.mutex.Lock()
	defer js.mutex.Unlock()
	if js.shutdown {
		return nil
	}
	js.shutdown = true
	close(js.jobQueue)
	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution.
 * @return A channel receiving the job's result exactly once.
 */
func (js *JobSystem) Submit(job Job) <-chan error {
	done := make(chan error, 1)
	js.mutex.Lock()
	defer js.mutex.Unlock()
	if js.shutdown {
		done <- fmt.Errorf("job submitted after shutdown: %w", core.ErrInvariantViolation)
		return done
	}
	js.jobQueue <- jobTask{run: job, done: done}
	return done
}

// Run executes jobs on the workers and waits for all of them.
func (js *JobSystem) Run(jobs ...Job) error {
	results := make([]<-chan error, len(jobs))
	for i, job := range jobs {
		results[i] = js.Submit(job)
	}
	errs := make([]error, len(jobs))
	for i, r := range results {
		errs[i] = <-r
	}
	return errors.Join(errs...)
}

// runJobs runs on js when present and inline otherwise.
func runJobs(js *JobSystem, jobs ...Job) error {
	if js == nil {
		errs := make([]error, len(jobs))
		for i, job := range jobs {
			errs[i] = job()
		}
		return errors.Join(errs...)
	}
	return js.Run(jobs...)
}
