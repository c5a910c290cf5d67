// Package jobqueue implements Component G: a bounded worker pool for
// fire-and-forget agent work, with per-job event streams and cooperative
// cancellation.
package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	cogerrors "cogcore/internal/errors"
	"cogcore/internal/logging"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Event is a single timestamped entry in a job's bounded event log.
type Event struct {
	Type      string
	Data      interface{}
	Timestamp time.Time
}

// Job is a unit of queued work and its outcome (§4.6).
type Job struct {
	ID          string
	Status      JobStatus
	Message     string
	Metadata    map[string]interface{}
	Events      []Event
	Response    interface{}
	Error       error
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
}

// snapshot returns a value copy of the job's externally visible state.
func (j *Job) snapshot() Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	events := make([]Event, len(j.Events))
	copy(events, j.Events)
	out := *j
	out.Events = events
	out.mu = sync.Mutex{}
	out.cancel = nil
	return out
}

// Runner executes one job's message. emit appends a bounded, timestamped
// event; ctx is cancelled when the job is cancelled or the queue destroyed,
// so the runner can abort cooperatively.
type Runner func(ctx context.Context, message string, emit func(eventType string, data interface{})) (interface{}, error)

// Queue is a bounded FIFO worker pool (§4.6).
type Queue struct {
	mu sync.Mutex

	runner Runner

	maxConcurrent   int
	maxQueueSize    int
	maxEventsPerJob int

	jobs      map[string]*Job
	fifo      []string
	running   int
	nextID    int
	destroyed bool
}

// New constructs a job queue bound to runner, clamping maxConcurrent to 16
// per §4.6.
func New(runner Runner, maxConcurrent, maxQueueSize, maxEventsPerJob int) *Queue {
	if maxConcurrent > 16 {
		maxConcurrent = 16
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Queue{
		runner:          runner,
		maxConcurrent:   maxConcurrent,
		maxQueueSize:    maxQueueSize,
		maxEventsPerJob: maxEventsPerJob,
		jobs:            make(map[string]*Job),
	}
}

// Submit enqueues a job. If capacity allows, it reserves a worker slot and
// launches the runner in a background goroutine before returning; the job's
// status becomes running only when that goroutine starts, so the returned
// job can still read pending. Otherwise the job waits in the FIFO.
func (q *Queue) Submit(message string, metadata map[string]interface{}) (*Job, error) {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		return nil, cogerrors.ErrQueueDestroyed
	}
	if q.running+len(q.fifo) >= q.maxQueueSize {
		q.mu.Unlock()
		return nil, &cogerrors.QueueFullError{Queue: "jobqueue", Capacity: q.maxQueueSize}
	}

	q.nextID++
	id := fmt.Sprintf("job-%d", q.nextID)
	job := &Job{
		ID:        id,
		Status:    JobPending,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	q.jobs[id] = job

	var startNow bool
	if q.running < q.maxConcurrent {
		q.running++
		startNow = true
	} else {
		q.fifo = append(q.fifo, id)
	}
	q.mu.Unlock()

	if startNow {
		go q.run(job)
	}
	return job, nil
}

func (q *Queue) run(job *Job) {
	ctx, cancel := context.WithCancel(context.Background())

	job.mu.Lock()
	job.Status = JobRunning
	job.StartedAt = time.Now()
	job.cancel = cancel
	job.mu.Unlock()

	logging.JobQueueDebug("job started id=%s", job.ID)

	emit := func(eventType string, data interface{}) {
		job.mu.Lock()
		defer job.mu.Unlock()
		if len(job.Events) >= q.maxEventsPerJob {
			return
		}
		job.Events = append(job.Events, Event{Type: eventType, Data: data, Timestamp: time.Now()})
	}

	response, err := q.runner(ctx, job.Message, emit)

	job.mu.Lock()
	wasCancelled := job.Status == JobCancelled
	if !wasCancelled {
		job.CompletedAt = time.Now()
		if err != nil {
			job.Status = JobFailed
			job.Error = err
		} else {
			job.Status = JobCompleted
			job.Response = response
		}
	}
	job.mu.Unlock()
	cancel()

	logging.JobQueueDebug("job finished id=%s status=%s", job.ID, job.snapshot().Status)
	q.onJobDone()
}

func (q *Queue) onJobDone() {
	q.mu.Lock()
	q.running--
	var next *Job
	if len(q.fifo) > 0 && !q.destroyed {
		nextID := q.fifo[0]
		q.fifo = q.fifo[1:]
		next = q.jobs[nextID]
		q.running++
	}
	q.mu.Unlock()

	if next != nil {
		go q.run(next)
	}
}

// CancelJob cancels a pending or running job. Returns false if the job is
// unknown or already in a terminal state.
func (q *Queue) CancelJob(id string) bool {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return false
	}

	for i, pendingID := range q.fifo {
		if pendingID == id {
			job.mu.Lock()
			if job.Status == JobPending {
				job.Status = JobCancelled
				job.CompletedAt = time.Now()
				q.fifo = append(q.fifo[:i], q.fifo[i+1:]...)
				job.mu.Unlock()
				q.mu.Unlock()
				return true
			}
			job.mu.Unlock()
			break
		}
	}
	q.mu.Unlock()

	job.mu.Lock()
	if job.Status != JobRunning {
		job.mu.Unlock()
		return false
	}
	job.Status = JobCancelled
	cancel := job.cancel
	job.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// Get returns a snapshot of a job's current state.
func (q *Queue) Get(id string) (Job, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	q.mu.Unlock()
	if !ok {
		return Job{}, false
	}
	return job.snapshot(), true
}

// Destroy aborts all running jobs, cancels all pending jobs, and becomes
// idempotent; subsequent submits return ErrQueueDestroyed.
func (q *Queue) Destroy() {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		return
	}
	q.destroyed = true

	for _, id := range q.fifo {
		if job, ok := q.jobs[id]; ok {
			job.mu.Lock()
			job.Status = JobCancelled
			job.CompletedAt = time.Now()
			job.mu.Unlock()
		}
	}
	q.fifo = nil

	var runningCancels []context.CancelFunc
	for _, job := range q.jobs {
		job.mu.Lock()
		if job.Status == JobRunning {
			job.Status = JobCancelled
			if job.cancel != nil {
				runningCancels = append(runningCancels, job.cancel)
			}
		}
		job.mu.Unlock()
	}
	q.mu.Unlock()

	for _, cancel := range runningCancels {
		cancel()
	}
}
