// Package studio runs image and video generations in the background and
// files the results in the workspace gallery.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/crewdesk/internal/gateway"
	"github.com/user/crewdesk/internal/metrics"
	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workspace"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("studio queue stopped")

// Generator produces media locators.
type Generator interface {
	GenerateImage(ctx context.Context, req gateway.ImageRequest) (string, error)
	GenerateVideo(ctx context.Context, req gateway.VideoRequest) (string, error)
}

// Queue manages one FIFO lane per job kind with a global concurrency
// semaphore. Jobs of the same kind run in submission order; the semaphore
// limits how many lanes generate at once.
type Queue struct {
	gen        Generator
	store      *workspace.Store
	metrics    *metrics.Metrics
	videoModel string

	lanes     map[Kind]chan *Job
	jobs      map[types.JobID]*Job
	semaphore *semaphore.Weighted
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithMetrics records running jobs.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithVideoModel sets the model name recorded on video artifacts.
func WithVideoModel(model string) Option {
	return func(q *Queue) { q.videoModel = model }
}

// NewQueue creates a Queue that runs up to maxConcurrent generations at once.
func NewQueue(gen Generator, store *workspace.Store, maxConcurrent int64, opts ...Option) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	q := &Queue{
		gen:        gen,
		store:      store,
		videoModel: gateway.DefaultVideoModel,
		lanes:      make(map[Kind]chan *Job),
		jobs:       make(map[types.JobID]*Job),
		semaphore:  semaphore.NewWeighted(maxConcurrent),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start initialises the queue's context. Must be called before Submit.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels running generations, closes all lanes and waits for the
// lane goroutines to exit. Jobs still queued are failed with ErrStopped.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		for _, lane := range q.lanes {
			close(lane)
		}
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Submit adds a job to its kind's lane, creating the lane (and its
// goroutine) on first use.
func (q *Queue) Submit(job *Job) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.ctx == nil {
		return nil, ErrStopped
	}

	lane, exists := q.lanes[job.Kind]
	if !exists {
		lane = make(chan *Job, 100)
		q.lanes[job.Kind] = lane
		q.wg.Add(1)
		go q.processLane(lane)
	}

	select {
	case lane <- job:
		q.jobs[job.ID] = job
		return job, nil
	default:
		return nil, fmt.Errorf("queue full for %s jobs", job.Kind)
	}
}

// SubmitImage queues an image generation.
func (q *Queue) SubmitImage(req gateway.ImageRequest) (*Job, error) {
	return q.Submit(NewImageJob(req))
}

// SubmitVideo queues a video generation.
func (q *Queue) SubmitVideo(req gateway.VideoRequest) (*Job, error) {
	return q.Submit(NewVideoJob(req))
}

// Get returns a snapshot of a job.
func (q *Queue) Get(id types.JobID) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	j, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (q *Queue) processLane(lane chan *Job) {
	defer q.wg.Done()
	for job := range lane {
		if q.ctx.Err() != nil {
			q.finish(job, nil, ErrStopped)
			continue
		}
		if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
			q.finish(job, nil, ErrStopped)
			continue
		}
		q.run(job)
		q.semaphore.Release(1)
	}
}

func (q *Queue) run(job *Job) {
	q.active.Add(1)
	defer q.active.Add(-1)
	q.metrics.JobStarted(string(job.Kind))
	defer q.metrics.JobFinished(string(job.Kind))

	now := time.Now()
	q.mu.Lock()
	job.Status = JobRunning
	job.StartedAt = &now
	q.mu.Unlock()

	media := types.GeneratedMedia{Prompt: job.prompt()}
	var (
		locator string
		err     error
	)
	switch job.Kind {
	case KindImage:
		locator, err = q.gen.GenerateImage(q.ctx, job.Image)
		media.Type = types.MediaImage
		media.Model = string(job.Image.Model)
		if media.Model == "" {
			media.Model = string(types.ImageModelFlash)
		}
		media.AspectRatio = job.Image.AspectRatio
		media.ReferenceImage = job.Image.ReferenceImage
	case KindVideo:
		locator, err = q.gen.GenerateVideo(q.ctx, job.Video)
		media.Type = types.MediaVideo
		media.Model = q.videoModel
		media.ReferenceImage = job.Video.SourceImage
	default:
		err = fmt.Errorf("unknown job kind: %s", job.Kind)
	}

	if err != nil {
		slog.Error("media job failed", "job_id", job.ID, "kind", job.Kind, "error", err)
		q.store.Notify("Generation failed", fmt.Sprintf("%s for %q: %v", job.Kind, media.Prompt, err), types.CategoryWarning)
		q.finish(job, nil, err)
		return
	}

	media.URL = locator
	stored := q.store.AddMedia(media)
	q.store.Notify("Media ready", fmt.Sprintf("New %s in the gallery: %q", job.Kind, media.Prompt), types.CategoryInfo)
	slog.Info("media job complete", "job_id", job.ID, "kind", job.Kind, "media_id", stored.ID)
	q.finish(job, &stored, nil)
}

func (q *Queue) finish(job *Job, media *types.GeneratedMedia, err error) {
	now := time.Now()
	q.mu.Lock()
	job.EndedAt = &now
	job.Media = media
	job.Err = err
	if err != nil {
		job.Status = JobFailed
	} else {
		job.Status = JobComplete
	}
	q.mu.Unlock()

	close(job.done)
	if job.OnDone != nil {
		job.OnDone(job)
	}
}

// WaitIdle blocks until no jobs are actively running, or the timeout
// expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}
