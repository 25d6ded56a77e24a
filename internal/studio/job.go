package studio

import (
	"context"
	"time"

	"github.com/user/crewdesk/internal/gateway"
	"github.com/user/crewdesk/internal/types"
)

// Kind selects the generation a job performs. Each kind has its own lane.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// JobStatus represents the lifecycle state of a Job.
type JobStatus string

const (
	JobQueued   JobStatus = "queued"
	JobRunning  JobStatus = "running"
	JobComplete JobStatus = "complete"
	JobFailed   JobStatus = "failed"
)

// Job tracks one media generation from submission to the stored artifact.
type Job struct {
	ID        types.JobID
	Kind      Kind
	Image     gateway.ImageRequest
	Video     gateway.VideoRequest
	Status    JobStatus
	Media     *types.GeneratedMedia
	Err       error
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time

	// OnDone is called once the job completes or fails.
	OnDone func(*Job)

	done chan struct{}
}

// NewImageJob creates a queued image job.
func NewImageJob(req gateway.ImageRequest) *Job {
	return newJob(KindImage, func(j *Job) { j.Image = req })
}

// NewVideoJob creates a queued video job.
func NewVideoJob(req gateway.VideoRequest) *Job {
	return newJob(KindVideo, func(j *Job) { j.Video = req })
}

func newJob(kind Kind, set func(*Job)) *Job {
	j := &Job{
		ID:        types.NewJobID(),
		Kind:      kind,
		Status:    JobQueued,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
	set(j)
	return j
}

func (j *Job) prompt() string {
	if j.Kind == KindVideo {
		return j.Video.Prompt
	}
	return j.Image.Prompt
}

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes or ctx is done and returns the stored
// artifact.
func (j *Job) Wait(ctx context.Context) (types.GeneratedMedia, error) {
	select {
	case <-j.done:
	case <-ctx.Done():
		return types.GeneratedMedia{}, ctx.Err()
	}
	if j.Err != nil {
		return types.GeneratedMedia{}, j.Err
	}
	return *j.Media, nil
}
