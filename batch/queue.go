// Package batch runs a queue of forward-mode jobs one after another.
package batch

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"geosnap/photo"
	"geosnap/pipeline"
	"geosnap/utils"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job is one queued forward-mode invocation.
type Job struct {
	ID      string
	Request pipeline.ForwardRequest
	Status  Status
	Error   string
}

// Result summarises one ProcessAll call.
type Result struct {
	Total     int
	Completed int
	Failed    int
	Cancelled int
	Details   []string
}

// Runner executes a single job. *pipeline.Service satisfies it.
type Runner interface {
	ProcessPhotos(ctx context.Context, req pipeline.ForwardRequest, progress photo.ProgressFunc) (*pipeline.Summary, error)
}

// Queue holds jobs in insertion order. It is safe for concurrent use, but
// only one ProcessAll runs at a time.
type Queue struct {
	mu     sync.Mutex
	run    sync.Mutex
	jobs   []*Job
	runner Runner
	log    logrus.FieldLogger
}

func NewQueue(runner Runner, log logrus.FieldLogger) *Queue {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Queue{runner: runner, log: log}
}

// Add appends a pending job and returns its id.
func (q *Queue) Add(req pipeline.ForwardRequest) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := &Job{ID: uuid.NewString(), Request: req, Status: StatusPending}
	q.jobs = append(q.jobs, job)
	return job.ID
}

// Remove drops a job that has not started yet.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, job := range q.jobs {
		if job.ID == id && job.Status == StatusPending {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every pending job. Finished jobs stay listed.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.jobs[:0]
	for _, job := range q.jobs {
		if job.Status != StatusPending {
			kept = append(kept, job)
		}
	}
	q.jobs = kept
}

func (q *Queue) PendingCount() int {
	return len(q.withStatus(StatusPending))
}

// Jobs returns a snapshot of the queue.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, len(q.jobs))
	for i, job := range q.jobs {
		out[i] = *job
	}
	return out
}

func (q *Queue) withStatus(s Status) []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Job
	for _, job := range q.jobs {
		if job.Status == s {
			out = append(out, job)
		}
	}
	return out
}

func (q *Queue) setStatus(job *Job, s Status, msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Status = s
	job.Error = msg
}

// ProcessAll runs every pending job in order. progress receives the
// 1-based job number. Once ctx is done the job in flight stops at its next
// checkpoint and every remaining job is marked cancelled.
func (q *Queue) ProcessAll(ctx context.Context, progress photo.ProgressFunc) Result {
	q.run.Lock()
	defer q.run.Unlock()

	pending := q.withStatus(StatusPending)
	res := Result{Total: len(pending)}

	for i, job := range pending {
		name := job.Request.ProjectName
		if name == "" {
			name = job.Request.InputDir
		}
		if ctx.Err() != nil {
			q.setStatus(job, StatusCancelled, "")
			res.Cancelled++
			res.Details = append(res.Details, "Cancelled: "+name)
			continue
		}

		q.setStatus(job, StatusRunning, "")
		if progress != nil {
			progress(i+1, res.Total, "Processing: "+name)
		}
		log := q.log.WithField("path", job.Request.InputDir)

		summary, err := q.runner.ProcessPhotos(ctx, job.Request, nil)
		switch {
		case err == nil:
			q.setStatus(job, StatusCompleted, "")
			res.Completed++
			res.Details = append(res.Details, fmt.Sprintf("%s: %s", name, summary.Message()))
			log.Infof("Batch job completed: %s", name)
		case utils.KindOf(err) == utils.KindCancelled:
			q.setStatus(job, StatusCancelled, err.Error())
			res.Cancelled++
			res.Details = append(res.Details, "Cancelled: "+name)
			log.Info("Batch job cancelled")
		default:
			q.setStatus(job, StatusFailed, err.Error())
			res.Failed++
			res.Details = append(res.Details, fmt.Sprintf("%s: %v", name, err))
			log.WithField("kind", utils.KindOf(err).String()).WithError(err).Warnf("Batch job failed: %s", name)
		}
	}
	return res
}

// Summary describes the queue state in one line.
func (q *Queue) Summary() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := map[Status]int{}
	for _, job := range q.jobs {
		counts[job.Status]++
	}
	return fmt.Sprintf("Queue: %d pending, %d running, %d completed, %d failed, %d cancelled",
		counts[StatusPending], counts[StatusRunning], counts[StatusCompleted], counts[StatusFailed], counts[StatusCancelled])
}

// JobSpec is one entry of a YAML job file.
type JobSpec struct {
	Input        string `yaml:"input"`
	Output       string `yaml:"output"`
	Project      string `yaml:"project"`
	IncludeNoGPS bool   `yaml:"include_no_gps"`
}

// JobFile is the layout of a YAML job file:
//
//	jobs:
//	  - input: fotos/lunes
//	    output: reportes
//	    project: lunes
type JobFile struct {
	Jobs []JobSpec `yaml:"jobs"`
}

// LoadJobs reads a YAML job file.
func LoadJobs(path string) ([]pipeline.ForwardRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file %s: %w", path, err)
	}
	var file JobFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	out := make([]pipeline.ForwardRequest, 0, len(file.Jobs))
	for i, j := range file.Jobs {
		if j.Input == "" || j.Output == "" {
			return nil, fmt.Errorf("job %d in %s needs both input and output", i+1, path)
		}
		out = append(out, pipeline.ForwardRequest{
			InputDir:     j.Input,
			OutputDir:    j.Output,
			ProjectName:  j.Project,
			IncludeNoGPS: j.IncludeNoGPS,
		})
	}
	return out, nil
}
