package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geosnap/config"
	"geosnap/photo"
	"geosnap/photo/phototest"
	"geosnap/pipeline"
	"geosnap/utils"
)

type fakeRunner struct {
	calls []string
	errs  map[string]error
	// onRun runs before the result is returned.
	onRun func(req pipeline.ForwardRequest)
}

func (f *fakeRunner) ProcessPhotos(ctx context.Context, req pipeline.ForwardRequest, _ photo.ProgressFunc) (*pipeline.Summary, error) {
	f.calls = append(f.calls, req.ProjectName)
	if f.onRun != nil {
		f.onRun(req)
	}
	if err := f.errs[req.ProjectName]; err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, utils.Cancelled()
	}
	return &pipeline.Summary{Processed: 1, Outputs: []string{req.ProjectName + ".kmz"}}, nil
}

func request(name string) pipeline.ForwardRequest {
	return pipeline.ForwardRequest{InputDir: "/in/" + name, OutputDir: "/out", ProjectName: name}
}

func TestQueueAddRemoveClear(t *testing.T) {
	q := NewQueue(&fakeRunner{}, utils.Discard())
	a := q.Add(request("a"))
	b := q.Add(request("b"))
	q.Add(request("c"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, 3, q.PendingCount())

	assert.True(t, q.Remove(b))
	assert.False(t, q.Remove(b), "already removed")
	assert.False(t, q.Remove("unknown"))
	assert.Equal(t, 2, q.PendingCount())

	res := q.ProcessAll(context.Background(), nil)
	assert.Equal(t, 2, res.Completed)
	assert.False(t, q.Remove(a), "finished jobs cannot be removed")

	q.Add(request("d"))
	q.Clear()
	assert.Equal(t, 0, q.PendingCount())
	assert.Len(t, q.Jobs(), 2, "finished jobs survive Clear")
}

func TestProcessAllMixedResults(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{
		"empty":  utils.NoUsableData(4, "/in/empty"),
		"broken": errors.New("disk full"),
	}}
	q := NewQueue(runner, utils.Discard())
	for _, name := range []string{"ok", "empty", "broken", "ok2"} {
		q.Add(request(name))
	}

	var seen []int
	res := q.ProcessAll(context.Background(), func(current, total int, _ string) {
		seen = append(seen, current)
		assert.Equal(t, 4, total)
	})

	assert.Equal(t, Result{Total: 4, Completed: 2, Failed: 2, Cancelled: 0, Details: res.Details}, res)
	assert.Len(t, res.Details, 4)
	assert.Contains(t, res.Details[0], "ok.kmz")
	assert.Contains(t, res.Details[2], "disk full")
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
	assert.Equal(t, []string{"ok", "empty", "broken", "ok2"}, runner.calls)

	jobs := q.Jobs()
	assert.Equal(t, StatusCompleted, jobs[0].Status)
	assert.Equal(t, StatusFailed, jobs[1].Status)
	assert.Contains(t, jobs[1].Error, "no usable GPS data")
	assert.Equal(t, "Queue: 0 pending, 0 running, 2 completed, 2 failed, 0 cancelled", q.Summary())

	again := q.ProcessAll(context.Background(), nil)
	assert.Equal(t, 0, again.Total, "finished jobs are not rerun")
}

func TestProcessAllCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &fakeRunner{onRun: func(req pipeline.ForwardRequest) {
		if req.ProjectName == "second" {
			cancel()
		}
	}}
	q := NewQueue(runner, utils.Discard())
	for _, name := range []string{"first", "second", "third", "fourth"} {
		q.Add(request(name))
	}

	res := q.ProcessAll(ctx, nil)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 3, res.Cancelled, "the job that saw the cancellation and the rest")
	assert.Equal(t, []string{"first", "second"}, runner.calls)

	for _, job := range q.Jobs()[1:] {
		assert.Equal(t, StatusCancelled, job.Status, job.Request.ProjectName)
	}
}

func TestProcessAllWithService(t *testing.T) {
	in := t.TempDir()
	phototest.MinimalJPEG(t, in, "a.jpg")
	out := t.TempDir()

	cfg := config.Default()
	cfg.Workers = 1
	q := NewQueue(pipeline.New(cfg, utils.Discard(), nil), utils.Discard())
	q.Add(pipeline.ForwardRequest{InputDir: in, OutputDir: out, ProjectName: "uno", IncludeNoGPS: true})
	q.Add(pipeline.ForwardRequest{InputDir: filepath.Join(in, "missing"), OutputDir: out, ProjectName: "dos"})

	res := q.ProcessAll(context.Background(), nil)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 1, res.Failed)
	_, err := os.Stat(filepath.Join(out, "uno.kmz"))
	assert.NoError(t, err)
}

func TestLoadJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs:
  - input: fotos/lunes
    output: reportes
    project: lunes
  - input: fotos/martes
    output: reportes
    include_no_gps: true
`), 0o644))

	reqs, err := LoadJobs(path)
	require.NoError(t, err)
	assert.Equal(t, []pipeline.ForwardRequest{
		{InputDir: "fotos/lunes", OutputDir: "reportes", ProjectName: "lunes"},
		{InputDir: "fotos/martes", OutputDir: "reportes", IncludeNoGPS: true},
	}, reqs)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("jobs:\n  - input: x\n"), 0o644))
	_, err = LoadJobs(bad)
	assert.ErrorContains(t, err, "job 1")

	_, err = LoadJobs(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}
