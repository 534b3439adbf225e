package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/assure-cli/internal/report"
	"github.com/xkilldash9x/assure-cli/internal/script"
)

// RunWriter persists a finished run.
type RunWriter interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// Recorder is a report.Reporter that collects step outcomes and writes the
// run to a RunWriter when it finishes.
type Recorder struct {
	ctx context.Context
	w   RunWriter
	now func() time.Time

	mu  sync.Mutex
	run RunRecord
}

var _ report.Reporter = (*Recorder)(nil)

// NewRecorder creates a recorder. ctx bounds the final write.
func NewRecorder(ctx context.Context, w RunWriter) *Recorder {
	return &Recorder{ctx: ctx, w: w, now: time.Now}
}

// RunID returns the id assigned by Begin.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.ID
}

func (r *Recorder) Begin(path string, _ []script.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run = RunRecord{ID: uuid.NewString(), Script: path, StartedAt: r.now()}
}

func (r *Recorder) CommandStarted(script.Command) {}

func (r *Recorder) CommandPassed(cmd script.Command, elapsed time.Duration) {
	r.add(StepRecord{Line: cmd.Line, Raw: cmd.Raw, Passed: true, Duration: elapsed})
}

func (r *Recorder) CommandFailed(cmd script.Command, elapsed time.Duration, err error) {
	r.add(StepRecord{Line: cmd.Line, Raw: cmd.Raw, Duration: elapsed, Error: err.Error()})
}

func (r *Recorder) add(step StepRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Steps = append(r.run.Steps, step)
}

// Finish writes the collected run.
func (r *Recorder) Finish(s report.Summary) error {
	r.mu.Lock()
	run := r.run
	r.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
		run.StartedAt = r.now()
	}
	if run.Script == "" {
		run.Script = s.Script
	}
	run.Duration = s.Duration
	run.Passed = s.Passed
	run.FailedLine = s.FailedLine
	if s.Err != nil {
		run.Error = s.Err.Error()
	}
	return r.w.RecordRun(r.ctx, run)
}
