package retrain

import (
	"context"
	"errors"
	"sync"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("retraining already in progress")

// Runner serializes retraining runs and remembers the last report.
type Runner struct {
	job     *Job
	last    *Report
	running sync.Mutex
	mu      sync.RWMutex
}

// NewRunner wraps job.
func NewRunner(job *Job) *Runner {
	return &Runner{job: job}
}

// Run starts a run unless one is already going.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if !r.running.TryLock() {
		return Report{}, ErrRunInProgress
	}
	defer r.running.Unlock()

	report, err := r.job.Run(ctx)
	if err == nil {
		r.mu.Lock()
		r.last = &report
		r.mu.Unlock()
	}
	return report, err
}

// LastReport returns the most recent successful report.
func (r *Runner) LastReport() (Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Report{}, false
	}
	return *r.last, true
}
