package reembed

import (
	"context"
	"time"

	"github.com/poiesic/embedsync/core"
)

// RunProgress is a point-in-time snapshot of a run, aggregated from the
// run record and its batches.
type RunProgress struct {
	RunId            core.ID
	Pool             string
	EmbeddingVersion string
	Status           core.Status
	Inputs           int
	Succeeded        int
	Failed           int
	TotalBatches     int
	TerminalBatches  int
	FailedBatches    []core.ID
	Error            string
	SubmittedAt      time.Time
	CompletedAt      time.Time
}

// Done reports whether the run has reached a terminal state.
func (p *RunProgress) Done() bool {
	return p.Status.Terminal()
}

// Progress returns a snapshot of the run's current state. For a running
// run, Succeeded and Failed reflect only batches that are already terminal.
func (o *Orchestrator) Progress(ctx context.Context, runID core.ID) (*RunProgress, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	batches, err := o.store.GetRunBatches(ctx, runID)
	if err != nil {
		return nil, err
	}

	progress := &RunProgress{
		RunId:            run.Id,
		Pool:             run.Pool,
		EmbeddingVersion: run.EmbeddingVersion,
		Status:           run.Status,
		Inputs:           run.Inputs,
		Succeeded:        run.Succeeded,
		Failed:           run.Failed,
		TotalBatches:     run.TotalBatches,
		Error:            run.Error,
		SubmittedAt:      run.SubmittedAt,
		CompletedAt:      run.CompletedAt,
	}

	if !run.Status.Terminal() {
		succeeded, failed := 0, 0
		for _, batch := range batches {
			if batch.Status.Terminal() {
				succeeded += batch.SucceededCount
				failed += batch.FailedCount
			}
		}
		progress.Succeeded = succeeded
		progress.Failed = failed
	}

	for _, batch := range batches {
		if batch.Status.Terminal() {
			progress.TerminalBatches++
		}
		if batch.Status == core.StatusFailed || batch.Status == core.StatusCanceled {
			progress.FailedBatches = append(progress.FailedBatches, batch.Id)
		}
	}

	return progress, nil
}
