// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/pool"
	"github.com/poiesic/embedsync/provider"
	"github.com/poiesic/embedsync/queue"
	"github.com/poiesic/embedsync/storage"
)

const (
	// DefaultBatchSize is the default number of chunks per provider batch.
	DefaultBatchSize = 100

	// DefaultPageSize is the default document page size for collection scans.
	DefaultPageSize = 100
)

// Config holds the operational knobs of the orchestrator.
type Config struct {
	// BatchSize is the number of chunks per provider batch under the
	// default flush policy.
	BatchSize int

	// PageSize is the document page size for collection scans.
	PageSize int

	// MaxRetries is the maximum number of attempts for provider submissions.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff between attempts.
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:  DefaultBatchSize,
		PageSize:   DefaultPageSize,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}
}

// Orchestrator drives bulk re-embedding runs. All of its work happens in
// discrete queue tasks handled by HandleTask; StartBulkEmbed and
// RetryFailedBatch only persist intent and enqueue the first task.
type Orchestrator struct {
	store    storage.Store
	provider provider.Provider
	registry *pool.Registry
	queue    queue.Queue
	vectors  storage.VectorIndex
	notifier provider.ErrorNotifier
	config   *Config
	flush    FlushFunc
	logger   *slog.Logger

	scanner   *Scanner
	streamer  *Streamer
	merger    *Merger
	poller    *Poller
	finalizer *Finalizer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(o *Orchestrator) {
		if config != nil {
			o.config = config
		}
	}
}

// WithVectorIndex attaches an external vector index that receives every
// written and deleted vector.
func WithVectorIndex(vectors storage.VectorIndex) Option {
	return func(o *Orchestrator) {
		o.vectors = vectors
	}
}

// WithErrorNotifier attaches the callback invoked when a run finishes with
// failed batches.
func WithErrorNotifier(notifier provider.ErrorNotifier) Option {
	return func(o *Orchestrator) {
		o.notifier = notifier
	}
}

// WithFlushFunc replaces the default size-based flush policy.
func WithFlushFunc(flush FlushFunc) Option {
	return func(o *Orchestrator) {
		o.flush = flush
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates an orchestrator over the given store, provider,
// pool registry and work queue. The queue's handler must dispatch to
// HandleTask.
func NewOrchestrator(store storage.Store, prov provider.Provider, registry *pool.Registry, q queue.Queue, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if prov == nil {
		return nil, ErrProviderRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if q == nil {
		return nil, ErrQueueRequired
	}

	o := &Orchestrator{
		store:    store,
		provider: prov,
		registry: registry,
		queue:    q,
		config:   DefaultConfig(),
		logger:   slog.Default().With("component", "reembed"),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.flush == nil {
		o.flush = SizeFlush(prov, o.config.BatchSize)
	}

	o.scanner = NewScanner(store, o.config.PageSize, o.logger)
	o.streamer = NewStreamer(store, registry, o.scanner, o.flush, o.config.MaxRetries, o.config.RetryDelay, o.logger)
	o.merger = NewMerger(store, o.vectors, o.logger)
	o.poller = NewPoller(store, prov, o.merger, o.logger)
	o.finalizer = NewFinalizer(store, o.notifier, o.logger)
	return o, nil
}

// StartBulkEmbed creates a run for the named pool and enqueues its start
// task. The returned id can be watched through Progress.
func (o *Orchestrator) StartBulkEmbed(ctx context.Context, poolName string) (core.ID, error) {
	p, err := o.registry.Pool(poolName)
	if err != nil {
		return 0, err
	}

	run, err := o.store.AddRun(ctx, &core.Run{
		Pool:             p.Name,
		EmbeddingVersion: p.EmbeddingVersion,
		Status:           core.StatusQueued,
	})
	if err != nil {
		return 0, err
	}

	if err := o.queue.Enqueue(ctx, queue.Task{Kind: queue.TaskRunStart, RunId: run.Id}); err != nil {
		return 0, err
	}

	o.logger.Info("bulk embed requested", "runId", run.Id, "pool", p.Name, "version", p.EmbeddingVersion)
	return run.Id, nil
}

// HandleTask is the queue handler: it dispatches one task to the matching
// state transition. Safe under at-least-once delivery.
func (o *Orchestrator) HandleTask(ctx context.Context, task queue.Task) error {
	switch task.Kind {
	case queue.TaskRunStart:
		return o.handleRunStart(ctx, task.RunId)
	case queue.TaskRunPoll:
		return o.handleRunPoll(ctx, task.RunId)
	case queue.TaskBatchPoll:
		return o.handleBatchPoll(ctx, task.BatchId)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTaskKind, task.Kind)
	}
}

// handleRunStart streams the run's batches and hands over to polling. A
// zero-chunk run finalizes as succeeded on the spot.
func (o *Orchestrator) handleRunStart(ctx context.Context, runID core.ID) error {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return nil
	}
	if run.Status != core.StatusQueued {
		// Streaming already happened; make sure polling keeps going.
		return o.queue.Enqueue(ctx, queue.Task{Kind: queue.TaskRunPoll, RunId: run.Id})
	}

	p, err := o.registry.Pool(run.Pool)
	if err != nil {
		return err
	}
	baseline, err := o.scanner.Baseline(ctx, run.Pool)
	if err != nil {
		return err
	}

	result, err := o.streamer.Stream(ctx, run, p, baseline)
	if err != nil {
		return err
	}

	if result.Inputs == 0 {
		o.logger.Info("no eligible chunks, run complete", "runId", run.Id, "pool", run.Pool)
		return o.finalizer.FinalizeRun(ctx, run, nil)
	}

	run.Status = core.StatusRunning
	run.Inputs = result.Inputs
	run.TotalBatches = result.Batches
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return err
	}

	o.logger.Info("run streamed",
		"runId", run.Id,
		"pool", run.Pool,
		"inputs", result.Inputs,
		"batches", result.Batches)

	return o.queue.Enqueue(ctx, queue.Task{Kind: queue.TaskRunPoll, RunId: run.Id})
}

// handleRunPoll advances every non-terminal batch of the run by one poll.
// Batches fail and succeed independently; the run finalizes only when all
// of them are terminal, otherwise the task re-enqueues itself.
func (o *Orchestrator) handleRunPoll(ctx context.Context, runID core.ID) error {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return nil
	}

	batches, err := o.store.GetRunBatches(ctx, runID)
	if err != nil {
		return err
	}

	allTerminal := true
	var newRefs []core.ChunkRef
	for _, batch := range batches {
		wasTerminal := batch.Status.Terminal()

		refs, err := o.poller.PollBatch(ctx, run, batch)
		if err != nil {
			return err
		}
		if !wasTerminal && batch.Status.Terminal() {
			newRefs = append(newRefs, refs...)
		}
		if !batch.Status.Terminal() {
			allTerminal = false
		}
	}

	run.FailedChunks = append(run.FailedChunks, newRefs...)

	if allTerminal {
		return o.finalizer.FinalizeRun(ctx, run, batches)
	}

	// Persist what this pass learned before waiting for the next one.
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return err
	}
	return o.queue.Enqueue(ctx, queue.Task{Kind: queue.TaskRunPoll, RunId: run.Id})
}
