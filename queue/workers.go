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


package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
)

const (
	defaultWorkerCount     = 4
	defaultMaxDeliveries   = 5
	defaultRedeliveryDelay = 250 * time.Millisecond
)

// Workers is an in-process at-least-once queue backed by an ants worker
// pool. A task whose handler returns an error is redelivered after a fixed
// delay, up to a delivery cap; the delay doubles as polling backoff for
// tasks that re-enqueue themselves.
type Workers struct {
	pool            *ants.Pool
	handler         Handler
	logger          *slog.Logger
	poolSize        int
	maxDeliveries   int
	redeliveryDelay time.Duration

	wg     sync.WaitGroup
	closed atomic.Bool
}

var _ Queue = (*Workers)(nil)

// WorkersOption configures a Workers queue.
type WorkersOption func(*Workers)

// WithWorkerCount sets the size of the worker pool.
func WithWorkerCount(n int) WorkersOption {
	return func(w *Workers) {
		if n > 0 {
			w.poolSize = n
		}
	}
}

// WithMaxDeliveries caps how many times a failing task is delivered.
func WithMaxDeliveries(n int) WorkersOption {
	return func(w *Workers) {
		if n > 0 {
			w.maxDeliveries = n
		}
	}
}

// WithRedeliveryDelay sets the pause before a failed task is redelivered.
func WithRedeliveryDelay(d time.Duration) WorkersOption {
	return func(w *Workers) {
		if d >= 0 {
			w.redeliveryDelay = d
		}
	}
}

// WithWorkersLogger sets the logger.
func WithWorkersLogger(logger *slog.Logger) WorkersOption {
	return func(w *Workers) {
		w.logger = logger
	}
}

// NewWorkers creates a worker-pool queue delivering tasks to handler.
func NewWorkers(handler Handler, opts ...WorkersOption) (*Workers, error) {
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	w := &Workers{
		handler:         handler,
		logger:          slog.Default().With("component", "task-queue"),
		poolSize:        defaultWorkerCount,
		maxDeliveries:   defaultMaxDeliveries,
		redeliveryDelay: defaultRedeliveryDelay,
	}
	for _, opt := range opts {
		opt(w)
	}

	pool, err := ants.NewPool(w.poolSize)
	if err != nil {
		return nil, err
	}
	w.pool = pool
	return w, nil
}

// Enqueue submits a task for asynchronous execution.
func (w *Workers) Enqueue(ctx context.Context, task Task) error {
	if w.closed.Load() {
		return ErrQueueClosed
	}
	return w.submit(task, 1)
}

// submit skips the closed check so that redeliveries of tasks already in
// flight still run during Close's drain.
func (w *Workers) submit(task Task, delivery int) error {
	w.wg.Add(1)
	err := w.pool.Submit(func() {
		defer w.wg.Done()
		w.deliver(task, delivery)
	})
	if err != nil {
		w.wg.Done()
		return err
	}
	return nil
}

func (w *Workers) deliver(task Task, delivery int) {
	// Tasks outlive the enqueuing call, so they run under their own context.
	err := w.handler(context.Background(), task)
	if err == nil {
		return
	}

	if delivery >= w.maxDeliveries {
		w.logger.Error("task dropped after max deliveries",
			"kind", task.Kind,
			"runId", task.RunId,
			"batchId", task.BatchId,
			"deliveries", delivery,
			"err", err)
		return
	}

	w.logger.Warn("task failed, redelivering",
		"kind", task.Kind,
		"runId", task.RunId,
		"delivery", delivery,
		"err", err)

	// The delay runs off-pool so a single-worker pool cannot deadlock on
	// its own redelivery.
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		time.Sleep(w.redeliveryDelay)
		if serr := w.submit(task, delivery+1); serr != nil {
			w.logger.Error("task redelivery rejected",
				"kind", task.Kind,
				"runId", task.RunId,
				"err", serr)
		}
	}()
}

// Close stops accepting tasks, waits for in-flight tasks (including pending
// redeliveries) and releases the pool.
func (w *Workers) Close() {
	if w.closed.Swap(true) {
		return
	}
	w.wg.Wait()
	w.pool.Release()
}
