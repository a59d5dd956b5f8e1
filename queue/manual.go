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
	"sync"
)

// Manual is a deterministic queue: Enqueue only records the task, and Drain
// executes tasks synchronously in FIFO order until the queue is empty.
// Tests and the CLI's blocking mode use it to run a whole pipeline to
// completion on the calling goroutine.
type Manual struct {
	mu    sync.Mutex
	tasks []Task
}

var _ Queue = (*Manual)(nil)

// NewManual creates an empty manual queue.
func NewManual() *Manual {
	return &Manual{}
}

// Enqueue appends the task.
func (m *Manual) Enqueue(ctx context.Context, task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

// Len returns the number of pending tasks.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Drain runs handler on each pending task in order, including tasks
// enqueued while draining, until the queue is empty. A handler error stops
// the drain with the failing task still consumed; at-least-once semantics
// are the caller's concern here.
func (m *Manual) Drain(ctx context.Context, handler Handler) error {
	if handler == nil {
		return ErrHandlerRequired
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		task, ok := m.pop()
		if !ok {
			return nil
		}
		if err := handler(ctx, task); err != nil {
			return err
		}
	}
}

// DrainN runs at most n tasks, returning how many ran. It lets tests stop a
// pipeline between state transitions.
func (m *Manual) DrainN(ctx context.Context, handler Handler, n int) (int, error) {
	if handler == nil {
		return 0, ErrHandlerRequired
	}

	for ran := 0; ; ran++ {
		if ran == n {
			return ran, nil
		}
		if err := ctx.Err(); err != nil {
			return ran, err
		}

		task, ok := m.pop()
		if !ok {
			return ran, nil
		}
		if err := handler(ctx, task); err != nil {
			return ran, err
		}
	}
}

func (m *Manual) pop() (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		return Task{}, false
	}
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	return task, true
}
