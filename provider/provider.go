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


package provider

import (
	"context"

	"github.com/poiesic/embedsync/core"
)

// Input is one chunk of text submitted to the embedding provider.
// Id is the stable input key "{collection}:{docId}:{chunkIndex}".
type Input struct {
	Id   string
	Text string
}

// Output is the provider's result for one input. Exactly one of Embedding
// and Err is meaningful; a nil Embedding with a nil Err is treated as a
// per-chunk failure by the caller.
type Output struct {
	Id        string
	Embedding []float32
	Err       error
}

// Submission is the provider's acknowledgement of a prepared batch.
type Submission struct {
	// ProviderBatchId is the provider's opaque handle for the batch.
	ProviderBatchId string

	// Status is the batch status as reported at submission time, typically
	// StatusQueued or StatusRunning.
	Status core.Status

	// InputCount is the number of inputs the provider accepted.
	InputCount int
}

// PollResult is the outcome of one polling step for a batch.
type PollResult struct {
	// Status is the batch status as reported by the provider. Terminal
	// statuses end polling for the batch.
	Status core.Status

	// Error carries the provider's batch-level failure message, if any.
	Error string
}

// Provider is the embedding provider adapter. Implementations may be
// synchronous (a local embedder that completes during PollBatch) or wrap a
// genuinely asynchronous batch API.
type Provider interface {
	// PrepareBatch registers a group of inputs with the provider and returns
	// a handle for later polling. It must not block on embedding computation.
	PrepareBatch(ctx context.Context, inputs []Input) (*Submission, error)

	// PollBatch asks the provider for the status of a prepared batch. When
	// the batch has completed, the provider streams one Output per input
	// through onChunk before returning; outputs are not materialized as a
	// whole. A non-nil error from onChunk aborts the stream and is returned.
	//
	// Polling an unknown or already-drained handle returns a terminal
	// PollResult rather than an error.
	PollBatch(ctx context.Context, providerBatchId string, onChunk func(Output) error) (*PollResult, error)
}

// ErrorNotifier receives failure notifications when a run finishes with
// failed batches, so callers can release provider-side resources.
// Providers and external callers may optionally implement it.
type ErrorNotifier interface {
	OnError(ctx context.Context, providerBatchIds []string, cause error, failedChunks []core.ChunkRef)
}
