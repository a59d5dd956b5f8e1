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


package local

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/poiesic/embedsync/ai"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/provider"
)

// BatchStore holds prepared batches between PrepareBatch and the PollBatch
// call that drains them. Implementations must be safe for concurrent use.
type BatchStore interface {
	Put(providerBatchId string, inputs []provider.Input)
	Get(providerBatchId string) ([]provider.Input, bool)
	Delete(providerBatchId string)
}

// MemoryBatchStore is the default in-process BatchStore.
type MemoryBatchStore struct {
	mu      sync.Mutex
	batches map[string][]provider.Input
}

var _ BatchStore = (*MemoryBatchStore)(nil)

// NewMemoryBatchStore creates an empty in-process batch store.
func NewMemoryBatchStore() *MemoryBatchStore {
	return &MemoryBatchStore{batches: make(map[string][]provider.Input)}
}

func (s *MemoryBatchStore) Put(providerBatchId string, inputs []provider.Input) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[providerBatchId] = inputs
}

func (s *MemoryBatchStore) Get(providerBatchId string) ([]provider.Input, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inputs, ok := s.batches[providerBatchId]
	return inputs, ok
}

func (s *MemoryBatchStore) Delete(providerBatchId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batches, providerBatchId)
}

// Len returns the number of prepared batches not yet drained.
func (s *MemoryBatchStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

// Provider implements provider.Provider over a synchronous ai.Embedder.
// The whole batch is embedded during the first PollBatch call; there is no
// genuinely asynchronous provider-side state beyond the batch store.
//
// The batch store is scoped to the Provider instance and injectable, so two
// orchestrators in one process never share prepared batches.
type Provider struct {
	embedder ai.Embedder
	store    BatchStore
	logger   *slog.Logger
}

var _ provider.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithBatchStore replaces the default in-memory batch store.
func WithBatchStore(store BatchStore) Option {
	return func(p *Provider) {
		p.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a local synchronous provider over the given embedder.
//
// Returns provider.Provider interface to enforce abstraction.
func NewProvider(embedder ai.Embedder, opts ...Option) (provider.Provider, error) {
	if embedder == nil {
		return nil, provider.ErrEmbedderRequired
	}

	p := &Provider{
		embedder: embedder,
		store:    NewMemoryBatchStore(),
		logger:   slog.Default().With("component", "local-provider"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PrepareBatch stores the inputs under a fresh handle. Embedding is deferred
// to PollBatch.
func (p *Provider) PrepareBatch(ctx context.Context, inputs []provider.Input) (*provider.Submission, error) {
	if len(inputs) == 0 {
		return nil, provider.ErrEmptyBatch
	}

	providerBatchId := uuid.NewString()
	p.store.Put(providerBatchId, inputs)

	p.logger.Debug("batch prepared",
		"providerBatchId", providerBatchId,
		"inputs", len(inputs))

	return &provider.Submission{
		ProviderBatchId: providerBatchId,
		Status:          core.StatusQueued,
		InputCount:      len(inputs),
	}, nil
}

// PollBatch embeds the stored inputs and streams one output per input.
// The batch is removed from the store only after every output has been
// delivered, so an interrupted poll re-streams the same outputs on retry.
func (p *Provider) PollBatch(ctx context.Context, providerBatchId string, onChunk func(provider.Output) error) (*provider.PollResult, error) {
	inputs, ok := p.store.Get(providerBatchId)
	if !ok {
		// Already drained by a prior poll, or never prepared here. Report
		// terminal success; the caller's own batch record is authoritative.
		p.logger.Debug("poll for unknown batch", "providerBatchId", providerBatchId)
		return &provider.PollResult{Status: core.StatusSucceeded}, nil
	}

	texts := make([]string, len(inputs))
	for i, input := range inputs {
		texts[i] = input.Text
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		p.logger.Error("embedding batch failed",
			"providerBatchId", providerBatchId,
			"inputs", len(inputs),
			"err", err)
		p.store.Delete(providerBatchId)
		return &provider.PollResult{
			Status: core.StatusFailed,
			Error:  err.Error(),
		}, nil
	}

	for i, input := range inputs {
		output := provider.Output{Id: input.Id}
		if i < len(vectors) && len(vectors[i]) > 0 {
			output.Embedding = vectors[i]
		} else {
			output.Err = fmt.Errorf("no vector returned for input %s", input.Id)
		}
		if err := onChunk(output); err != nil {
			return nil, err
		}
	}

	p.store.Delete(providerBatchId)

	p.logger.Debug("batch completed",
		"providerBatchId", providerBatchId,
		"outputs", len(inputs))

	return &provider.PollResult{Status: core.StatusSucceeded}, nil
}
