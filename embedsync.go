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

package embedsync

import (
	"context"
	"log/slog"

	"github.com/poiesic/embedsync/ai"
	"github.com/poiesic/embedsync/ai/openai"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/ingestion"
	"github.com/poiesic/embedsync/pool"
	"github.com/poiesic/embedsync/provider"
	"github.com/poiesic/embedsync/provider/local"
	"github.com/poiesic/embedsync/queue"
	"github.com/poiesic/embedsync/reembed"
	"github.com/poiesic/embedsync/search"
	"github.com/poiesic/embedsync/storage"
	"github.com/poiesic/embedsync/storage/badger"
)

// Database bundles the storage backend, the embedding provider and the bulk
// re-embedding orchestrator behind one handle.
type Database struct {
	store        storage.Store
	embedder     ai.Embedder
	registry     *pool.Registry
	workers      *queue.Workers
	orchestrator *reembed.Orchestrator
	logger       *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig           *ai.Config
	embedder           ai.Embedder
	registry           *pool.Registry
	poolConfigPath     string
	orchestratorConfig *reembed.Config
	notifier           provider.ErrorNotifier
	workerOpts         []queue.WorkersOption
	inMemory           bool
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithEmbedder injects an embedder directly, bypassing the OpenAI-compatible
// client built from the AI config.
func WithEmbedder(embedder ai.Embedder) DatabaseOption {
	return func(o *databaseOptions) {
		o.embedder = embedder
	}
}

// WithRegistry injects a pre-built pool registry.
func WithRegistry(registry *pool.Registry) DatabaseOption {
	return func(o *databaseOptions) {
		o.registry = registry
	}
}

// WithPoolConfig loads pool definitions from a TOML file.
// Ignored when WithRegistry is also given.
func WithPoolConfig(path string) DatabaseOption {
	return func(o *databaseOptions) {
		o.poolConfigPath = path
	}
}

// WithOrchestratorConfig sets the bulk re-embedding knobs.
func WithOrchestratorConfig(config *reembed.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.orchestratorConfig = config
	}
}

// WithErrorNotifier attaches the callback invoked when a run finishes with
// failed batches.
func WithErrorNotifier(notifier provider.ErrorNotifier) DatabaseOption {
	return func(o *databaseOptions) {
		o.notifier = notifier
	}
}

// WithWorkerOptions passes options through to the task queue.
func WithWorkerOptions(opts ...queue.WorkersOption) DatabaseOption {
	return func(o *databaseOptions) {
		o.workerOpts = append(o.workerOpts, opts...)
	}
}

// WithInMemoryStore opens an in-memory store, typically for tests. The file
// path given to NewDatabase is ignored.
func WithInMemoryStore() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
	}
	for _, opt := range opts {
		opt(options)
	}

	// Open storage
	var (
		store storage.Store
		err   error
	)
	if options.inMemory {
		store, err = badger.NewMemoryStore()
	} else {
		store, err = badger.NewStore(filePath)
	}
	if err != nil {
		return nil, err
	}

	// Resolve the embedder
	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	// Resolve the pool registry
	registry := options.registry
	if registry == nil && options.poolConfigPath != "" {
		cfg, cfgErr := pool.LoadConfig(options.poolConfigPath)
		if cfgErr != nil {
			store.Close()
			return nil, cfgErr
		}
		registry, err = pool.NewRegistryFromConfig(cfg)
		if err != nil {
			store.Close()
			return nil, err
		}
	}
	if registry == nil {
		registry = pool.NewRegistry()
	}

	// The provider runs the embedder in-process behind the async batch
	// protocol.
	prov, err := local.NewProvider(embedder)
	if err != nil {
		store.Close()
		return nil, err
	}

	// The queue needs a handler before the orchestrator exists; the handler
	// dispatches through the Database so both can be built in order.
	db := &Database{
		store:    store,
		embedder: embedder,
		registry: registry,
		logger:   slog.Default(),
	}

	workers, err := queue.NewWorkers(func(ctx context.Context, task queue.Task) error {
		return db.orchestrator.HandleTask(ctx, task)
	}, options.workerOpts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	db.workers = workers

	orchOpts := []reembed.Option{}
	if options.orchestratorConfig != nil {
		orchOpts = append(orchOpts, reembed.WithConfig(options.orchestratorConfig))
	}
	if options.notifier != nil {
		orchOpts = append(orchOpts, reembed.WithErrorNotifier(options.notifier))
	}
	orchestrator, err := reembed.NewOrchestrator(store, prov, registry, workers, orchOpts...)
	if err != nil {
		workers.Close()
		store.Close()
		return nil, err
	}
	db.orchestrator = orchestrator

	return db, nil
}

// Close drains the task queue and closes the storage backend.
func (db *Database) Close() error {
	db.workers.Close()

	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) Store() storage.Store {
	return db.store
}

func (db *Database) Registry() *pool.Registry {
	return db.registry
}

func (db *Database) Orchestrator() *reembed.Orchestrator {
	return db.orchestrator
}

// StartBulkEmbed begins a bulk re-embedding run over the named pool.
func (db *Database) StartBulkEmbed(ctx context.Context, poolName string) (core.ID, error) {
	return db.orchestrator.StartBulkEmbed(ctx, poolName)
}

// RetryFailedBatch resubmits a failed or canceled batch.
func (db *Database) RetryFailedBatch(ctx context.Context, batchID core.ID) (core.Status, error) {
	return db.orchestrator.RetryFailedBatch(ctx, batchID)
}

// Progress reports the current state of a run.
func (db *Database) Progress(ctx context.Context, runID core.ID) (*reembed.RunProgress, error) {
	return db.orchestrator.Progress(ctx, runID)
}

func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(db.store, db.embedder, db.registry, opts...)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.store, db.embedder, opts...)
}
