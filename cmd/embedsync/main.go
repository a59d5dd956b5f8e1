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

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/poiesic/embedsync"
	"github.com/poiesic/embedsync/ai"
	"github.com/poiesic/embedsync/converters"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/pool"
	"github.com/poiesic/embedsync/reembed"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "embedsync",
		Usage: "Bulk re-embedding orchestrator for document knowledge pools",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write JSON logs to this file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "bulk-embed",
				Usage:  "Re-embed all eligible documents of a pool and wait for completion",
				Action: bulkEmbedCommand,
				Flags: append(databaseFlags(),
					&cli.StringFlag{
						Name:     "pool",
						Aliases:  []string{"p"},
						Usage:    "Pool name to re-embed",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks per provider batch",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Document page size for collection scans",
						Value: reembed.DefaultPageSize,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for provider submissions",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.DurationFlag{
						Name:  "poll-interval",
						Usage: "How often to report run progress",
						Value: 1 * time.Second,
					},
				),
			},
			{
				Name:   "retry-batch",
				Usage:  "Resubmit a failed batch and wait for its outcome",
				Action: retryBatchCommand,
				Flags: append(databaseFlags(),
					&cli.Uint64Flag{
						Name:     "batch",
						Aliases:  []string{"b"},
						Usage:    "Batch id to retry",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "poll-interval",
						Usage: "How often to check the batch state",
						Value: 1 * time.Second,
					},
				),
			},
			{
				Name:   "status",
				Usage:  "Show the current state of a run",
				Action: statusCommand,
				Flags: append(databaseFlags(),
					&cli.Uint64Flag{
						Name:     "run",
						Aliases:  []string{"r"},
						Usage:    "Run id to inspect",
						Required: true,
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Semantic search over a pool's embedding rows",
				ArgsUsage: "QUERY...",
				Action:    searchCommand,
				Flags: append(databaseFlags(),
					&cli.StringFlag{
						Name:     "pool",
						Aliases:  []string{"p"},
						Usage:    "Pool name to search",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "max-hits",
						Usage: "Maximum number of results",
						Value: 5,
					},
				),
			},
			{
				Name:   "add-doc",
				Usage:  "Store a document and embed it in every pool fed by its collection",
				Action: addDocCommand,
				Flags: append(databaseFlags(),
					&cli.StringFlag{
						Name:     "collection",
						Aliases:  []string{"c"},
						Usage:    "Source collection of the document",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Document id within the collection",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "file",
						Usage: "Read the document content from this file (default: stdin)",
					},
				),
			},
			{
				Name:   "delete-doc",
				Usage:  "Remove a document and its embedding rows from every pool",
				Action: deleteDocCommand,
				Flags: append(databaseFlags(),
					&cli.StringFlag{
						Name:     "collection",
						Aliases:  []string{"c"},
						Usage:    "Source collection of the document",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Document id within the collection",
						Required: true,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// databaseFlags are shared by every command that opens the database.
func databaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "pools",
			Usage:    "Path to the TOML pool configuration",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "markdown",
			Usage: "Collections whose documents are chunked as Markdown instead of plain text",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:     "embedding-model",
			Usage:    "Embedding model name",
			Required: true,
		},
	}
}

func openDatabase(c *cli.Context, opts ...embedsync.DatabaseOption) (*embedsync.Database, error) {
	registry, err := loadRegistry(c)
	if err != nil {
		return nil, err
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts = append(opts,
		embedsync.WithAIConfig(aiConfig),
		embedsync.WithRegistry(registry),
	)
	db, err := embedsync.NewDatabase(c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func loadRegistry(c *cli.Context) (*pool.Registry, error) {
	cfg, err := pool.LoadConfig(c.String("pools"))
	if err != nil {
		return nil, err
	}
	registry, err := pool.NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	markdown := make(map[string]bool)
	for _, collection := range c.StringSlice("markdown") {
		markdown[collection] = true
	}
	for _, p := range registry.Pools() {
		for _, collection := range p.Collections {
			if markdown[collection] {
				registry.RegisterConverter(collection, converters.Markdown)
			} else {
				registry.RegisterConverter(collection, converters.PlainText)
			}
		}
	}
	return registry, nil
}

func bulkEmbedCommand(c *cli.Context) error {
	ctx := context.Background()

	config := &reembed.Config{
		BatchSize:  c.Int("batch-size"),
		PageSize:   c.Int("page-size"),
		MaxRetries: c.Int("max-retries"),
		RetryDelay: c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.PageSize <= 0 {
		return fmt.Errorf("page-size must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := openDatabase(c, embedsync.WithOrchestratorConfig(config))
	if err != nil {
		return err
	}
	defer db.Close()

	poolName := c.String("pool")
	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Pool: %s\n", poolName)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	runID, err := db.StartBulkEmbed(ctx, poolName)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Started run %d\n", runID)

	progress, err := watchRun(ctx, db, runID, c.Duration("poll-interval"))
	if err != nil {
		return err
	}

	printProgress(progress)
	if progress.Status != core.StatusSucceeded {
		return fmt.Errorf("run %d finished %s: %s", runID, progress.Status, progress.Error)
	}
	return nil
}

func watchRun(ctx context.Context, db *embedsync.Database, runID core.ID, interval time.Duration) (*reembed.RunProgress, error) {
	for {
		progress, err := db.Progress(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to read run progress: %w", err)
		}
		if progress.Done() {
			return progress, nil
		}
		fmt.Fprintf(os.Stderr, "run %d: %s, %d/%d batches done, %d succeeded, %d failed\n",
			runID, progress.Status, progress.TerminalBatches, progress.TotalBatches,
			progress.Succeeded, progress.Failed)
		time.Sleep(interval)
	}
}

func printProgress(p *reembed.RunProgress) {
	fmt.Printf("Run %d (pool %q, version %q)\n", p.RunId, p.Pool, p.EmbeddingVersion)
	fmt.Printf("  Status: %s\n", p.Status)
	fmt.Printf("  Chunks: %d total, %d succeeded, %d failed\n", p.Inputs, p.Succeeded, p.Failed)
	fmt.Printf("  Batches: %d total, %d done\n", p.TotalBatches, p.TerminalBatches)
	if len(p.FailedBatches) > 0 {
		ids := make([]string, len(p.FailedBatches))
		for i, id := range p.FailedBatches {
			ids[i] = fmt.Sprintf("%d", id)
		}
		fmt.Printf("  Failed batches: %s\n", strings.Join(ids, ", "))
	}
	if p.Error != "" {
		fmt.Printf("  Error: %s\n", p.Error)
	}
}

func retryBatchCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	batchID := core.ID(c.Uint64("batch"))
	status, err := db.RetryFailedBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to retry batch %d: %w", batchID, err)
	}
	if status.Terminal() {
		fmt.Printf("Batch %d is already %s, nothing to retry\n", batchID, status)
		return nil
	}

	interval := c.Duration("poll-interval")
	for {
		batch, err := db.Store().GetBatch(ctx, batchID)
		if err != nil {
			return fmt.Errorf("failed to read batch state: %w", err)
		}
		if batch.Status.Terminal() {
			fmt.Printf("Batch %d finished %s: %d succeeded, %d failed\n",
				batchID, batch.Status, batch.SucceededCount, batch.FailedCount)
			if batch.Status != core.StatusSucceeded {
				return fmt.Errorf("batch %d finished %s: %s", batchID, batch.Status, batch.Error)
			}
			return nil
		}
		fmt.Fprintf(os.Stderr, "batch %d: %s\n", batchID, batch.Status)
		time.Sleep(interval)
	}
}

func statusCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	progress, err := db.Progress(context.Background(), core.ID(c.Uint64("run")))
	if err != nil {
		return fmt.Errorf("failed to read run progress: %w", err)
	}
	printProgress(progress)
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("a search query is required")
	}
	query := strings.Join(c.Args().Slice(), " ")

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	results, err := searcher.FindSimilar(context.Background(), c.String("pool"), query, c.Int("max-hits"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		row := hit.Embedding
		fmt.Printf("%d: %s/%s#%d [%0.3f]\n   %s\n",
			i, row.SourceCollection, row.DocId, row.ChunkIndex, hit.Score, row.ChunkText)
	}
	return nil
}

func addDocCommand(c *cli.Context) error {
	ctx := context.Background()

	var content []byte
	var err error
	if path := c.String("file"); path != "" {
		content, err = os.ReadFile(path)
	} else {
		content, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read document content: %w", err)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}
	defer pipeline.Release()

	doc := &core.Document{
		Collection: c.String("collection"),
		DocId:      c.String("id"),
		Content:    string(content),
		UpdatedAt:  time.Now(),
	}
	if err := pipeline.DocumentChanged(ctx, doc); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	pipeline.Wait()

	fmt.Printf("Stored %s/%s (%d bytes)\n", doc.Collection, doc.DocId, len(content))
	return nil
}

func deleteDocCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}
	defer pipeline.Release()

	collection, docID := c.String("collection"), c.String("id")
	if err := pipeline.DocumentDeleted(ctx, collection, docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	pipeline.Wait()

	fmt.Printf("Deleted %s/%s\n", collection, docID)
	return nil
}
