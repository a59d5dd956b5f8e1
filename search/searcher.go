package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/poiesic/embedsync/ai"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/reembed"
	"github.com/poiesic/embedsync/storage"
)

// DefaultMinSimilarity is the cosine similarity floor for semantic matches.
const DefaultMinSimilarity = 0.60

// Searcher provides semantic search over a knowledge pool's embedding rows.
type Searcher struct {
	store         storage.EmbeddingRepository
	embedder      ai.Embedder
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinSimilarity overrides the similarity floor for semantic matches.
func WithMinSimilarity(min float32) Option {
	return func(s *Searcher) error {
		s.minSimilarity = min
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.EmbeddingRepository, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:         store,
		embedder:      embedder,
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindSimilar searches a pool for chunks similar to the query.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilar(ctx context.Context, pool, query string, maxHits int) ([]*core.SearchResult, error) {
	return s.FindSimilarWithMonitor(ctx, pool, query, maxHits, nil)
}

// FindSimilarWithMonitor searches with monitoring callbacks at each stage.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, pool, query string, maxHits int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(pool, query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	// Stored vectors are unit length; a normalized query makes the dot
	// product a cosine similarity.
	embedding = reembed.NormalizeVector(embedding)

	results, err := s.store.FindSimilar(ctx, pool, embedding, s.minSimilarity, maxHits)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "pool", pool, "err", err)
		return nil, err
	}
	monitor.AfterSemanticSearch(results)

	// A chunk containing every query word verbatim outranks a merely
	// similar one.
	for _, result := range results {
		if containsAllQueryWords(result.Embedding.ChunkText, query) {
			result.Score += 0.3
			monitor.VerbatimHit(result)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	return results, nil
}
