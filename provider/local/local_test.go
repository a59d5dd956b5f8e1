package local

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/embedsync/ai/mock"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_RequiresEmbedder(t *testing.T) {
	_, err := NewProvider(nil)
	assert.ErrorIs(t, err, provider.ErrEmbedderRequired)
}

func TestPrepareBatch_EmptyInputs(t *testing.T) {
	p, err := NewProvider(mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = p.PrepareBatch(context.Background(), nil)
	assert.ErrorIs(t, err, provider.ErrEmptyBatch)
}

func TestPrepareBatch_ReturnsHandle(t *testing.T) {
	store := NewMemoryBatchStore()
	p, err := NewProvider(mock.NewMockEmbedder(), WithBatchStore(store))
	require.NoError(t, err)

	sub, err := p.PrepareBatch(context.Background(), []provider.Input{
		{Id: "posts:a:0", Text: "first"},
		{Id: "posts:a:1", Text: "second"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, sub.ProviderBatchId)
	assert.Equal(t, core.StatusQueued, sub.Status)
	assert.Equal(t, 2, sub.InputCount)
	assert.Equal(t, 1, store.Len())
}

func TestPollBatch_StreamsOutputsInOrder(t *testing.T) {
	store := NewMemoryBatchStore()
	p, err := NewProvider(mock.NewMockEmbedder(), WithBatchStore(store))
	require.NoError(t, err)

	sub, err := p.PrepareBatch(context.Background(), []provider.Input{
		{Id: "posts:a:0", Text: "first"},
		{Id: "posts:a:1", Text: "second"},
	})
	require.NoError(t, err)

	var ids []string
	result, err := p.PollBatch(context.Background(), sub.ProviderBatchId, func(out provider.Output) error {
		require.NoError(t, out.Err)
		require.NotEmpty(t, out.Embedding)
		ids = append(ids, out.Id)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, core.StatusSucceeded, result.Status)
	assert.Equal(t, []string{"posts:a:0", "posts:a:1"}, ids)
	assert.Equal(t, 0, store.Len(), "drained batch should be removed")
}

func TestPollBatch_UnknownHandleIsTerminal(t *testing.T) {
	p, err := NewProvider(mock.NewMockEmbedder())
	require.NoError(t, err)

	called := false
	result, err := p.PollBatch(context.Background(), "no-such-batch", func(provider.Output) error {
		called = true
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, core.StatusSucceeded, result.Status)
	assert.False(t, called)
}

func TestPollBatch_EmbedderFailure(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("model unavailable")
	}

	store := NewMemoryBatchStore()
	p, err := NewProvider(embedder, WithBatchStore(store))
	require.NoError(t, err)

	sub, err := p.PrepareBatch(context.Background(), []provider.Input{{Id: "posts:a:0", Text: "x"}})
	require.NoError(t, err)

	result, err := p.PollBatch(context.Background(), sub.ProviderBatchId, func(provider.Output) error {
		t.Fatal("no outputs expected for a failed batch")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, core.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "model unavailable")
	assert.Equal(t, 0, store.Len())
}

func TestPollBatch_MissingVectorIsPerChunkError(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		// Only the first text gets a vector.
		return [][]float32{{0.1, 0.2}}, nil
	}

	p, err := NewProvider(embedder)
	require.NoError(t, err)

	sub, err := p.PrepareBatch(context.Background(), []provider.Input{
		{Id: "posts:a:0", Text: "ok"},
		{Id: "posts:a:1", Text: "dropped"},
	})
	require.NoError(t, err)

	var outputs []provider.Output
	result, err := p.PollBatch(context.Background(), sub.ProviderBatchId, func(out provider.Output) error {
		outputs = append(outputs, out)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, core.StatusSucceeded, result.Status)
	require.Len(t, outputs, 2)
	assert.NoError(t, outputs[0].Err)
	assert.Error(t, outputs[1].Err)
	assert.Nil(t, outputs[1].Embedding)
}

func TestPollBatch_OnChunkErrorKeepsBatch(t *testing.T) {
	store := NewMemoryBatchStore()
	p, err := NewProvider(mock.NewMockEmbedder(), WithBatchStore(store))
	require.NoError(t, err)

	sub, err := p.PrepareBatch(context.Background(), []provider.Input{{Id: "posts:a:0", Text: "x"}})
	require.NoError(t, err)

	sinkErr := errors.New("write failed")
	_, err = p.PollBatch(context.Background(), sub.ProviderBatchId, func(provider.Output) error {
		return sinkErr
	})
	assert.ErrorIs(t, err, sinkErr)

	// Batch is retained so a retried poll re-streams the outputs.
	assert.Equal(t, 1, store.Len())
}
