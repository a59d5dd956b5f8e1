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


package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Status is the lifecycle state of a Run or Batch.
type Status int

const (
	// StatusQueued means the unit has been created but not yet submitted.
	StatusQueued Status = iota + 1
	// StatusRunning means the unit has been submitted and is in flight.
	StatusRunning
	// StatusSucceeded is terminal: the unit completed with at least partial success.
	StatusSucceeded
	// StatusFailed is terminal: the unit completed without success.
	StatusFailed
	// StatusCanceled is terminal: the unit was canceled before completion.
	StatusCanceled
)

// Terminal reports whether the status is one of the terminal states.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// CanTransition reports whether a status change respects monotonicity:
// a terminal status never transitions to a different status.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return !from.Terminal()
}

// Run is one bulk re-embedding attempt for a knowledge pool.
// Runs are never deleted; a pool's most recent succeeded run is the
// baseline for incremental eligibility of the next run.
type Run struct {
	Id               ID
	Pool             string
	EmbeddingVersion string
	Status           Status
	TotalBatches     int // set once all batches are created, immutable afterwards
	Inputs           int // chunks discovered for this run
	Succeeded        int
	Failed           int
	Error            string
	FailedChunks     []ChunkRef
	SubmittedAt      time.Time
	CompletedAt      time.Time
}

// Batch is one unit of chunks submitted together to the embedding provider.
type Batch struct {
	Id              ID
	RunId           ID
	BatchIndex      int // 0-based, contiguous within a run, discovery order
	ProviderBatchId string
	Status          Status
	InputCount      int
	SucceededCount  int
	FailedCount     int
	Error           string
	SubmittedAt     time.Time
	CompletedAt     time.Time
}

// ChunkRef identifies a single chunk of a source document.
// It is the element type of a run's failed-chunk report.
type ChunkRef struct {
	Collection string
	DocId      string
	ChunkIndex int
}

// InputId returns the stable input key for the referenced chunk.
func (r ChunkRef) InputId() string {
	return InputId(r.Collection, r.DocId, r.ChunkIndex)
}

// InputId composes the stable key "{collection}:{docId}:{chunkIndex}" under
// which a chunk is submitted to the provider and staged in metadata.
// Collection and document ids must not contain ':' (see ValidateDocumentKey).
func InputId(collection, docId string, chunkIndex int) string {
	return collection + ":" + docId + ":" + strconv.Itoa(chunkIndex)
}

// ParseInputId splits an input key back into its chunk reference.
func ParseInputId(inputId string) (ChunkRef, error) {
	parts := strings.Split(inputId, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return ChunkRef{}, fmt.Errorf("%w: %q", ErrInvalidInputId, inputId)
	}
	idx, err := strconv.Atoi(parts[2])
	if err != nil || idx < 0 {
		return ChunkRef{}, fmt.Errorf("%w: %q", ErrInvalidInputId, inputId)
	}
	return ChunkRef{Collection: parts[0], DocId: parts[1], ChunkIndex: idx}, nil
}

// ChunkMetadata is the staging record for one chunk awaiting an embedding
// result. It exists between batch creation and the batch's terminal success;
// metadata of failed batches is retained to support single-batch retry.
type ChunkMetadata struct {
	RunId            ID
	BatchId          ID
	InputId          string
	Text             string
	SourceCollection string
	DocId            string
	ChunkIndex       int
	EmbeddingVersion string
	Extensions       map[string]string
}

// Ref returns the chunk reference for this metadata record.
func (m *ChunkMetadata) Ref() ChunkRef {
	return ChunkRef{Collection: m.SourceCollection, DocId: m.DocId, ChunkIndex: m.ChunkIndex}
}

// Embedding is one embedded chunk of a source document within a knowledge pool.
// At most one embedding generation per document survives: superseded rows are
// deleted before rows of a new generation are written.
type Embedding struct {
	Id               ID // content-derived from (pool, inputId)
	Pool             string
	SourceCollection string
	DocId            string
	ChunkIndex       int
	ChunkText        string
	EmbeddingVersion string
	Vector           []float32
	Extensions       map[string]string
	InsertedAt       time.Time
}

// EmbeddingId derives the deterministic record id for an embedding row.
func EmbeddingId(pool, inputId string) ID {
	return IDFromContent(pool + "/" + inputId)
}

// Document is a source document held by the document store.
type Document struct {
	Collection string
	DocId      string
	Content    string
	Fields     map[string]string
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// Chunk is one unit of text derived from a source document by a converter.
// Extensions are opaque key/value pairs copied through to the embedding row.
type Chunk struct {
	Text       string
	Extensions map[string]string
}

// SimilarityMatch is an embedding row match from vector similarity search.
type SimilarityMatch struct {
	RecordId ID
	Score    float32
}

// SearchResult is a search hit with the full embedding row and relevance score.
type SearchResult struct {
	Embedding *Embedding
	Score     float32
}
