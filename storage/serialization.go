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


package storage

import (
	"github.com/poiesic/embedsync/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

// MarshalRun serializes a Run to bytes.
func MarshalRun(run *core.Run) []byte {
	buf := make([]byte, core.RunMUS.Size(*run))
	core.RunMUS.Marshal(*run, buf)
	return buf
}

// UnmarshalRun deserializes a Run from bytes.
func UnmarshalRun(data []byte) (*core.Run, error) {
	run, _, err := core.RunMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// MarshalBatch serializes a Batch to bytes.
func MarshalBatch(batch *core.Batch) []byte {
	buf := make([]byte, core.BatchMUS.Size(*batch))
	core.BatchMUS.Marshal(*batch, buf)
	return buf
}

// UnmarshalBatch deserializes a Batch from bytes.
func UnmarshalBatch(data []byte) (*core.Batch, error) {
	batch, _, err := core.BatchMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// MarshalChunkMetadata serializes a ChunkMetadata to bytes.
func MarshalChunkMetadata(meta *core.ChunkMetadata) []byte {
	buf := make([]byte, core.ChunkMetadataMUS.Size(*meta))
	core.ChunkMetadataMUS.Marshal(*meta, buf)
	return buf
}

// UnmarshalChunkMetadata deserializes a ChunkMetadata from bytes.
func UnmarshalChunkMetadata(data []byte) (*core.ChunkMetadata, error) {
	meta, _, err := core.ChunkMetadataMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// MarshalEmbedding serializes an Embedding to bytes.
func MarshalEmbedding(embedding *core.Embedding) []byte {
	buf := make([]byte, core.EmbeddingMUS.Size(*embedding))
	core.EmbeddingMUS.Marshal(*embedding, buf)
	return buf
}

// UnmarshalEmbedding deserializes an Embedding from bytes.
func UnmarshalEmbedding(data []byte) (*core.Embedding, error) {
	embedding, _, err := core.EmbeddingMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &embedding, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, core.DocumentMUS.Size(*doc))
	core.DocumentMUS.Marshal(*doc, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	doc, _, err := core.DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
