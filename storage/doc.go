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


// Package storage provides the storage abstraction layer for embedsync.
//
// This package defines repository interfaces that decouple storage
// implementation from the orchestration logic. The bulk re-embedding state
// machine persists every Run, Batch and ChunkMetadata mutation through these
// interfaces before a task returns, which is what makes the pipeline
// crash-resumable: after a restart, the persisted state alone is enough to
// resume or to recognize already-terminal work.
//
// # Constructor Return Type Pattern
//
// This package follows a strict "return interface" pattern for all public
// constructors to enforce abstraction and enable multiple storage backend
// implementations:
//
//	store, err := badger.NewStore(path)  // returns storage.Store interface
//
// Internal package constructors (newBackend, newRunRepository, etc.) may
// return concrete types since they're only used within the implementation
// package.
//
// # Architecture
//
//   - Store: combined interface the orchestrator consumes
//   - RunRepository / BatchRepository / ChunkMetadataRepository: durable
//     state-machine records
//   - EmbeddingRepository: the derived embedding table
//   - DocumentStore: source documents
//   - VectorIndex: hook for external vector search engines
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support concurrent
// access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation and timeout
// support.
package storage
