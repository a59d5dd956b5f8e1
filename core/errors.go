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

import "errors"

// Domain validation errors
var (
	// ErrInvalidRun indicates a Run failed validation.
	ErrInvalidRun = errors.New("invalid run")

	// ErrInvalidBatch indicates a Batch failed validation.
	ErrInvalidBatch = errors.New("invalid batch")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidStatus indicates an unknown Status value.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidTransition indicates a terminal status would change.
	ErrInvalidTransition = errors.New("terminal status cannot change")

	// ErrInvalidInputId indicates an input key is not of the form
	// "{collection}:{docId}:{chunkIndex}".
	ErrInvalidInputId = errors.New("invalid input id")

	// ErrEmptyPoolName indicates a pool name is empty.
	ErrEmptyPoolName = errors.New("pool name cannot be empty")

	// ErrEmptyEmbeddingVersion indicates an embedding version is empty.
	ErrEmptyEmbeddingVersion = errors.New("embedding version cannot be empty")

	// ErrInvalidDocumentKey indicates a collection or document id is empty
	// or contains the reserved ':' separator.
	ErrInvalidDocumentKey = errors.New("invalid collection or document id")
)
