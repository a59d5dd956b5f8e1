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
	"fmt"
	"strings"
)

// ValidateRun validates a Run according to domain rules.
//
// Validation rules:
//   - Pool must not be empty
//   - EmbeddingVersion must not be empty
//   - Status must be a known value
//
// NOT validated (populated by the orchestrator):
//   - Counts and TotalBatches (0 is valid before streaming)
//   - ID (0 is valid from database sequences)
func ValidateRun(run *Run) error {
	if run == nil {
		return fmt.Errorf("%w: run is nil", ErrInvalidRun)
	}
	if run.Pool == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRun, ErrEmptyPoolName)
	}
	if run.EmbeddingVersion == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRun, ErrEmptyEmbeddingVersion)
	}
	if err := ValidateStatus(run.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRun, err)
	}
	return nil
}

// ValidateBatch validates a Batch according to domain rules.
//
// Validation rules:
//   - RunId must be set
//   - BatchIndex must not be negative
//   - Status must be a known value
func ValidateBatch(batch *Batch) error {
	if batch == nil {
		return fmt.Errorf("%w: batch is nil", ErrInvalidBatch)
	}
	if batch.RunId == 0 {
		return fmt.Errorf("%w: run id is required", ErrInvalidBatch)
	}
	if batch.BatchIndex < 0 {
		return fmt.Errorf("%w: batch index %d", ErrInvalidBatch, batch.BatchIndex)
	}
	if err := ValidateStatus(batch.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	return nil
}

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Collection and DocId must form a valid document key
//
// NOT validated:
//   - Content (an empty document simply yields zero chunks)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if err := ValidateDocumentKey(doc.Collection, doc.DocId); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// ValidateDocumentKey validates a (collection, docId) pair. Both parts must be
// non-empty and must not contain ':', which is reserved as the input-id
// separator.
func ValidateDocumentKey(collection, docId string) error {
	if collection == "" || docId == "" {
		return fmt.Errorf("%w: %q/%q", ErrInvalidDocumentKey, collection, docId)
	}
	if strings.Contains(collection, ":") || strings.Contains(docId, ":") {
		return fmt.Errorf("%w: %q/%q", ErrInvalidDocumentKey, collection, docId)
	}
	return nil
}

// ValidateStatus validates that a Status has a known value.
func ValidateStatus(status Status) error {
	switch status {
	case StatusQueued, StatusRunning, StatusSucceeded, StatusFailed, StatusCanceled:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidStatus, status)
	}
}
