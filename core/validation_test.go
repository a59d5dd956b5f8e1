package core

import (
	"errors"
	"testing"
)

func TestValidateRun(t *testing.T) {
	tests := []struct {
		name    string
		run     *Run
		wantErr error
	}{
		{
			name: "valid run",
			run: &Run{
				Pool:             "default",
				EmbeddingVersion: "embeddinggemma-v1",
				Status:           StatusQueued,
			},
			wantErr: nil,
		},
		{
			name: "valid run with ID 0",
			run: &Run{
				Id:               0,
				Pool:             "default",
				EmbeddingVersion: "embeddinggemma-v1",
				Status:           StatusRunning,
			},
			wantErr: nil,
		},
		{
			name:    "nil run",
			run:     nil,
			wantErr: ErrInvalidRun,
		},
		{
			name: "empty pool",
			run: &Run{
				EmbeddingVersion: "embeddinggemma-v1",
				Status:           StatusQueued,
			},
			wantErr: ErrEmptyPoolName,
		},
		{
			name: "empty embedding version",
			run: &Run{
				Pool:   "default",
				Status: StatusQueued,
			},
			wantErr: ErrEmptyEmbeddingVersion,
		},
		{
			name: "unknown status",
			run: &Run{
				Pool:             "default",
				EmbeddingVersion: "embeddinggemma-v1",
				Status:           Status(42),
			},
			wantErr: ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRun(tt.run)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRun() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRun() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBatch(t *testing.T) {
	tests := []struct {
		name    string
		batch   *Batch
		wantErr error
	}{
		{
			name: "valid batch",
			batch: &Batch{
				RunId:      1,
				BatchIndex: 0,
				Status:     StatusQueued,
			},
			wantErr: nil,
		},
		{
			name:    "nil batch",
			batch:   nil,
			wantErr: ErrInvalidBatch,
		},
		{
			name: "missing run id",
			batch: &Batch{
				BatchIndex: 0,
				Status:     StatusQueued,
			},
			wantErr: ErrInvalidBatch,
		},
		{
			name: "negative batch index",
			batch: &Batch{
				RunId:      1,
				BatchIndex: -1,
				Status:     StatusQueued,
			},
			wantErr: ErrInvalidBatch,
		},
		{
			name: "unknown status",
			batch: &Batch{
				RunId:      1,
				BatchIndex: 0,
				Status:     Status(42),
			},
			wantErr: ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatch(tt.batch)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateBatch() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateBatch() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDocumentKey(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		docId      string
		wantErr    bool
	}{
		{"valid key", "posts", "a", false},
		{"empty collection", "", "a", true},
		{"empty doc id", "posts", "", true},
		{"colon in collection", "po:sts", "a", true},
		{"colon in doc id", "posts", "a:b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocumentKey(tt.collection, tt.docId)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDocumentKey(%q, %q) error = %v, wantErr %v",
					tt.collection, tt.docId, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDocumentKey) {
				t.Errorf("ValidateDocumentKey() error = %v, want ErrInvalidDocumentKey", err)
			}
		})
	}
}

func TestValidateDocument(t *testing.T) {
	if err := ValidateDocument(nil); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("ValidateDocument(nil) error = %v, want ErrInvalidDocument", err)
	}
	if err := ValidateDocument(&Document{Collection: "posts", DocId: "a"}); err != nil {
		t.Errorf("ValidateDocument() error = %v, want nil", err)
	}
	if err := ValidateDocument(&Document{Collection: "posts"}); !errors.Is(err, ErrInvalidDocumentKey) {
		t.Errorf("ValidateDocument() error = %v, want ErrInvalidDocumentKey", err)
	}
}
