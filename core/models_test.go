package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "same content produces same ID",
			content: "test content",
		},
		{
			name:    "empty string",
			content: "",
		},
		{
			name:    "long content",
			content: "This is a much longer piece of content that should still hash consistently",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestEmbeddingId_PoolScoped(t *testing.T) {
	inputId := InputId("posts", "a", 0)

	if EmbeddingId("default", inputId) == EmbeddingId("archive", inputId) {
		t.Errorf("EmbeddingId() produced same ID for different pools")
	}
	if EmbeddingId("default", inputId) != EmbeddingId("default", inputId) {
		t.Errorf("EmbeddingId() is not deterministic")
	}
}

func TestStatus_Terminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusQueued, false},
		{StatusRunning, false},
		{StatusSucceeded, true},
		{StatusFailed, true},
		{StatusCanceled, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"queued to running", StatusQueued, StatusRunning, true},
		{"running to succeeded", StatusRunning, StatusSucceeded, true},
		{"queued to failed", StatusQueued, StatusFailed, true},
		{"succeeded to failed", StatusSucceeded, StatusFailed, false},
		{"failed to running", StatusFailed, StatusRunning, false},
		{"canceled to queued", StatusCanceled, StatusQueued, false},
		{"terminal to itself", StatusSucceeded, StatusSucceeded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestInputId_RoundTrip(t *testing.T) {
	inputId := InputId("posts", "doc-1", 7)
	if inputId != "posts:doc-1:7" {
		t.Errorf("InputId() = %q, want %q", inputId, "posts:doc-1:7")
	}

	ref, err := ParseInputId(inputId)
	if err != nil {
		t.Fatalf("ParseInputId() error = %v", err)
	}
	if ref.Collection != "posts" || ref.DocId != "doc-1" || ref.ChunkIndex != 7 {
		t.Errorf("ParseInputId() = %+v", ref)
	}
}

func TestParseInputId_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		inputId string
	}{
		{"empty", ""},
		{"missing parts", "posts:a"},
		{"too many parts", "posts:a:b:0"},
		{"empty collection", ":a:0"},
		{"empty doc id", "posts::0"},
		{"non-numeric index", "posts:a:x"},
		{"negative index", "posts:a:-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseInputId(tt.inputId); err == nil {
				t.Errorf("ParseInputId(%q) expected error, got nil", tt.inputId)
			}
		})
	}
}

func TestChunkRef_InputId(t *testing.T) {
	ref := ChunkRef{Collection: "posts", DocId: "a", ChunkIndex: 2}
	if ref.InputId() != "posts:a:2" {
		t.Errorf("InputId() = %q, want %q", ref.InputId(), "posts:a:2")
	}
}
