package gemini

import (
	"context"
	"testing"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), "   ", "", ""); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestNewDefaultsModels(t *testing.T) {
	client, err := New(context.Background(), "test-key", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := client.Model(); got != defaultModel {
		t.Fatalf("expected default model %q, got %q", defaultModel, got)
	}
	if got := client.EmbeddingModel(); got != defaultEmbeddingModel {
		t.Fatalf("expected default embedding model %q, got %q", defaultEmbeddingModel, got)
	}
}

func TestNewKeepsExplicitModels(t *testing.T) {
	client, err := New(context.Background(), "test-key", "gemini-2.5-pro", "gemini-embedding-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := client.Model(); got != "gemini-2.5-pro" {
		t.Fatalf("unexpected model %q", got)
	}
	if got := client.EmbeddingModel(); got != "gemini-embedding-001" {
		t.Fatalf("unexpected embedding model %q", got)
	}
}
