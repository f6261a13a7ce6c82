package services

import (
	"context"
	"errors"
	"testing"

	"github.com/openshelf/openshelf-backend/internal/types"
)

func TestInferMetadataMapsResponse(t *testing.T) {
	ai := newFakeAI()
	ai.respond("resource_metadata", map[string]any{
		"title":                 "  Calculus Made Easy ",
		"title_exact_from_text": "Calculus Made Easy",
		"category":              "Mathematics",
		"description":           "A classic introduction.",
		"quality":               "HIGH",
	})
	ms := NewMetadataService(testLogger(t), ai)

	meta := ms.InferMetadata(context.Background(), "some extracted text")
	if meta.Title != "Calculus Made Easy" {
		t.Fatalf("title: got %q", meta.Title)
	}
	if meta.Quality != types.QualityHigh {
		t.Fatalf("quality should be coerced to high: got %q", meta.Quality)
	}
}

func TestInferMetadataFallsBackOnError(t *testing.T) {
	ai := newFakeAI()
	ai.fail("resource_metadata", errors.New("model unavailable"))
	ms := NewMetadataService(testLogger(t), ai)

	meta := ms.InferMetadata(context.Background(), "whatever")
	if meta.Title != "Untitled Resource" {
		t.Fatalf("fallback title: got %q", meta.Title)
	}
	if meta.Category != "General" {
		t.Fatalf("fallback category: got %q", meta.Category)
	}
	if meta.Description != "No description available." {
		t.Fatalf("fallback description: got %q", meta.Description)
	}
	if meta.Quality != types.QualityMedium {
		t.Fatalf("fallback quality should be medium: got %q", meta.Quality)
	}
}

func TestInferMetadataUnknownQualityDefaults(t *testing.T) {
	ai := newFakeAI()
	ai.respond("resource_metadata", map[string]any{
		"title":                 "Some Title",
		"title_exact_from_text": "",
		"category":              "General",
		"description":           "d",
		"quality":               "excellent",
	})
	ms := NewMetadataService(testLogger(t), ai)

	meta := ms.InferMetadata(context.Background(), "text")
	if meta.Quality != types.QualityMedium {
		t.Fatalf("unknown quality should default to medium: got %q", meta.Quality)
	}
}

func TestExactTitleFromImageText(t *testing.T) {
	ai := newFakeAI()
	ai.respond("exact_image_title", map[string]any{"title": " The Pragmatic Programmer "})
	ms := NewMetadataService(testLogger(t), ai)

	if got := ms.ExactTitleFromImageText(context.Background(), "THE PRAGMATIC PROGRAMMER ..."); got != "The Pragmatic Programmer" {
		t.Fatalf("got %q", got)
	}

	// Empty OCR text short-circuits without calling the model.
	before := ai.callCount("exact_image_title")
	if got := ms.ExactTitleFromImageText(context.Background(), "   "); got != "" {
		t.Fatalf("blank input should yield empty title, got %q", got)
	}
	if ai.callCount("exact_image_title") != before {
		t.Fatal("blank input must not reach the model")
	}

	ai.fail("exact_image_title", errors.New("down"))
	if got := ms.ExactTitleFromImageText(context.Background(), "text"); got != "" {
		t.Fatalf("error should yield empty title, got %q", got)
	}
}
