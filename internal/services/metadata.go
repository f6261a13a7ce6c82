package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/normalization"
	"github.com/openshelf/openshelf-backend/internal/types"
	"github.com/openshelf/openshelf-backend/internal/utils"
)

// maxInferenceChars bounds how much extracted text is sent to the model.
const maxInferenceChars = 4000

// ResourceMetadata is the structured result of metadata inference.
// TitleExactFromText is a verbatim quote from the source material when the
// model found one; Title is the model's own suggestion.
type ResourceMetadata struct {
	Title              string
	TitleExactFromText string
	Category           string
	Description        string
	Quality            string
}

// MetadataService wraps the two metadata-shaped inference calls. InferMetadata
// never fails: any model or transport problem collapses into the fixed
// fallback record, because the gates downstream are the strict ones.
type MetadataService interface {
	InferMetadata(ctx context.Context, text string) *ResourceMetadata
	ExactTitleFromImageText(ctx context.Context, ocrText string) string
}

type metadataService struct {
	log            *logger.Logger
	ai             OpenAIClient
	defaultQuality string
}

func NewMetadataService(log *logger.Logger, ai OpenAIClient) MetadataService {
	serviceLog := log.With("service", "MetadataService")
	// Missing or unrecognized quality defaults to medium (fail-open). Operators
	// who want fail-closed can set RESOURCE_DEFAULT_QUALITY=low.
	defaultQuality := coerceQuality(utils.GetEnv("RESOURCE_DEFAULT_QUALITY", types.QualityMedium, log), types.QualityMedium)
	return &metadataService{
		log:            serviceLog,
		ai:             ai,
		defaultQuality: defaultQuality,
	}
}

func (ms *metadataService) fallbackMetadata() *ResourceMetadata {
	return &ResourceMetadata{
		Title:       "Untitled Resource",
		Category:    "General",
		Description: "No description available.",
		Quality:     ms.defaultQuality,
	}
}

func (ms *metadataService) InferMetadata(ctx context.Context, text string) *ResourceMetadata {
	prefix := normalization.TruncateRunes(text, maxInferenceChars)

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":                 map[string]any{"type": "string"},
			"title_exact_from_text": map[string]any{"type": "string"},
			"category":              map[string]any{"type": "string"},
			"description":           map[string]any{"type": "string"},
			"quality":               map[string]any{"type": "string"},
		},
		"required":             []string{"title", "title_exact_from_text", "category", "description", "quality"},
		"additionalProperties": false,
	}

	obj, err := ms.ai.GenerateJSON(ctx,
		"You describe user-uploaded learning resources. Derive a title, a topical category, a one-paragraph description, and a quality rating (high, medium or low) from the extracted text. If the text contains the resource's own title verbatim, repeat it exactly in title_exact_from_text; otherwise leave that field empty.",
		fmt.Sprintf("Extracted text (truncated):\n%s\n\nReturn resource metadata.", prefix),
		"resource_metadata",
		schema,
	)
	if err != nil {
		ms.log.Warn("Metadata inference failed, using fallback record", "error", inferenceFailure(err))
		return ms.fallbackMetadata()
	}

	meta := &ResourceMetadata{
		Title:              strings.TrimSpace(asString(obj["title"])),
		TitleExactFromText: strings.TrimSpace(asString(obj["title_exact_from_text"])),
		Category:           strings.TrimSpace(asString(obj["category"])),
		Description:        strings.TrimSpace(asString(obj["description"])),
		Quality:            coerceQuality(asString(obj["quality"]), ms.defaultQuality),
	}
	if meta.Title == "" {
		meta.Title = "Untitled Resource"
	}
	if meta.Category == "" {
		meta.Category = "General"
	}
	if meta.Description == "" {
		meta.Description = "No description available."
	}
	return meta
}

// ExactTitleFromImageText is the narrow vision-title call: it is only invoked
// for image uploads when no verbatim or document-native title exists, and it
// must return "" rather than guess.
func (ms *metadataService) ExactTitleFromImageText(ctx context.Context, ocrText string) string {
	prefix := normalization.TruncateRunes(ocrText, maxInferenceChars)
	if strings.TrimSpace(prefix) == "" {
		return ""
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
		},
		"required":             []string{"title"},
		"additionalProperties": false,
	}

	obj, err := ms.ai.GenerateJSON(ctx,
		"The following text was OCR'd from a photo of a resource (often a book cover or title page). If the resource's exact printed title is clearly present, return it verbatim. If you are not certain, return an empty string. Never invent a title.",
		prefix,
		"exact_image_title",
		schema,
	)
	if err != nil {
		ms.log.Warn("Exact-title inference failed", "error", inferenceFailure(err))
		return ""
	}
	return strings.TrimSpace(asString(obj["title"]))
}

// coerceQuality maps whatever the model produced into the known tiers.
func coerceQuality(v string, def string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case types.QualityHigh:
		return types.QualityHigh
	case types.QualityMedium:
		return types.QualityMedium
	case types.QualityLow:
		return types.QualityLow
	default:
		return def
	}
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
