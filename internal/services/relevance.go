package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/normalization"
)

type RelevanceDecision int

const (
	RelevanceAccept RelevanceDecision = iota
	RelevanceReject
	RelevanceAmbiguous
)

// RelevanceResult is a tagged outcome: callers must handle all three cases.
// Ambiguous means the classifier could not produce a usable boolean (missing
// field, malformed response, transport failure) and is never an accept.
type RelevanceResult struct {
	Decision RelevanceDecision
	Reason   string
}

type RelevanceService interface {
	Classify(ctx context.Context, title, category, description, text string) RelevanceResult
}

type relevanceService struct {
	log *logger.Logger
	ai  OpenAIClient
}

func NewRelevanceService(log *logger.Logger, ai OpenAIClient) RelevanceService {
	serviceLog := log.With("service", "RelevanceService")
	return &relevanceService{log: serviceLog, ai: ai}
}

func (rs *relevanceService) Classify(ctx context.Context, title, category, description, text string) RelevanceResult {
	prefix := normalization.TruncateRunes(text, maxInferenceChars)

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"relevant": map[string]any{"type": "boolean"},
			"reason":   map[string]any{"type": "string"},
		},
		"required":             []string{"relevant", "reason"},
		"additionalProperties": false,
	}

	user := fmt.Sprintf(
		"Title: %s\nCategory: %s\nDescription: %s\n\nExtracted text (truncated):\n%s",
		title, category, description, prefix,
	)

	obj, err := rs.ai.GenerateJSON(ctx,
		"You decide whether a user-submitted resource belongs on a learning-resource sharing platform. Accept educational material: books, textbooks, study notes, reference works, articles. Reject unrelated or inappropriate content. Return relevant=true/false and a short reason.",
		user,
		"resource_relevance",
		schema,
	)
	if err != nil {
		rs.log.Warn("Relevance classification failed", "error", inferenceFailure(err))
		return RelevanceResult{Decision: RelevanceAmbiguous, Reason: "relevance check could not be completed"}
	}

	relevant, ok := obj["relevant"].(bool)
	if !ok {
		rs.log.Warn("Relevance response missing boolean decision", "value", obj["relevant"])
		return RelevanceResult{Decision: RelevanceAmbiguous, Reason: "relevance check returned no decision"}
	}

	reason := strings.TrimSpace(asString(obj["reason"]))
	if relevant {
		return RelevanceResult{Decision: RelevanceAccept, Reason: reason}
	}
	if reason == "" {
		reason = "resource is not relevant to the platform"
	}
	return RelevanceResult{Decision: RelevanceReject, Reason: reason}
}
