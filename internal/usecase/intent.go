package usecase

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"tour-guide-agent/internal/domain"
)

// ClassifyInformationSeeking decides whether query asks about one named place,
// using history only to resolve references.
func (s *TourService) ClassifyInformationSeeking(ctx context.Context, query string, history []domain.ChatMessage) (out domain.IntentClassification, err error) {
	ctx, span := tracer.Start(ctx, "TourService.ClassifyInformationSeeking")
	defer func() { endSpan(span, err) }()

	messages, err := renderIntentPrompt(ctx, strings.TrimSpace(query), history)
	if err != nil {
		return domain.IntentClassification{}, newError(ErrorInternal, "prompt_render_error", err)
	}
	raw, err := s.complete(ctx, "intent", messages, intentSchema)
	if err != nil {
		return domain.IntentClassification{}, err
	}
	out, err = parseIntent(raw)
	if err != nil {
		return domain.IntentClassification{}, newError(ErrorSchemaViolation, "intent_invalid", err)
	}
	// A location is only meaningful for information seeking turns.
	if !out.InformationSeeking {
		out.Location = ""
	}
	span.SetAttributes(
		attribute.Bool("intent.information_seeking", out.InformationSeeking),
		attribute.String("intent.location", out.Location),
	)
	return out, nil
}
