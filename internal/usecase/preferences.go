package usecase

import (
	"context"
	"log/slog"

	"tour-guide-agent/internal/domain"
)

// InferPreferences derives a visitor profile from the full history. Only
// explicit statements by the visitor are extracted.
func (s *TourService) InferPreferences(ctx context.Context, history []domain.ChatMessage) (out domain.PreferenceProfile, err error) {
	ctx, span := tracer.Start(ctx, "TourService.InferPreferences")
	defer func() { endSpan(span, err) }()

	messages, err := renderPreferencePrompt(ctx, history)
	if err != nil {
		return domain.PreferenceProfile{}, newError(ErrorInternal, "prompt_render_error", err)
	}
	raw, err := s.complete(ctx, "preferences", messages, preferenceSchema)
	if err != nil {
		return domain.PreferenceProfile{}, err
	}
	out, err = parsePreferences(raw)
	if err != nil {
		return domain.PreferenceProfile{}, newError(ErrorSchemaViolation, "preferences_invalid", err)
	}
	return out, nil
}

// refreshPreferences replaces the stored profile after a committed turn. Any
// failure keeps the previous profile.
func (s *TourService) refreshPreferences(ctx context.Context, sessionID string, logger *slog.Logger) {
	session, err := s.state.Load(ctx, sessionID)
	if err != nil {
		logger.Warn("preference inference skipped", "err", err)
		return
	}
	profile, err := s.InferPreferences(ctx, session.History)
	if err != nil {
		logger.Warn("preference inference failed", "err", err)
		return
	}
	if err := s.state.SavePreferences(ctx, sessionID, profile); err != nil {
		logger.Warn("preference write failed", "err", err)
	}
}
