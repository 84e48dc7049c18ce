package usecase

import (
	"context"
	"strings"
)

// Translation is a query rendered in the session language. LanguageSwitch is
// set only when the visitor explicitly asked for another language.
type Translation struct {
	Text           string
	LanguageSwitch string
}

// DetectLanguage names the language text is written in, lowercased ("english").
func (s *TourService) DetectLanguage(ctx context.Context, text string) (language string, err error) {
	ctx, span := tracer.Start(ctx, "TourService.DetectLanguage")
	defer func() { endSpan(span, err) }()

	messages, err := renderLanguagePrompt(ctx, strings.TrimSpace(text))
	if err != nil {
		return "", newError(ErrorInternal, "prompt_render_error", err)
	}
	raw, err := s.complete(ctx, "language_detection", messages, languageSchema)
	if err != nil {
		return "", err
	}
	language, err = parseLanguage(raw)
	if err != nil {
		return "", newError(ErrorSchemaViolation, "language_detection_invalid", err)
	}
	return language, nil
}

// Translate renders text in language, passing it through unchanged when it
// already is.
func (s *TourService) Translate(ctx context.Context, text, language string) (out Translation, err error) {
	ctx, span := tracer.Start(ctx, "TourService.Translate")
	defer func() { endSpan(span, err) }()

	language = normalizeLanguage(language)
	if language == "" {
		return Translation{}, newError(ErrorInvalidInput, "empty_target_language", nil)
	}
	messages, err := renderTranslationPrompt(ctx, strings.TrimSpace(text), language)
	if err != nil {
		return Translation{}, newError(ErrorInternal, "prompt_render_error", err)
	}
	raw, err := s.complete(ctx, "translation", messages, translationSchema)
	if err != nil {
		return Translation{}, err
	}
	res, err := parseTranslation(raw)
	if err != nil {
		return Translation{}, newError(ErrorSchemaViolation, "translation_invalid", err)
	}
	return Translation{Text: res.Translation, LanguageSwitch: res.LanguageSwitch}, nil
}
