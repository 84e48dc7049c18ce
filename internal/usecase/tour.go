package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"tour-guide-agent/internal/domain"
)

const (
	defaultMaxQuestion     = 1000
	defaultMaxArticleChars = 4000
	defaultTemperature     = 1.0
	defaultTopP            = 1.0
	defaultMaxTokens       = 4000
)

var tracer = otel.Tracer("tour-guide-agent/usecase")

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type LLMClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

type PlacesClient interface {
	SearchNearby(ctx context.Context, center domain.Coordinates) ([]domain.Location, error)
	SearchText(ctx context.Context, query string) (*domain.PlaceDetails, error)
}

type EncyclopediaClient interface {
	Lookup(ctx context.Context, phrase string) (string, error)
}

type SessionStore interface {
	Lock(sessionID string) (unlock func())
	Load(ctx context.Context, sessionID string) (domain.Session, error)
	Reset(ctx context.Context, sessionID string) error
	SaveCompletedTurn(ctx context.Context, sessionID, language string, user, assistant domain.ChatMessage) error
	SavePreferences(ctx context.Context, sessionID string, profile domain.PreferenceProfile) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Config tunes a TourService. Zero values fall back to defaults.
type Config struct {
	ParamPrefix       string
	MaxQuestionLen    int
	MaxArticleChars   int
	Temperature       *float64 // nil uses 1.0; zero is honored
	MaxTokens         int
	ModerationEnabled bool
}

type TourService struct {
	params ParamGetter
	llm    LLMClient
	places PlacesClient
	wiki   EncyclopediaClient
	state  SessionStore
	cfg    Config
	logger *slog.Logger

	cacheMu     sync.RWMutex
	cacheLoaded bool
	openaiModel string
}

type AnswerInput struct {
	SessionID   string
	Query       string
	City        domain.City
	IsFirstTurn bool
}

type AnswerOutput struct {
	SessionID string
	Language  string
	Reply     domain.StructuredReply
}

func NewTourService(p ParamGetter, llm LLMClient, places PlacesClient, wiki EncyclopediaClient, s SessionStore, cfg Config) (*TourService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if places == nil {
		return nil, errors.New("usecase: places client must not be nil")
	}
	if wiki == nil {
		return nil, errors.New("usecase: encyclopedia client must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	if cfg.ParamPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	if cfg.MaxQuestionLen <= 0 {
		cfg.MaxQuestionLen = defaultMaxQuestion
	}
	if cfg.MaxArticleChars <= 0 {
		cfg.MaxArticleChars = defaultMaxArticleChars
	}
	temperature := defaultTemperature
	if cfg.Temperature != nil {
		if *cfg.Temperature < 0 {
			return nil, errors.New("usecase: temperature must not be negative")
		}
		temperature = *cfg.Temperature
	}
	cfg.Temperature = &temperature
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &TourService{
		params: p,
		llm:    llm,
		places: places,
		wiki:   wiki,
		state:  s,
		cfg:    cfg,
		logger: slog.Default(),
	}, nil
}

// Answer runs one dialogue turn. Only the completed user/assistant pair is
// persisted; a failed turn leaves the session untouched.
func (s *TourService) Answer(ctx context.Context, in AnswerInput) (out AnswerOutput, err error) {
	ctx, span := tracer.Start(ctx, "TourService.Answer")
	defer func() { endSpan(span, err) }()

	query := strings.TrimSpace(in.Query)
	if query == "" {
		return AnswerOutput{}, newError(ErrorInvalidInput, "empty_query", nil)
	}
	if utf8.RuneCountInString(query) > s.cfg.MaxQuestionLen {
		return AnswerOutput{}, newError(ErrorInvalidInput, "query_too_long", nil)
	}
	if in.City.Latitude < -90 || in.City.Latitude > 90 || in.City.Longitude < -180 || in.City.Longitude > 180 {
		return AnswerOutput{}, newError(ErrorInvalidInput, "invalid_coordinates", nil)
	}
	if err := s.ensureConfig(ctx); err != nil {
		return AnswerOutput{}, newError(ErrorInternal, "param_load_error", err)
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newUUID()
	}
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.Bool("session.first_turn", in.IsFirstTurn),
	)
	logger := s.logger.With("session_id", sessionID)

	unlock := s.state.Lock(sessionID)
	defer unlock()

	if in.IsFirstTurn {
		if err := s.state.Reset(ctx, sessionID); err != nil {
			return AnswerOutput{}, newError(ErrorInternal, "session_reset_error", err)
		}
	}
	session, err := s.state.Load(ctx, sessionID)
	if err != nil {
		return AnswerOutput{}, newError(ErrorInternal, "session_load_error", err)
	}

	if s.cfg.ModerationEnabled {
		flagged, err := s.llm.Moderate(ctx, query)
		if err != nil {
			return AnswerOutput{}, upstreamError("moderation", err)
		}
		if flagged {
			return AnswerOutput{}, newError(ErrorInvalidQuestion, "moderation_flagged", nil)
		}
	}

	language, query, err := s.resolveLanguage(ctx, session, query)
	if err != nil {
		return AnswerOutput{}, err
	}
	span.SetAttributes(attribute.String("session.language", language))

	var (
		landmarks []domain.Location
		intent    domain.IntentClassification
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		started := time.Now()
		landmarks = s.FetchNearby(gctx, in.City.Coordinates())
		logger.Info("landmarks fetched", "count", len(landmarks), "landmarks_ms", time.Since(started).Milliseconds())
		return nil
	})
	g.Go(func() error {
		var err error
		intent, err = s.ClassifyInformationSeeking(gctx, query, session.History)
		return err
	})
	if err := g.Wait(); err != nil {
		return AnswerOutput{}, err
	}
	span.SetAttributes(
		attribute.Int("landmarks.count", len(landmarks)),
		attribute.Bool("intent.information_seeking", intent.InformationSeeking),
		attribute.String("intent.location", intent.Location),
	)

	enrichment := s.Enrich(ctx, intent, query)
	span.SetAttributes(attribute.Bool("enrichment.empty", enrichment.Empty()))
	if enrichment.Empty() {
		logger.Info("no enrichment for turn", "information_seeking", intent.InformationSeeking)
	}

	turn, err := encodeTurn(in.City, landmarks, query)
	if err != nil {
		return AnswerOutput{}, newError(ErrorInternal, "turn_encode_error", err)
	}
	messages, err := renderTourPrompt(ctx, tourPromptInput{
		Language:    language,
		Enrichment:  enrichment,
		Preferences: session.Preferences,
		History:     session.History,
		Turn:        turn,
	})
	if err != nil {
		return AnswerOutput{}, newError(ErrorInternal, "prompt_render_error", err)
	}

	temperature, topP := *s.cfg.Temperature, defaultTopP
	started := time.Now()
	raw, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Model:       s.model(),
		Messages:    messages,
		Schema:      tourReplySchema,
		Temperature: &temperature,
		TopP:        &topP,
		MaxTokens:   s.cfg.MaxTokens,
	})
	logger.Info("tour completion finished", "completion_ms", time.Since(started).Milliseconds(), "prompt_version", promptVersion)
	if err != nil {
		return AnswerOutput{}, upstreamError("openai", err)
	}
	reply, err := parseTourReply(raw)
	if err != nil {
		return AnswerOutput{}, newError(ErrorSchemaViolation, "tour_reply_invalid", err)
	}

	if err := s.state.SaveCompletedTurn(ctx, sessionID, language,
		domain.ChatMessage{Role: domain.RoleUser, Content: turn},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: reply.Speech},
	); err != nil {
		return AnswerOutput{}, newError(ErrorInternal, "session_write_error", err)
	}

	s.refreshPreferences(ctx, sessionID, logger)

	return AnswerOutput{
		SessionID: sessionID,
		Language:  language,
		Reply:     reply,
	}, nil
}

// resolveLanguage pins a language on the first turn and translates every
// later query into it. An explicit switch request re-pins the language.
func (s *TourService) resolveLanguage(ctx context.Context, session domain.Session, query string) (string, string, error) {
	if session.Language == "" {
		language, err := s.DetectLanguage(ctx, query)
		if err != nil {
			return "", "", err
		}
		return language, query, nil
	}
	res, err := s.Translate(ctx, query, session.Language)
	if err != nil {
		return "", "", err
	}
	language := session.Language
	if res.LanguageSwitch != "" && res.LanguageSwitch != language {
		s.logger.Info("session language switched", "session_id", session.ID, "from", language, "to", res.LanguageSwitch)
		language = res.LanguageSwitch
	}
	return language, res.Text, nil
}

// ResetSession destroys all state held for sessionID.
func (s *TourService) ResetSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return newError(ErrorInvalidInput, "empty_session_id", nil)
	}
	unlock := s.state.Lock(sessionID)
	defer unlock()
	if err := s.state.Reset(ctx, sessionID); err != nil {
		return newError(ErrorInternal, "session_reset_error", err)
	}
	return nil
}

// Preferences returns the last inferred profile, or nil before the first inference.
func (s *TourService) Preferences(ctx context.Context, sessionID string) (*domain.PreferenceProfile, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, newError(ErrorInvalidInput, "empty_session_id", nil)
	}
	session, err := s.state.Load(ctx, sessionID)
	if err != nil {
		return nil, newError(ErrorInternal, "session_load_error", err)
	}
	return session.Preferences, nil
}

func (s *TourService) ensureConfig(ctx context.Context) error {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	model, err := s.params.GetParameter(ctx, s.cfg.ParamPrefix+"/config/openai_model")
	if err != nil {
		return fmt.Errorf("usecase: load openai model: %w", err)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return errors.New("usecase: openai model parameter is empty")
	}
	s.openaiModel = model
	s.cacheLoaded = true
	return nil
}

func (s *TourService) model() string {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.openaiModel
}

// complete issues one structured call for a helper step. reason prefixes the
// error reasons reported on failure.
func (s *TourService) complete(ctx context.Context, reason string, messages []domain.ChatMessage, schema *domain.OutputSchema) (string, error) {
	if err := s.ensureConfig(ctx); err != nil {
		return "", newError(ErrorInternal, "param_load_error", err)
	}
	raw, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Model:    s.model(),
		Messages: messages,
		Schema:   schema,
	})
	if err != nil {
		return "", upstreamError(reason, err)
	}
	return raw, nil
}

func upstreamError(reason string, err error) *Error {
	if status, ok := upstreamStatusCode(err); ok && status == 429 {
		return newError(ErrorRateLimited, reason+"_rate_limited", err)
	}
	return newError(ErrorUpstream, reason+"_error", err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

var newUUID = func() string {
	return uuid.NewString()
}
