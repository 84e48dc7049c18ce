package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultParamPrefix = "/tour-guide"

// Config aggregates every setting the process reads from the environment.
type Config struct {
	Server    ServerConfig
	Params    ParamsConfig
	Endpoints EndpointsConfig
	Tour      TourConfig
	Cache     CacheConfig
}

// ServerConfig describes the local HTTP listener.
type ServerConfig struct {
	Addr string
}

// ParamsConfig selects where secrets and the model name come from. When
// UseSSM is false the static values below stand in for SSM parameters.
type ParamsConfig struct {
	Prefix       string
	UseSSM       bool
	OpenAIModel  string
	OpenAIAPIKey string
	GoogleAPIKey string
}

// EndpointsConfig overrides provider base URLs. Empty means the client default.
type EndpointsConfig struct {
	OpenAIBaseURL   string
	PlacesBaseURL   string
	WikipediaAPIURL string
}

type TourConfig struct {
	MaxQuestionLen    int
	MaxArticleChars   int
	Temperature       float64
	MaxTokens         int
	ModerationEnabled bool
}

type CacheConfig struct {
	SessionTTL time.Duration
	LookupTTL  time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}
	tour, err := loadTourConfig()
	if err != nil {
		return nil, err
	}
	cache, err := loadCacheConfig()
	if err != nil {
		return nil, err
	}

	prefix := strings.TrimRight(strings.TrimSpace(os.Getenv("PARAM_PREFIX")), "/")
	params := ParamsConfig{
		Prefix:       prefix,
		UseSSM:       prefix != "",
		OpenAIModel:  getEnvOrDefault("OPENAI_MODEL", "gpt-4o"),
		OpenAIAPIKey: strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		GoogleAPIKey: strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),
	}
	if params.Prefix == "" {
		params.Prefix = defaultParamPrefix
	}

	return &Config{
		Server: server,
		Params: params,
		Endpoints: EndpointsConfig{
			OpenAIBaseURL:   strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			PlacesBaseURL:   strings.TrimSpace(os.Getenv("PLACES_BASE_URL")),
			WikipediaAPIURL: strings.TrimSpace(os.Getenv("WIKIPEDIA_API_URL")),
		},
		Tour:  tour,
		Cache: cache,
	}, nil
}

// StaticParameters lays out the local secrets under the same names the SSM
// store uses, so clients resolve them identically in both modes.
func (p ParamsConfig) StaticParameters(wrapToken func(string) string) map[string]string {
	return map[string]string{
		p.Prefix + "/config/openai_model": p.OpenAIModel,
		p.Prefix + "/open-ai-token":       wrapToken(p.OpenAIAPIKey),
		p.Prefix + "/google-api-key":      wrapToken(p.GoogleAPIKey),
	}
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, ":") {
		return ServerConfig{Addr: port}, nil
	}
	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	return ServerConfig{Addr: ":" + port}, nil
}

func loadTourConfig() (TourConfig, error) {
	maxQuestion, err := parseIntEnv("MAX_QUESTION_LENGTH", 1000)
	if err != nil {
		return TourConfig{}, err
	}
	maxArticle, err := parseIntEnv("MAX_ARTICLE_CHARS", 4000)
	if err != nil {
		return TourConfig{}, err
	}
	maxTokens, err := parseIntEnv("OPENAI_MAX_TOKENS", 4000)
	if err != nil {
		return TourConfig{}, err
	}
	temperature, err := parseFloatEnv("OPENAI_TEMPERATURE", 1)
	if err != nil {
		return TourConfig{}, err
	}
	if temperature < 0 || temperature > 2 {
		return TourConfig{}, fmt.Errorf("invalid OPENAI_TEMPERATURE value %v: must be within [0, 2]", temperature)
	}
	moderation, err := parseBoolEnv("MODERATION_ENABLED", false)
	if err != nil {
		return TourConfig{}, err
	}
	return TourConfig{
		MaxQuestionLen:    maxQuestion,
		MaxArticleChars:   maxArticle,
		Temperature:       temperature,
		MaxTokens:         maxTokens,
		ModerationEnabled: moderation,
	}, nil
}

func loadCacheConfig() (CacheConfig, error) {
	sessionTTL, err := parseDurationEnv("SESSION_TTL", 2*time.Hour, false)
	if err != nil {
		return CacheConfig{}, err
	}
	// A lookup TTL of zero turns the places and encyclopedia caches off.
	lookupTTL, err := parseDurationEnv("LOOKUP_CACHE_TTL", time.Hour, true)
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{SessionTTL: sessionTTL, LookupTTL: lookupTTL}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration, allowZero bool) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 || (val == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}
