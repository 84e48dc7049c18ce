package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"PORT", "PARAM_PREFIX", "OPENAI_MODEL", "OPENAI_API_KEY", "GOOGLE_API_KEY",
	"OPENAI_BASE_URL", "PLACES_BASE_URL", "WIKIPEDIA_API_URL",
	"MAX_QUESTION_LENGTH", "MAX_ARTICLE_CHARS", "SESSION_TTL", "LOOKUP_CACHE_TTL",
	"MODERATION_ENABLED", "OPENAI_TEMPERATURE", "OPENAI_MAX_TOKENS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, ParamsConfig{Prefix: "/tour-guide", OpenAIModel: "gpt-4o"}, cfg.Params)
	require.Equal(t, EndpointsConfig{}, cfg.Endpoints)
	require.Equal(t, TourConfig{
		MaxQuestionLen:  1000,
		MaxArticleChars: 4000,
		Temperature:     1,
		MaxTokens:       4000,
	}, cfg.Tour)
	require.Equal(t, CacheConfig{SessionTTL: 2 * time.Hour, LookupTTL: time.Hour}, cfg.Cache)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("PARAM_PREFIX", "/prod/tour-guide/")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:1234/v1")
	t.Setenv("MAX_QUESTION_LENGTH", "300")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("MODERATION_ENABLED", "true")
	t.Setenv("OPENAI_TEMPERATURE", "0.4")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.Equal(t, "/prod/tour-guide", cfg.Params.Prefix)
	require.True(t, cfg.Params.UseSSM)
	require.Equal(t, "gpt-4o-mini", cfg.Params.OpenAIModel)
	require.Equal(t, "http://localhost:1234/v1", cfg.Endpoints.OpenAIBaseURL)
	require.Equal(t, 300, cfg.Tour.MaxQuestionLen)
	require.Equal(t, 30*time.Minute, cfg.Cache.SessionTTL)
	require.True(t, cfg.Tour.ModerationEnabled)
	require.Equal(t, 0.4, cfg.Tour.Temperature)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                "80 80",
		"MAX_QUESTION_LENGTH": "many",
		"MAX_ARTICLE_CHARS":   "-1",
		"OPENAI_MAX_TOKENS":   "0",
		"OPENAI_TEMPERATURE":  "3",
		"MODERATION_ENABLED":  "sometimes",
		"SESSION_TTL":         "forever",
		"LOOKUP_CACHE_TTL":    "-5m",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			require.ErrorContains(t, err, key)
		})
	}
}

func TestLoad_ZeroValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOOKUP_CACHE_TTL", "0s")
	t.Setenv("OPENAI_TEMPERATURE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	require.Zero(t, cfg.Cache.LookupTTL)
	require.Zero(t, cfg.Tour.Temperature)

	t.Setenv("SESSION_TTL", "0s")
	_, err = Load()
	require.ErrorContains(t, err, "SESSION_TTL")
}

func TestStaticParameters(t *testing.T) {
	p := ParamsConfig{Prefix: "/tour-guide", OpenAIModel: "gpt-4o", OpenAIAPIKey: "sk-1", GoogleAPIKey: "g-1"}
	wrap := func(s string) string { return "<" + s + ">" }

	require.Equal(t, map[string]string{
		"/tour-guide/config/openai_model": "gpt-4o",
		"/tour-guide/open-ai-token":       "<sk-1>",
		"/tour-guide/google-api-key":      "<g-1>",
	}, p.StaticParameters(wrap))
}
