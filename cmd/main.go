package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"tour-guide-agent/handler"
	"tour-guide-agent/internal/config"
	"tour-guide-agent/internal/integrations/openai"
	"tour-guide-agent/internal/integrations/paramstore"
	"tour-guide-agent/internal/integrations/places"
	"tour-guide-agent/internal/integrations/wikipedia"
	"tour-guide-agent/internal/repository"
	"tour-guide-agent/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "err", err)
	}

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// ---- Parameters ----
	params, err := newParamGetter(ctx, cfg.Params)
	if err != nil {
		slog.Error("failed to create parameter store", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	var openaiOpts []openai.Option
	if cfg.Endpoints.OpenAIBaseURL != "" {
		openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.Endpoints.OpenAIBaseURL))
	}
	openaiClient, err := openai.NewClient(params, cfg.Params.Prefix, openaiOpts...)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	placesOpts := []places.Option{places.WithCacheTTL(cfg.Cache.LookupTTL)}
	if cfg.Endpoints.PlacesBaseURL != "" {
		placesOpts = append(placesOpts, places.WithBaseURL(cfg.Endpoints.PlacesBaseURL))
	}
	placesClient, err := places.NewClient(params, cfg.Params.Prefix, placesOpts...)
	if err != nil {
		slog.Error("failed to create places client", "err", err)
		os.Exit(1)
	}

	wikiClient := wikipedia.NewClient(
		wikipedia.WithAPIURL(cfg.Endpoints.WikipediaAPIURL),
		wikipedia.WithCacheTTL(cfg.Cache.LookupTTL),
	)

	sessions := repository.NewMemoryStore(cfg.Cache.SessionTTL)

	// ---- Handler ----
	tourService, err := usecase.NewTourService(params, openaiClient, placesClient, wikiClient, sessions, usecase.Config{
		ParamPrefix:       cfg.Params.Prefix,
		MaxQuestionLen:    cfg.Tour.MaxQuestionLen,
		MaxArticleChars:   cfg.Tour.MaxArticleChars,
		Temperature:       &cfg.Tour.Temperature,
		MaxTokens:         cfg.Tour.MaxTokens,
		ModerationEnabled: cfg.Tour.ModerationEnabled,
	})
	if err != nil {
		slog.Error("failed to create tour service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(tourService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(h.Handle)
		return
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	slog.Info("tour guide listening", "addr", cfg.Server.Addr, "ssm", cfg.Params.UseSSM)
	if err := runServer(ctx, srv); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

// newParamGetter reads parameters from SSM when a prefix is configured and
// from the environment otherwise.
func newParamGetter(ctx context.Context, cfg config.ParamsConfig) (usecase.ParamGetter, error) {
	if !cfg.UseSSM {
		slog.Info("PARAM_PREFIX not set, serving parameters from the environment", "prefix", cfg.Prefix)
		return paramstore.NewStatic(cfg.StaticParameters(paramstore.TokenValue)), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	client, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
