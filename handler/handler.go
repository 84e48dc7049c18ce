package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"tour-guide-agent/internal/domain"
	"tour-guide-agent/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 64 << 10
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, DELETE, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type, " + correlationHeader,
}

type TourUseCase interface {
	Answer(ctx context.Context, in usecase.AnswerInput) (usecase.AnswerOutput, error)
	ResetSession(ctx context.Context, sessionID string) error
	Preferences(ctx context.Context, sessionID string) (*domain.PreferenceProfile, error)
}

type Handler struct {
	uc     TourUseCase
	logger *slog.Logger
}

type answerRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
	Metadata  struct {
		City           *domain.City `json:"city"`
		IsFirstRequest bool         `json:"is_first_request"`
	} `json:"metadata"`
}

type answerResponse struct {
	SessionID string            `json:"sessionId"`
	Language  string            `json:"language"`
	Locations []domain.Location `json:"locations"`
	Speech    string            `json:"speech"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// result is a transport-neutral reply shared by the Lambda and HTTP adapters.
type result struct {
	status int
	body   any
}

func NewHandler(uc TourUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc, logger: slog.Default()}, nil
}

// Handle serves API Gateway proxy events.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := correlationIDFrom(event.Headers)
	logger := h.logger.With("correlation_id", correlationID, "method", event.HTTPMethod, "path", event.Path)

	var res result
	segments := pathSegments(event.Path)
	switch {
	case event.HTTPMethod == http.MethodOptions:
		res = result{status: http.StatusNoContent}
	case event.HTTPMethod == http.MethodPost && len(segments) == 1 && segments[0] == "answer":
		res = h.answer(ctx, logger, []byte(event.Body), event.QueryStringParameters["query"])
	case event.HTTPMethod == http.MethodDelete && len(segments) == 2 && segments[0] == "sessions":
		res = h.resetSession(ctx, logger, sessionIDFrom(event, segments[1]))
	case event.HTTPMethod == http.MethodGet && len(segments) == 3 && segments[0] == "sessions" && segments[2] == "preferences":
		res = h.preferences(ctx, logger, sessionIDFrom(event, segments[1]))
	default:
		res = errorResult(http.StatusNotFound, "NOT_FOUND", "route not found")
	}

	headers := map[string]string{correlationHeader: correlationID}
	for k, v := range corsHeaders {
		headers[k] = v
	}
	body := ""
	if res.body != nil {
		b, err := json.Marshal(res.body)
		if err != nil {
			logger.Error("failed to encode response", "err", err)
			res = errorResult(http.StatusInternalServerError, string(usecase.ErrorInternal), "response encoding failed")
			b, _ = json.Marshal(res.body)
		}
		headers["Content-Type"] = "application/json"
		body = string(b)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: res.status,
		Headers:    headers,
		Body:       body,
	}, nil
}

func (h *Handler) answer(ctx context.Context, logger *slog.Logger, body []byte, queryParam string) result {
	if len(body) > maxBodyBytes {
		return errorResult(http.StatusRequestEntityTooLarge, string(usecase.ErrorInvalidInput), "request body too large")
	}
	var req answerRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return errorResult(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid JSON body")
		}
	}
	if strings.TrimSpace(req.Query) == "" {
		req.Query = queryParam
	}
	if req.Metadata.City == nil {
		return errorResult(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "metadata.city is required")
	}

	out, err := h.uc.Answer(ctx, usecase.AnswerInput{
		SessionID:   req.SessionID,
		Query:       req.Query,
		City:        *req.Metadata.City,
		IsFirstTurn: req.Metadata.IsFirstRequest,
	})
	if err != nil {
		return useCaseError(logger, err)
	}
	logger.Info("answer served", "session_id", out.SessionID, "language", out.Language, "locations", len(out.Reply.Locations))

	locations := out.Reply.Locations
	if locations == nil {
		locations = []domain.Location{}
	}
	return result{status: http.StatusOK, body: answerResponse{
		SessionID: out.SessionID,
		Language:  out.Language,
		Locations: locations,
		Speech:    out.Reply.Speech,
	}}
}

func (h *Handler) resetSession(ctx context.Context, logger *slog.Logger, sessionID string) result {
	if err := h.uc.ResetSession(ctx, sessionID); err != nil {
		return useCaseError(logger, err)
	}
	return result{status: http.StatusNoContent}
}

func (h *Handler) preferences(ctx context.Context, logger *slog.Logger, sessionID string) result {
	profile, err := h.uc.Preferences(ctx, sessionID)
	if err != nil {
		return useCaseError(logger, err)
	}
	if profile == nil {
		return errorResult(http.StatusNotFound, "NOT_FOUND", "no preferences inferred yet")
	}
	return result{status: http.StatusOK, body: profile}
}

func useCaseError(logger *slog.Logger, err error) result {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		logger.Error("unexpected failure", "err", err)
		return errorResult(http.StatusInternalServerError, string(usecase.ErrorInternal), "internal error")
	}

	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput, usecase.ErrorInvalidQuestion:
		status = http.StatusBadRequest
	case usecase.ErrorRateLimited:
		status = http.StatusTooManyRequests
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
	} else {
		logger.Warn("request rejected", "code", ucErr.Code, "reason", ucErr.Reason)
	}
	return errorResult(status, string(ucErr.Code), ucErr.Reason)
}

func errorResult(status int, code, detail string) result {
	return result{status: status, body: errorResponse{Error: code, Detail: detail}}
}

func correlationIDFrom(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}

func sessionIDFrom(event events.APIGatewayProxyRequest, fallback string) string {
	if id := strings.TrimSpace(event.PathParameters["id"]); id != "" {
		return id
	}
	return fallback
}

func pathSegments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
