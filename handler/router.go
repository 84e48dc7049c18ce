package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tour-guide-agent/internal/usecase"
)

// Routes exposes the same operations as Handle over plain HTTP.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Post("/answer", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			writeResult(w, errorResult(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "unreadable body"))
			return
		}
		writeResult(w, h.answer(r.Context(), h.requestLogger(w, r), body, r.URL.Query().Get("query")))
	})
	r.Delete("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, h.resetSession(r.Context(), h.requestLogger(w, r), chi.URLParam(r, "id")))
	})
	r.Get("/sessions/{id}/preferences", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, h.preferences(r.Context(), h.requestLogger(w, r), chi.URLParam(r, "id")))
	})

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range corsHeaders {
			w.Header().Set(k, v)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger echoes or assigns the correlation id and returns a logger
// scoped to the request.
func (h *Handler) requestLogger(w http.ResponseWriter, r *http.Request) *slog.Logger {
	headers := make(map[string]string, 1)
	if v := r.Header.Get(correlationHeader); v != "" {
		headers[correlationHeader] = v
	}
	correlationID := correlationIDFrom(headers)
	w.Header().Set(correlationHeader, correlationID)
	return h.logger.With(
		"correlation_id", correlationID,
		"request_id", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

func writeResult(w http.ResponseWriter, res result) {
	if res.body == nil {
		w.WriteHeader(res.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.status)
	_ = json.NewEncoder(w).Encode(res.body)
}
