package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"userdeck/internal/review"
	"userdeck/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.Logger
	metrics    http.Handler

	streamsDone chan struct{}
	closeOnce   sync.Once
}

// NewHTTPServer builds the API. metricsHandler may be nil, in which case /metrics is not served.
func NewHTTPServer(service *Service, corsOrigin string, logger *zap.Logger, metricsHandler http.Handler) *HTTPServer {
	return &HTTPServer{
		service:     service,
		corsOrigin:  corsOrigin,
		logger:      logger,
		metrics:     metricsHandler,
		streamsDone: make(chan struct{}),
	}
}

// CloseStreams ends every open event stream. http.Server.Shutdown does not cancel request
// contexts, so register this with RegisterOnShutdown or streams hold shutdown open.
func (s *HTTPServer) CloseStreams() {
	s.closeOnce.Do(func() { close(s.streamsDone) })
}

func (s *HTTPServer) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(loggerMiddleware(s.logger))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: strings.Split(s.corsOrigin, ","),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
	}))
	router.Use(noStore)

	router.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	router.Get("/api/ready", s.handleReady)

	// the event stream is long-lived and must stay outside the request timeout
	router.Get("/api/submissions/stream", s.handleStream)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/api/submissions", s.handleList)
		r.Post("/api/submissions/seed", s.handleSeed)
		r.Get("/api/submissions/{id}", s.handleGet)
		r.Post("/api/submissions/{id}/approve", s.handleTransition(review.StatusApproved))
		r.Post("/api/submissions/{id}/reject", s.handleTransition(review.StatusRejected))
		r.Post("/api/submissions/{id}/revert", s.handleTransition(review.StatusPending))
		r.Post("/api/submissions/{id}/summary", s.handleSummary)
		r.Get("/api/submissions/{id}/sheet.pdf", s.handleSheet)
		r.Get("/api/search", s.handleSearch)
	})

	if s.metrics != nil {
		router.Method(http.MethodGet, "/metrics", s.metrics)
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found", nil)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return router
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	// summaries work uncached without redis, so a failure here does not fail readiness
	if configured, err := s.service.PingCache(ctx); configured {
		if err != nil {
			checks["summary_cache"] = map[string]any{"status": "degraded", "error": err.Error()}
		} else {
			checks["summary_cache"] = map[string]any{"status": "ok"}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.View(r.URL.Query().Get("q")))
}

func (s *HTTPServer) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := s.service.Submission(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submission": item})
}

func (s *HTTPServer) handleTransition(target review.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.service.Transition(chi.URLParam(r, "id"), target)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, result)
	}
}

func (s *HTTPServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	out, err := s.service.Summarize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleSheet(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ReviewSheet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	resp, err := s.service.SearchIndex(r.Context(), r.URL.Query().Get("q"), r.URL.Query().Get("status"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleSeed(w http.ResponseWriter, r *http.Request) {
	ids, err := s.service.Seed(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ids": ids, "count": len(ids)})
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

// loggerMiddleware logs one line per request
func loggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, review.ErrNotFound) || errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Submission not found", nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "TIMEOUT", "Request timed out", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
