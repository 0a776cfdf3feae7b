// Package api exposes the query pipeline over HTTP
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sqlball/sqlball/internal/errors"
	"github.com/sqlball/sqlball/internal/logging"
	"github.com/sqlball/sqlball/internal/optimize"
	"github.com/sqlball/sqlball/internal/pipeline"
)

const maxBodySize = 1 << 20 // 1MB

// QueryRequest is the body of POST /api/query
type QueryRequest struct {
	Question string `json:"question"`
	MaxRows  int    `json:"max_rows,omitempty"`
}

// SQLRequest is the body of /api/validate and /api/optimize
type SQLRequest struct {
	SQL string `json:"sql"`
}

// ExecuteRequest is the body of /api/execute
type ExecuteRequest struct {
	SQL     string `json:"sql"`
	MaxRows int    `json:"max_rows,omitempty"`
}

// Example pairs a natural language question with what it demonstrates
type Example struct {
	Question string `json:"question"`
	About    string `json:"about"`
}

// examples is the suggestion catalog served by GET /api/examples
var examples = []Example{
	{Question: "Who are the top scorers this season?", About: "ranking with domain vocabulary"},
	{Question: "Which matches had more than 5 total goals?", About: "derived metric filter"},
	{Question: "How many clean sheets does each goalkeeper have?", About: "position and concept mapping"},
	{Question: "Show results from gameweek 3", About: "time period filter"},
	{Question: "Which of the big six won away from home?", About: "team group expansion"},
	{Question: "Average goals per match by season", About: "aggregation with grouping"},
}

// NewHandler builds the HTTP routes around the pipeline
func NewHandler(p *pipeline.Pipeline) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Route("/api", func(r chi.Router) {
		r.Post("/query", handleQuery(p))
		r.Post("/execute", handleExecute(p))
		r.Post("/validate", handleValidate(p))
		r.Post("/optimize", handleOptimize(p))
		r.Post("/schema/refresh", handleSchemaRefresh(p))
		r.Get("/schema", handleSchema(p))
		r.Get("/suggestions/{queryType}", handleSuggestions())
		r.Get("/examples", handleExamples())
		r.Get("/health", handleHealth(p))
	})

	return r
}

// requestID tags every request with a correlation id
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", id)

		logging.WithFields(map[string]interface{}{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Debugf("request received")

		next.ServeHTTP(w, r)
	})
}

func handleQuery(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request", "question is required")
			return
		}

		resp, err := p.Process(r.Context(), pipeline.Request{
			Question: req.Question,
			MaxRows:  req.MaxRows,
		})
		if err != nil {
			pipelineError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, resp)
	}
}

func handleExecute(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExecuteRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if req.SQL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request", "sql is required")
			return
		}

		resp, err := p.Execute(r.Context(), req.SQL, req.MaxRows)
		if err != nil {
			pipelineError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, resp)
	}
}

func handleValidate(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SQLRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if req.SQL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request", "sql is required")
			return
		}

		respondJSON(w, http.StatusOK, p.Validate(req.SQL))
	}
}

func handleOptimize(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SQLRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if req.SQL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request", "sql is required")
			return
		}

		respondJSON(w, http.StatusOK, p.Optimize(req.SQL))
	}
}

func handleSchema(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, version := p.SchemaDocuments()

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"version":   version,
			"documents": docs,
		})
	}
}

func handleSchemaRefresh(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, err := p.RefreshSchema(r.Context())
		if err != nil {
			pipelineError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"version": version})
	}
}

func handleSuggestions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queryType := chi.URLParam(r, "queryType")

		suggestions, ok := optimize.TypeSuggestions(queryType)
		if !ok {
			httpError(w, http.StatusNotFound, "unknown_query_type",
				"unknown query type %q; known types: %s",
				queryType, strings.Join(optimize.QueryTypes(), ", "))

			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"query_type":  queryType,
			"suggestions": suggestions,
		})
	}
}

func handleExamples() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]interface{}{"examples": examples})
	}
}

func handleHealth(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := p.CacheStats(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "health check failed: %v", err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"cache":  stats,
		})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request", "invalid request body: %v", err)
		return false
	}

	return true
}

// pipelineError maps pipeline error types to HTTP status codes
func pipelineError(w http.ResponseWriter, err error) {
	switch errors.GetType(err) {
	case errors.ErrTypeValidation:
		httpError(w, http.StatusUnprocessableEntity, "validation_failed", "%v", err)
	case errors.ErrTypeTimeout:
		httpError(w, http.StatusGatewayTimeout, "timeout", "%v", err)
	case errors.ErrTypeNotFound:
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.ErrTypeSynthesis:
		httpError(w, http.StatusBadGateway, "synthesis_failed", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "internal_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	msg := fmt.Sprintf(format, args...)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(payload)
}
