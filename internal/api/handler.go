package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/auth"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/config"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/examples"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/observability"
)

const maxRequestBodyBytes = 1 << 20

type ReadinessCheck func(ctx context.Context) error

type ExampleRecorder interface {
	AddSQLEmbedding(ctx context.Context, question, generatedSQL, schema string) (examples.Status, error)
}

type ResultSummarizer interface {
	Run(ctx context.Context, userQuestion, sqlResult string) (string, error)
}

type EmbeddingCreator interface {
	Create(ctx context.Context, input any) (any, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Examples          ExampleRecorder
	Summarizer        ResultSummarizer
	Embedder          EmbeddingCreator
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "ok",
			"service":      cfg.Service.Name,
			"vector_store": cfg.VectorStore.Backend,
		})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protect := func(role string, handler http.HandlerFunc) http.Handler {
		var wrapped http.Handler = auth.RequireRole(role)(handler)
		if !cfg.Auth.Required {
			return wrapped
		}
		if deps.AuthMiddleware == nil {
			observability.LoggerOrDiscard(deps.Logger).Error("auth required but auth middleware missing")
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		}
		return deps.AuthMiddleware(wrapped)
	}

	mux.Handle("POST /v1/embed_sql", protect(auth.RoleExampleWriter, func(w http.ResponseWriter, r *http.Request) {
		handleEmbedSQL(deps, w, r)
	}))
	mux.Handle("POST /v1/summarize_results", protect(auth.RoleResponder, func(w http.ResponseWriter, r *http.Request) {
		handleSummarizeResults(deps, w, r)
	}))
	mux.Handle("POST /v1/embeddings", protect(auth.RoleEmbedder, func(w http.ResponseWriter, r *http.Request) {
		handleCreateEmbeddings(deps, w, r)
	}))

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckVectorStoreConfig reports whether the selected backend has the
// connection settings it needs.
func CheckVectorStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		switch cfg.VectorStore.Backend {
		case "cloudsql-pgvector":
			if cfg.Postgres.DSN == "" && cfg.InstanceConnectionName() == "" {
				return errors.New("postgres dsn or cloud sql instance is not configured")
			}
		case "bigquery-vector":
			if cfg.BigQuery.ProjectID == "" || cfg.BigQuery.Dataset == "" {
				return errors.New("bigquery project or dataset is not configured")
			}
		default:
			return errors.New("vector store backend is not supported")
		}
		return nil
	}
}

func CheckGCPConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.GCP.ProjectID == "" {
			return errors.New("gcp project is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
