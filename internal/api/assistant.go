package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/errs"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/observability"
)

type embedSQLRequest struct {
	UserQuestion string `json:"user_question"`
	GeneratedSQL string `json:"generated_sql"`
	UserDatabase string `json:"user_database"`
}

type summarizeRequest struct {
	UserQuestion string          `json:"user_question"`
	SQLResults   json.RawMessage `json:"sql_results"`
}

type embeddingsRequest struct {
	Input any `json:"input"`
}

func handleEmbedSQL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Examples == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXAMPLES_NOT_CONFIGURED", "example store is not configured", false, nil)
		return
	}
	var request embedSQLRequest
	if err := decodeBody(w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid embed_sql request body", false, map[string]any{"details": err.Error()})
		return
	}
	if missing := request.missingFields(); len(missing) > 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "FIELD_REQUIRED", "required fields are missing", false, map[string]any{"fields": missing})
		return
	}

	status, err := deps.Examples.AddSQLEmbedding(r.Context(), request.UserQuestion, request.GeneratedSQL, request.UserDatabase)
	if err != nil {
		observability.LoggerOrDiscard(deps.Logger).ErrorContext(r.Context(), "embed_sql failed",
			"trace_id", observability.TraceIDFromContext(r.Context()),
			"user_database", request.UserDatabase,
			"error", err,
		)
		writeError(r.Context(), w, http.StatusInternalServerError, "EMBED_SQL_FAILED", "failed to store example embedding", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ResponseCode": http.StatusCreated,
		"Message":      "Example SQL has been accepted for embedding",
		"Status":       status,
		"Error":        "",
	})
}

func handleSummarizeResults(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Summarizer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "RESPONDER_NOT_CONFIGURED", "response generator is not configured", false, nil)
		return
	}
	var request summarizeRequest
	if err := decodeBody(w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid summarize_results request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.UserQuestion) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "FIELD_REQUIRED", "user_question is required", false, nil)
		return
	}

	summary, err := deps.Summarizer.Run(r.Context(), request.UserQuestion, sqlResultText(request.SQLResults))
	if err != nil {
		code := "UPSTREAM_ERROR"
		if errors.Is(err, errs.ErrNoCandidates) {
			code = "NO_CANDIDATES"
		}
		writeError(r.Context(), w, http.StatusBadGateway, code, "failed to generate summary", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ResponseCode":     http.StatusOK,
		"summary_response": summary,
		"Error":            "",
	})
}

func handleCreateEmbeddings(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Embedder == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EMBEDDER_NOT_CONFIGURED", "embedding provider is not configured", false, nil)
		return
	}
	var request embeddingsRequest
	if err := decodeBody(w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid embeddings request body", false, map[string]any{"details": err.Error()})
		return
	}

	embeddings, err := deps.Embedder.Create(r.Context(), request.Input)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidInput) {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusBadGateway, "UPSTREAM_ERROR", "failed to create embeddings", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"embeddings": embeddings})
}

// sqlResultText passes a JSON string through unquoted and any other JSON value
// (typically the result rows) as its raw text.
func sqlResultText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return strings.TrimSpace(string(raw))
}

func (r embedSQLRequest) missingFields() []string {
	var missing []string
	if strings.TrimSpace(r.UserQuestion) == "" {
		missing = append(missing, "user_question")
	}
	if strings.TrimSpace(r.GeneratedSQL) == "" {
		missing = append(missing, "generated_sql")
	}
	if strings.TrimSpace(r.UserDatabase) == "" {
		missing = append(missing, "user_database")
	}
	return missing
}
