package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tabularqa/tabularqa/internal/history"
	"github.com/tabularqa/tabularqa/internal/llm"
	"github.com/tabularqa/tabularqa/internal/pipeline"
	"github.com/tabularqa/tabularqa/internal/plan"
	"github.com/tabularqa/tabularqa/internal/sqlrun"
	"github.com/tabularqa/tabularqa/internal/sqlsafety"
)

var errNoModelKey = errors.New("model api key is not configured")

// maxQuestionLength bounds chat input; longer texts are not questions.
const maxQuestionLength = 2000

type chatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	*pipeline.Response
}

func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body: "+err.Error(), false, nil)
		return
	}

	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "question is required", false, nil)
		return
	}
	if len(req.Question) > maxQuestionLength {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "question is too long", false, nil)
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	resp, err := deps.Chat.Ask(r.Context(), req.SessionID, req.Question)
	if err != nil {
		writeChatError(deps, w, r, err)
		return
	}

	if deps.History != nil {
		entry := history.Entry{
			SessionID: req.SessionID,
			Question:  req.Question,
			Action:    string(resp.Action),
			Intent:    string(resp.Intent),
			Mode:      string(resp.Mode),
			SQL:       resp.SQL,
			RowCount:  resp.RowCount,
			Repaired:  resp.Repaired,
			Grounded:  resp.Grounded,
		}
		if _, err := deps.History.Record(r.Context(), entry); err != nil && deps.Logger != nil {
			// Answering beats bookkeeping; log and move on.
			deps.Logger.WarnContext(r.Context(), "failed to record chat request", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, chatResponse{SessionID: req.SessionID, Response: resp})
}

func writeChatError(deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	if deps.Logger != nil {
		deps.Logger.ErrorContext(r.Context(), "chat request failed", "error", err)
	}

	var upstreamErr *llm.UpstreamError
	var schemaErr *plan.SchemaError
	var safetyErr *sqlsafety.Error
	var execErr *sqlrun.ExecutionError
	switch {
	case errors.As(err, &upstreamErr):
		writeError(r.Context(), w, http.StatusBadGateway, "MODEL_UNAVAILABLE", "the language model is unavailable", true, nil)
	case errors.As(err, &schemaErr):
		writeError(r.Context(), w, http.StatusBadGateway, "MODEL_RESPONSE_INVALID", "the language model returned an unusable response", true, nil)
	case errors.As(err, &safetyErr):
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "UNSAFE_SQL", safetyErr.Error(), false, nil)
	case errors.As(err, &execErr):
		writeError(r.Context(), w, http.StatusInternalServerError, "QUERY_FAILED", "the generated query could not be executed", false, nil)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", "internal error", false, nil)
	}
}
