package api

import (
	"net/http"
	"strconv"
)

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_DISABLED", "request history is not configured", false, nil)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer between 1 and 200", false, nil)
			return
		}
		limit = parsed
	}

	entries, err := deps.History.ListRecent(r.Context(), r.URL.Query().Get("session_id"), limit)
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.ErrorContext(r.Context(), "failed to list history", "error", err)
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", "failed to list history", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
