package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tabularqa/tabularqa/internal/history"
	"github.com/tabularqa/tabularqa/internal/llm"
	"github.com/tabularqa/tabularqa/internal/pipeline"
	"github.com/tabularqa/tabularqa/internal/plan"
	"github.com/tabularqa/tabularqa/internal/sqlrun"
	"github.com/tabularqa/tabularqa/internal/sqlsafety"
)

func postChat(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChatHappyPath(t *testing.T) {
	chat := &fakeChat{resp: &pipeline.Response{
		Action:   plan.ActionQuery,
		Answer:   "There are 5 clients.",
		Intent:   plan.IntentListClients,
		Mode:     pipeline.ModeTemplate,
		SQL:      "SELECT ... LIMIT 50;",
		RowCount: 5,
		Grounded: true,
	}}
	hist := &fakeHistory{}
	handler := NewHandler(testConfig(false), Dependencies{Chat: chat, History: hist})

	rec := postChat(t, handler, `{"session_id": "s1", "question": "how many clients do we have?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["answer"] != "There are 5 clients." || body["session_id"] != "s1" {
		t.Fatalf("body = %v", body)
	}
	if chat.lastSess != "s1" || chat.lastQ != "how many clients do we have?" {
		t.Fatalf("chat called with (%q, %q)", chat.lastSess, chat.lastQ)
	}

	if len(hist.recorded) != 1 {
		t.Fatalf("recorded = %d entries, want 1", len(hist.recorded))
	}
	if hist.recorded[0].Intent != "LIST_CLIENTS" || hist.recorded[0].RowCount != 5 {
		t.Fatalf("recorded[0] = %+v", hist.recorded[0])
	}
}

func TestChatDefaultsSessionID(t *testing.T) {
	chat := &fakeChat{resp: &pipeline.Response{Action: plan.ActionQuery, Answer: "ok", Grounded: true}}
	handler := NewHandler(testConfig(false), Dependencies{Chat: chat})

	rec := postChat(t, handler, `{"question": "list all clients"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if chat.lastSess != "default" {
		t.Fatalf("session = %q, want default", chat.lastSess)
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	handler := NewHandler(testConfig(false), Dependencies{Chat: &fakeChat{}})
	cases := []struct {
		name string
		body string
	}{
		{"not json", "nope"},
		{"empty question", `{"question": "   "}`},
		{"unknown field", `{"question": "x", "mystery": true}`},
		{"too long", fmt.Sprintf(`{"question": %q}`, strings.Repeat("a", maxQuestionLength+1))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postChat(t, handler, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestChatErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"model upstream", &llm.UpstreamError{Op: "route", Err: errors.New("502")}, http.StatusBadGateway, "MODEL_UNAVAILABLE"},
		{"model schema", &plan.SchemaError{Reason: "missing key"}, http.StatusBadGateway, "MODEL_RESPONSE_INVALID"},
		{"unsafe sql", &sqlsafety.Error{Reason: "write keyword DROP"}, http.StatusUnprocessableEntity, "UNSAFE_SQL"},
		{"query failed", &sqlrun.ExecutionError{SQL: "x", Err: errors.New("boom")}, http.StatusInternalServerError, "QUERY_FAILED"},
		{"unknown", errors.New("anything"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler(testConfig(false), Dependencies{Chat: &fakeChat{err: fmt.Errorf("ask: %w", tc.err)}})
			rec := postChat(t, handler, `{"question": "list clients"}`)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error_code"] != tc.wantCode {
				t.Fatalf("error_code = %v, want %s", body["error_code"], tc.wantCode)
			}
		})
	}
}

func TestChatSucceedsWhenHistoryRecordFails(t *testing.T) {
	chat := &fakeChat{resp: &pipeline.Response{Action: plan.ActionQuery, Answer: "ok", Grounded: true}}
	handler := NewHandler(testConfig(false), Dependencies{Chat: chat, History: failingHistory{}})

	rec := postChat(t, handler, `{"question": "list all clients"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite history failure", rec.Code)
	}
}

type failingHistory struct{}

func (failingHistory) Record(_ context.Context, _ history.Entry) (history.Entry, error) {
	return history.Entry{}, errors.New("db down")
}

func (failingHistory) ListRecent(_ context.Context, _ string, _ int) ([]history.Entry, error) {
	return nil, errors.New("db down")
}
