package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tabularqa/tabularqa/internal/history"
)

func getHistory(t *testing.T, handler http.Handler, query string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history"+query, nil))
	return rec
}

func TestHistoryList(t *testing.T) {
	hist := &fakeHistory{entries: []history.Entry{
		{ID: 2, SessionID: "s1", Question: "q2", Action: "QUERY", CreatedAt: time.Now()},
		{ID: 1, SessionID: "s1", Question: "q1", Action: "REFUSE", CreatedAt: time.Now()},
	}}
	handler := NewHandler(testConfig(false), Dependencies{Chat: &fakeChat{}, History: hist})

	rec := getHistory(t, handler, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Entries []history.Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Entries) != 2 || body.Entries[0].ID != 2 {
		t.Fatalf("entries = %+v", body.Entries)
	}
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	handler := NewHandler(testConfig(false), Dependencies{Chat: &fakeChat{}, History: &fakeHistory{}})
	for _, query := range []string{"?limit=0", "?limit=201", "?limit=abc"} {
		if rec := getHistory(t, handler, query); rec.Code != http.StatusBadRequest {
			t.Fatalf("status for %q = %d, want 400", query, rec.Code)
		}
	}
}

func TestHistoryDisabled(t *testing.T) {
	handler := NewHandler(testConfig(false), Dependencies{Chat: &fakeChat{}})
	if rec := getHistory(t, handler, ""); rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rec.Code)
	}
}
