package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClientRequiresConfig(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "https://api.openai.com"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestOpenAIClientText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("request body decode: %v", err)
		}
		if _, ok := payload["response_format"]; ok {
			t.Fatal("text call must not send response_format")
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	got, err := client.Text(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if got != "hello" {
		t.Fatalf("Text() = %q", got)
	}
}

func TestOpenAIClientJSONSendsStrictSchema(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			ResponseFormat struct {
				Type       string `json:"type"`
				JSONSchema struct {
					Name   string          `json:"name"`
					Schema json.RawMessage `json:"schema"`
					Strict bool            `json:"strict"`
				} `json:"json_schema"`
			} `json:"response_format"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("request body decode: %v", err)
		}
		if payload.ResponseFormat.Type != "json_schema" {
			t.Fatalf("response_format.type = %q", payload.ResponseFormat.Type)
		}
		if payload.ResponseFormat.JSONSchema.Name != "router_result" {
			t.Fatalf("schema name = %q", payload.ResponseFormat.JSONSchema.Name)
		}
		if !payload.ResponseFormat.JSONSchema.Strict {
			t.Fatal("strict must be true")
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	raw, err := client.JSON(context.Background(), "sys", "user", "router_result", json.RawMessage(`{"type":"object"}`))
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Fatalf("JSON() = %s", raw)
	}
}

func TestOpenAIClientWrapsUpstreamFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	_, err = client.Text(context.Background(), "sys", "user")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error = %v, want UpstreamError", err)
	}
	if upstream.Op != "text" {
		t.Fatalf("Op = %q", upstream.Op)
	}
}
