package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ollama/ollama/api"
)

func newTestOllama(t *testing.T, baseURL, model string) *Ollama {
	t.Helper()
	o, err := NewOllama(baseURL, model, 0)
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}
	return o
}

func TestOllamaComplete_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path=%q, want /api/chat", r.URL.Path)
		}

		var req api.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama3:8b" || req.Stream == nil || *req.Stream {
			t.Errorf("model=%q stream=%v", req.Model, req.Stream)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "hello" {
			t.Errorf("messages=%+v", req.Messages)
		}
		if req.Options["temperature"] != 0.1 || req.Options["num_predict"] != float64(4000) {
			t.Errorf("options=%v", req.Options)
		}
		if len(req.Format) != 0 {
			t.Errorf("format=%s, want none", req.Format)
		}

		_ = json.NewEncoder(w).Encode(api.ChatResponse{
			Model:   req.Model,
			Message: api.Message{Role: "assistant", Content: "world"},
			Done:    true,
		})
	}))
	defer server.Close()

	temp := 0.1
	o := newTestOllama(t, server.URL+"/", "llama3:8b")
	out, err := o.Complete(context.Background(), Request{System: "sys", User: "hello", Temperature: &temp, MaxTokens: 4000})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "world" {
		t.Fatalf("out=%q, want world", out)
	}
}

func TestOllamaComplete_SendsSchemaAsFormatAndOmitsUnsetOptions(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		var format map[string]any
		if err := json.Unmarshal(req.Format, &format); err != nil || format["type"] != "object" {
			t.Errorf("format=%s err=%v", req.Format, err)
		}
		if _, ok := req.Options["temperature"]; ok {
			t.Errorf("temperature sent although unset: %v", req.Options)
		}
		if len(req.Messages) != 1 {
			t.Errorf("messages=%+v, want user only", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(api.ChatResponse{Message: api.Message{Content: "{}"}, Done: true})
	}))
	defer server.Close()

	o := newTestOllama(t, server.URL, "m")
	if _, err := o.Complete(context.Background(), Request{User: "u", Schema: map[string]interface{}{"type": "object"}}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestOllamaComplete_HTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"model is loading"}`))
	}))
	defer server.Close()

	_, err := newTestOllama(t, server.URL, "m").Complete(context.Background(), Request{User: "u"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "503") || classifyError(err) != "server" {
		t.Fatalf("err=%v", err)
	}
}

func TestOllamaComplete_BodyError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model 'x' not found"}`))
	}))
	defer server.Close()

	_, err := newTestOllama(t, server.URL, "x").Complete(context.Background(), Request{User: "u"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err=%v", err)
	}
}

func TestOllamaComplete_RequiresModel(t *testing.T) {
	t.Parallel()

	if _, err := newTestOllama(t, "", "").Complete(context.Background(), Request{User: "u"}); err == nil {
		t.Fatalf("expected error for empty model")
	}
}

func TestOllamaHealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newTestOllama(t, server.URL, "m").HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	server.Close()
	if err := newTestOllama(t, server.URL, "m").HealthCheck(context.Background()); err == nil {
		t.Fatalf("expected error once the server is gone")
	}
}

func TestNewOllama_DefaultURL(t *testing.T) {
	t.Parallel()

	if o := newTestOllama(t, "  ", "m"); o.baseURL != DefaultOllamaURL {
		t.Fatalf("baseURL=%q, want %q", o.baseURL, DefaultOllamaURL)
	}
}
