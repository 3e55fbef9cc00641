package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const DefaultOllamaURL = "http://localhost:11434"

// Ollama talks to the native Ollama chat endpoint.
type Ollama struct {
	baseURL string
	model   string
	client  *api.Client
}

// NewOllama creates a client for baseURL (DefaultOllamaURL when empty).
func NewOllama(baseURL, model string, timeout time.Duration) (*Ollama, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("NewOllama: parse base url %q: %w", baseURL, err)
	}
	return &Ollama{
		baseURL: baseURL,
		model:   model,
		client:  api.NewClient(u, &http.Client{Timeout: timeout}),
	}, nil
}

// Complete sends a non-streaming chat request and returns the assistant message content.
func (o *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	if o.model == "" {
		return "", errors.New("Ollama: model is empty")
	}

	messages := make([]api.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.User})

	options := make(map[string]any, 2)
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}
	if req.Schema != nil {
		format, err := json.Marshal(req.Schema)
		if err != nil {
			return "", fmt.Errorf("Ollama: marshal format: %w", err)
		}
		chatReq.Format = format
	}

	var sb strings.Builder
	err := o.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Ollama: chat: %w", err)
	}
	return sb.String(), nil
}

// HealthCheck verifies that the Ollama server answers.
func (o *Ollama) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := o.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("Ollama is unreachable at %s: %w", o.baseURL, err)
	}
	return nil
}
