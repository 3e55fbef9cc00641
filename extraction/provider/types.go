package provider

import "context"

// Request is one extraction call: an optional system instruction, a single user message and the
// generation parameters.
type Request struct {
	System string
	User   string

	// Temperature is omitted from the request when nil; some models reject it.
	Temperature *float64
	MaxTokens   int

	// Schema, when set, asks the endpoint for JSON output matching it.
	Schema     map[string]interface{}
	SchemaName string
}

// Completer sends a single request to a remote model and returns its raw text completion.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
