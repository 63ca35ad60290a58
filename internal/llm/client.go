// Package llm talks to an OpenAI-compatible chat completion service. The
// pipeline needs two shapes of call: free text and schema-constrained JSON.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

type Client interface {
	// Text sends a system+user prompt pair and returns the raw completion text.
	Text(ctx context.Context, system, user string) (string, error)
	// JSON sends a system+user prompt pair constrained by a strict JSON schema
	// and returns the raw JSON object bytes produced by the model.
	JSON(ctx context.Context, system, user, schemaName string, schema json.RawMessage) ([]byte, error)
}

// UpstreamError marks network, auth, or protocol failures from the model
// service. The pipeline treats these as fatal for the current request.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("model upstream failure during %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
