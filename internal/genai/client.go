package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role tags a chat message for the generation backend.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry in a generation request.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Request is the normalized request sent to the generation backend.
type Request struct {
	Messages []Message `json:"messages"`
}

// Response is the final response after streaming deltas.
type Response struct {
	Text string `json:"text"`
}

// DeltaHandler receives streaming text fragments in generation order.
type DeltaHandler func(delta string) error

// Client bridges the orchestrator with a text-generation backend.
//
// Stream must invoke onDelta for every fragment before returning; a nil
// error means the stream ended cleanly, a non-nil error means the stream
// aborted (any deltas already delivered are partial output). Complete is
// the non-streaming variant used for classification and evaluation.
type Client interface {
	Stream(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error)
	Complete(ctx context.Context, req Request) (string, error)
}

// Config controls client construction.
type Config struct {
	Mode    string
	APIKey  string
	BaseURL string
	Model   string
	HTTPURL string
}

// NewClient builds a generation client for the configured mode. "auto"
// prefers the OpenAI-compatible backend when a key is present, then an
// HTTP backend, then the deterministic mock.
func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewFallbackClient(NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model), NewMockClient()), nil
		}
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewFallbackClient(NewHTTPClient(cfg.HTTPURL), NewMockClient()), nil
		}
		return NewMockClient(), nil
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("OPENAI_API_KEY is required for openai mode")
		}
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("generation HTTP url is required for http mode")
		}
		return NewHTTPClient(cfg.HTTPURL), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported genai mode %q", cfg.Mode)
	}
}

// LastUserText returns the text of the final user message, used by the
// mock client and by log lines that need a short request summary.
func (r Request) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Text
		}
	}
	return ""
}
