package genai

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no generation
// backend is configured. Decision prompts get a strict YES/NO so the
// search-need classifier behaves predictably in dev mode.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Stream(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	text := buildMockReply(req)
	if onDelta != nil && text != "" {
		// Stream word by word so callers exercise their delta paths.
		words := strings.SplitAfter(text, " ")
		for _, w := range words {
			if w == "" {
				continue
			}
			if err := onDelta(w); err != nil {
				return Response{}, err
			}
		}
	}
	return Response{Text: text}, nil
}

func (c *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return buildMockReply(req), nil
}

func buildMockReply(req Request) string {
	question := strings.TrimSpace(req.LastUserText())
	if question == "" {
		return "I am listening."
	}

	// Decision prompts ask for a bare YES/NO verdict.
	if isDecisionPrompt(req) {
		if strings.Contains(question, "Retrieved context:\n(none)") {
			return "NO"
		}
		return "YES"
	}

	return fmt.Sprintf("Here is what I found about your question: %s", question)
}

func isDecisionPrompt(req Request) bool {
	for _, m := range req.Messages {
		if m.Role == RoleSystem && strings.Contains(m.Text, "Answer with a single word: YES or NO") {
			return true
		}
	}
	return false
}
