package genai

import (
	"context"
	"errors"
	"fmt"
)

// FallbackClient attempts a primary client first and falls back on error.
//
// Fallback only applies when the primary failed before emitting any
// delta; once partial output reached the caller the error must surface
// so the orchestrator can abort the stream instead of splicing two
// answers together.
type FallbackClient struct {
	primary  Client
	fallback Client
}

func NewFallbackClient(primary, fallback Client) *FallbackClient {
	return &FallbackClient{primary: primary, fallback: fallback}
}

func (c *FallbackClient) Stream(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	if c == nil || c.primary == nil {
		if c != nil && c.fallback != nil {
			return c.fallback.Stream(ctx, req, onDelta)
		}
		return Response{}, fmt.Errorf("fallback client misconfigured")
	}

	emitted := false
	wrapped := func(delta string) error {
		emitted = true
		if onDelta == nil {
			return nil
		}
		return onDelta(delta)
	}

	resp, err := c.primary.Stream(ctx, req, wrapped)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Response{}, err
	}
	if emitted || c.fallback == nil {
		return resp, err
	}

	fallbackResp, fallbackErr := c.fallback.Stream(ctx, req, onDelta)
	if fallbackErr != nil {
		return Response{}, fmt.Errorf("primary client error: %w; fallback client error: %v", err, fallbackErr)
	}
	return fallbackResp, nil
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (string, error) {
	if c == nil || c.primary == nil {
		if c != nil && c.fallback != nil {
			return c.fallback.Complete(ctx, req)
		}
		return "", fmt.Errorf("fallback client misconfigured")
	}

	text, err := c.primary.Complete(ctx, req)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	if c.fallback == nil {
		return "", err
	}
	return c.fallback.Complete(ctx, req)
}
