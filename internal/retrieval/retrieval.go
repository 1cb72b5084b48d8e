package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Passage is a chunk of source-document text returned by the index,
// with provenance metadata. Rank is the position in the result list;
// the index does not guarantee a numeric score.
type Passage struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Rank     int               `json:"rank"`
}

// ErrNotReady reports that the passage index is missing or empty. It is
// a startup-fatal condition, never a per-request one.
var ErrNotReady = errors.New("passage index not ready")

// Retriever wraps the vector-search collaborator.
//
// Retrieve returns up to k passages ranked by relevance; "no results"
// is an empty slice, not an error. Ready is checked once before the
// service starts accepting requests.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Passage, error)
	Ready(ctx context.Context) error
	Close() error
}

// Config controls retriever construction.
type Config struct {
	Mode           string
	DatabaseURL    string
	HTTPURL        string
	EmbeddingModel string
	EmbeddingDim   int
	OpenAIAPIKey   string
	OpenAIBaseURL  string
}

// NewRetriever builds a retriever for the configured mode. "auto"
// prefers postgres when a database URL is present, then an HTTP
// collaborator, then the in-memory mock.
func NewRetriever(ctx context.Context, cfg Config) (Retriever, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.DatabaseURL) != "" {
			return newPostgresFromConfig(ctx, cfg)
		}
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPRetriever(cfg.HTTPURL), nil
		}
		return NewMockRetriever(nil), nil
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, errors.New("DATABASE_URL is required for postgres retriever")
		}
		return newPostgresFromConfig(ctx, cfg)
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("retriever HTTP url is required for http mode")
		}
		return NewHTTPRetriever(cfg.HTTPURL), nil
	case "mock":
		return NewMockRetriever(nil), nil
	default:
		return nil, fmt.Errorf("unsupported retriever mode %q", cfg.Mode)
	}
}

func newPostgresFromConfig(ctx context.Context, cfg Config) (Retriever, error) {
	embedder := NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel)
	return NewPostgresRetriever(ctx, cfg.DatabaseURL, embedder, cfg.EmbeddingDim)
}
