package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the minerva answering service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Institution the assistant answers questions about. Injected into
	// the system prompt.
	InstitutionName string

	// Retrieval gateway.
	RetrieverMode    string // auto|postgres|http|mock
	RetrieverHTTPURL string
	DatabaseURL      string
	RetrievalK       int
	RetrievalTimeout time.Duration
	EmbeddingModel   string
	EmbeddingDim     int

	// Generation backend gateway.
	GenAIMode     string // auto|openai|http|mock
	GenAIHTTPURL  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Web search gateway.
	SearchMaxResults int
	SearchTimeout    time.Duration
	SearchUserAgent  string

	// Orchestration policy.
	ClassifyTimeout    time.Duration
	ClassifierFailOpen bool
	GenerationTimeout  time.Duration
	HistoryLimit       int
	StreamBuffer       int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "minerva"),
		AllowAnyOrigin:   false,
		InstitutionName:  envOrDefault("APP_INSTITUTION_NAME", "Aivancity School for Technology, Business and Society"),

		RetrieverMode:    envOrDefault("RETRIEVER_MODE", "auto"),
		RetrieverHTTPURL: trimmedEnv("RETRIEVER_HTTP_URL"),
		DatabaseURL:      trimmedEnv("DATABASE_URL"),
		RetrievalK:       4,
		RetrievalTimeout: 5 * time.Second,
		EmbeddingModel:   envOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:     1536,

		GenAIMode:     envOrDefault("GENAI_MODE", "auto"),
		GenAIHTTPURL:  trimmedEnv("GENAI_HTTP_URL"),
		OpenAIAPIKey:  trimmedEnv("OPENAI_API_KEY"),
		OpenAIBaseURL: trimmedEnv("OPENAI_BASE_URL"),
		OpenAIModel:   envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),

		SearchMaxResults: 5,
		SearchTimeout:    8 * time.Second,
		SearchUserAgent:  envOrDefault("SEARCH_USER_AGENT", "minerva/1.0 (+https://github.com/lbianche/minerva)"),

		ClassifyTimeout:    4 * time.Second,
		ClassifierFailOpen: true,
		GenerationTimeout:  90 * time.Second,
		HistoryLimit:       20,
		StreamBuffer:       64,

		ShutdownTimeout: 15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalK, err = intFromEnv("RETRIEVAL_K", cfg.RetrievalK)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalTimeout, err = durationFromEnv("RETRIEVAL_TIMEOUT", cfg.RetrievalTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDim, err = intFromEnv("EMBEDDING_DIM", cfg.EmbeddingDim)
	if err != nil {
		return Config{}, err
	}
	cfg.SearchMaxResults, err = intFromEnv("SEARCH_MAX_RESULTS", cfg.SearchMaxResults)
	if err != nil {
		return Config{}, err
	}
	cfg.SearchTimeout, err = durationFromEnv("SEARCH_TIMEOUT", cfg.SearchTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ClassifyTimeout, err = durationFromEnv("CLASSIFY_TIMEOUT", cfg.ClassifyTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ClassifierFailOpen, err = boolFromEnv("CLASSIFIER_FAIL_OPEN", cfg.ClassifierFailOpen)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationTimeout, err = durationFromEnv("GENERATION_TIMEOUT", cfg.GenerationTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimit, err = intFromEnv("HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.StreamBuffer, err = intFromEnv("STREAM_BUFFER", cfg.StreamBuffer)
	if err != nil {
		return Config{}, err
	}

	if cfg.RetrievalK < 1 {
		return Config{}, fmt.Errorf("RETRIEVAL_K must be at least 1")
	}
	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_DIM must be positive")
	}
	if cfg.SearchMaxResults < 1 {
		return Config{}, fmt.Errorf("SEARCH_MAX_RESULTS must be at least 1")
	}
	if cfg.HistoryLimit < 0 {
		return Config{}, fmt.Errorf("HISTORY_LIMIT must be >= 0")
	}
	if cfg.StreamBuffer < 1 {
		return Config{}, fmt.Errorf("STREAM_BUFFER must be at least 1")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.RetrieverMode)) {
	case "", "auto", "postgres", "http", "mock":
	default:
		return Config{}, fmt.Errorf("invalid RETRIEVER_MODE: %q (expected auto|postgres|http|mock)", cfg.RetrieverMode)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.GenAIMode)) {
	case "", "auto", "openai", "http", "mock":
	default:
		return Config{}, fmt.Errorf("invalid GENAI_MODE: %q (expected auto|openai|http|mock)", cfg.GenAIMode)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
