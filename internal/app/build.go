// Package app assembles the service from configuration.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/lbianche/minerva/internal/classifier"
	"github.com/lbianche/minerva/internal/config"
	"github.com/lbianche/minerva/internal/engine"
	"github.com/lbianche/minerva/internal/genai"
	"github.com/lbianche/minerva/internal/httpapi"
	"github.com/lbianche/minerva/internal/observability"
	"github.com/lbianche/minerva/internal/retrieval"
	"github.com/lbianche/minerva/internal/session"
	"github.com/lbianche/minerva/internal/websearch"
)

// App is the wired service plus its cleanup hook.
type App struct {
	Config    config.Config
	Metrics   *observability.Metrics
	Sessions  *session.Store
	Retriever retrieval.Retriever
	Engine    *engine.Engine
	Server    *httpapi.Server

	// Cleanup releases collaborator resources. Safe to call once.
	Cleanup func()
}

// Build wires config into a runnable service: metrics, retriever,
// generation client, web search, session store, engine, HTTP API.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	retriever, err := retrieval.NewRetriever(ctx, retrieval.Config{
		Mode:           cfg.RetrieverMode,
		DatabaseURL:    cfg.DatabaseURL,
		HTTPURL:        cfg.RetrieverHTTPURL,
		EmbeddingModel: cfg.EmbeddingModel,
		EmbeddingDim:   cfg.EmbeddingDim,
		OpenAIAPIKey:   cfg.OpenAIAPIKey,
		OpenAIBaseURL:  cfg.OpenAIBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("retriever init: %w", err)
	}

	llm, err := genai.NewClient(genai.Config{
		Mode:    cfg.GenAIMode,
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		HTTPURL: cfg.GenAIHTTPURL,
	})
	if err != nil {
		_ = retriever.Close()
		return nil, fmt.Errorf("generation client init: %w", err)
	}

	searcher := websearch.NewDuckDuckGoClient(cfg.SearchUserAgent, cfg.SearchTimeout)

	decider := classifier.New(llm, classifier.Config{
		Timeout:  cfg.ClassifyTimeout,
		FailOpen: cfg.ClassifierFailOpen,
	})

	sessions := session.NewStore()
	eng := engine.New(sessions, retriever, decider, searcher, llm, metrics, engine.Config{
		Institution:       cfg.InstitutionName,
		RetrievalK:        cfg.RetrievalK,
		RetrievalTimeout:  cfg.RetrievalTimeout,
		SearchMaxResults:  cfg.SearchMaxResults,
		SearchTimeout:     cfg.SearchTimeout,
		GenerationTimeout: cfg.GenerationTimeout,
		HistoryLimit:      cfg.HistoryLimit,
		StreamBuffer:      cfg.StreamBuffer,
	})

	server := httpapi.New(cfg, eng, retriever, metrics)

	return &App{
		Config:    cfg,
		Metrics:   metrics,
		Sessions:  sessions,
		Retriever: retriever,
		Engine:    eng,
		Server:    server,
		Cleanup: func() {
			if err := retriever.Close(); err != nil {
				log.Printf("retriever close: %v", err)
			}
		},
	}, nil
}
