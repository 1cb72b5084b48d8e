// minerva-eval scores the retrieval and answering pipeline offline
// against a question set and writes a JSON report.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/lbianche/minerva/internal/config"
	"github.com/lbianche/minerva/internal/eval"
	"github.com/lbianche/minerva/internal/genai"
	"github.com/lbianche/minerva/internal/retrieval"
)

func main() {
	casesPath := flag.String("cases", "", "path to a JSON file of test cases (default: built-in set)")
	outPath := flag.String("out", "evaluation_report.json", "path for the JSON report")
	k := flag.Int("k", 0, "passages per question (default: RETRIEVAL_K)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *k <= 0 {
		*k = cfg.RetrievalK
	}

	ctx := context.Background()

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
		log.Fatalf("retriever init failed: %v", err)
	}
	defer retriever.Close()

	if err := retriever.Ready(ctx); err != nil {
		log.Fatalf("passage index not ready: %v", err)
	}

	llm, err := genai.NewClient(genai.Config{
		Mode:    cfg.GenAIMode,
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		HTTPURL: cfg.GenAIHTTPURL,
	})
	if err != nil {
		log.Fatalf("generation client init failed: %v", err)
	}

	cases := eval.DefaultCases()
	if *casesPath != "" {
		cases, err = eval.LoadCases(*casesPath)
		if err != nil {
			log.Fatalf("load test cases: %v", err)
		}
	}

	evaluator := eval.New(retriever, llm, cfg.InstitutionName, *k)
	log.Printf("running evaluation over %d cases (k=%d)", len(cases), *k)

	report, err := evaluator.Run(ctx, cases)
	if err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}

	if err := eval.WriteReport(*outPath, report); err != nil {
		log.Fatalf("write report: %v", err)
	}
	log.Printf("evaluation completed, report written to %s", *outPath)
}
