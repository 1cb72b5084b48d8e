// Package classifier decides whether retrieved context is enough to
// answer a question or whether a web search should supplement it.
package classifier

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lbianche/minerva/internal/genai"
	"github.com/lbianche/minerva/internal/retrieval"
)

const (
	previewPassages = 3
	previewChars    = 300
)

const decisionSystemPrompt = "You judge whether retrieved context is sufficient to answer a question. " +
	"Answer with a single word: YES or NO. " +
	"YES means the context already contains the answer. " +
	"NO means a web search is needed."

type Config struct {
	// Timeout bounds a single decision call.
	Timeout time.Duration

	// FailOpen makes an errored or timed-out decision count as
	// "search needed" instead of surfacing the error.
	FailOpen bool
}

// Classifier asks the language model a YES/NO question about the
// retrieved passages. Its output is advisory: a wrong answer degrades
// quality, never correctness.
type Classifier struct {
	llm genai.Client
	cfg Config
}

func New(llm genai.Client, cfg Config) *Classifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Second
	}
	return &Classifier{llm: llm, cfg: cfg}
}

// NeedsSearch reports whether a web search should run for the query
// given the retrieved passages. Zero passages still go through the
// model: the question itself may not need external facts.
func (c *Classifier) NeedsSearch(ctx context.Context, query string, passages []retrieval.Passage) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req := genai.Request{
		Messages: []genai.Message{
			{Role: genai.RoleSystem, Text: decisionSystemPrompt},
			{Role: genai.RoleUser, Text: decisionPrompt(query, passages)},
		},
	}
	reply, err := c.llm.Complete(ctx, req)
	if err != nil {
		if c.cfg.FailOpen {
			log.Printf("classifier: decision failed, searching anyway: %v", err)
			return true, nil
		}
		return false, fmt.Errorf("search decision: %w", err)
	}
	return !isAffirmative(reply), nil
}

func decisionPrompt(query string, passages []retrieval.Passage) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nRetrieved context:\n")
	if len(passages) == 0 {
		b.WriteString("(none)")
	} else {
		n := len(passages)
		if n > previewPassages {
			n = previewPassages
		}
		for i := 0; i < n; i++ {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("- ")
			b.WriteString(truncate(passages[i].Text, previewChars))
		}
	}
	b.WriteString("\n\nIs the context sufficient to answer the question?")
	return b.String()
}

// isAffirmative accepts only replies that start with "yes", in any
// case. Anything else, including hedged prose, means search.
func isAffirmative(reply string) bool {
	trimmed := strings.TrimSpace(reply)
	trimmed = strings.Trim(trimmed, `"'.!`)
	return len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "yes")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
