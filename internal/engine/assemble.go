package engine

import (
	"fmt"
	"strings"

	"github.com/lbianche/minerva/internal/genai"
	"github.com/lbianche/minerva/internal/retrieval"
	"github.com/lbianche/minerva/internal/session"
	"github.com/lbianche/minerva/internal/websearch"
)

const webSearchLabel = "Additional information from web search:"

// SearchOutcome records what happened to the optional web search so
// the assembler can tell "nothing found" apart from "search broke".
type SearchOutcome struct {
	Attempted bool
	Failed    bool
	Results   []websearch.Result
}

// Assemble joins retrieved passages and search results into the
// context block handed to the model. It is a pure function of its
// inputs.
func Assemble(passages []retrieval.Passage, search SearchOutcome) string {
	var sections []string

	if len(passages) > 0 {
		texts := make([]string, 0, len(passages))
		for _, p := range passages {
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			texts = append(texts, p.Text)
		}
		if len(texts) > 0 {
			sections = append(sections, strings.Join(texts, "\n\n"))
		}
	}

	if search.Attempted {
		var b strings.Builder
		b.WriteString(webSearchLabel)
		switch {
		case search.Failed:
			b.WriteString("\n(web search was unavailable; recent information may be missing)")
		case len(search.Results) == 0:
			b.WriteString("\n(web search returned no results)")
		default:
			for _, r := range search.Results {
				b.WriteString("\n- ")
				b.WriteString(r.Title)
				if r.Snippet != "" {
					b.WriteString(": ")
					b.WriteString(r.Snippet)
				}
				if r.URL != "" {
					b.WriteString(" (")
					b.WriteString(r.URL)
					b.WriteString(")")
				}
			}
		}
		sections = append(sections, b.String())
	}

	return strings.Join(sections, "\n\n")
}

func systemPrompt(institution string) string {
	return fmt.Sprintf("You are an AI assistant for %s. "+
		"Your role is to provide accurate and helpful information about the school based on the retrieved context. "+
		"Always be professional and maintain a helpful tone. "+
		"If you don't know something or can't find enough information, say so.", institution)
}

// buildMessages turns the session history and the current question
// into a model request. The context block is injected once, on the
// final user message, never into the stored history.
func buildMessages(institution string, history []session.Turn, limit int, query, contextBlock string) []genai.Message {
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	messages := make([]genai.Message, 0, len(history)+2)
	messages = append(messages, genai.Message{Role: genai.RoleSystem, Text: systemPrompt(institution)})
	for _, turn := range history {
		role := genai.RoleUser
		if turn.Role == session.RoleAssistant {
			role = genai.RoleAssistant
		}
		messages = append(messages, genai.Message{Role: role, Text: turn.Text})
	}

	final := query
	if contextBlock != "" {
		final = "Context:\n" + contextBlock + "\n\nQuestion: " + query
	}
	messages = append(messages, genai.Message{Role: genai.RoleUser, Text: final})
	return messages
}
