package retrieval

import (
	"context"
	"sort"
	"strings"
)

// MockRetriever serves an in-process corpus for local development and
// tests. Scoring is naive term overlap; good enough to make the
// orchestrator's branching observable without a real index.
type MockRetriever struct {
	corpus []Passage
}

// NewMockRetriever seeds the retriever with the given passages. A nil
// corpus gets a small built-in one so "auto" mode works out of the box.
func NewMockRetriever(corpus []Passage) *MockRetriever {
	if corpus == nil {
		corpus = []Passage{
			{Text: "Aivancity offers programs in artificial intelligence, business and society, including a Grande École program and executive education.", Metadata: map[string]string{"source": "builtin", "page": "1"}},
			{Text: "The Aivancity campus is located in Cachan, in the southern suburbs of Paris.", Metadata: map[string]string{"source": "builtin", "page": "2"}},
			{Text: "Aivancity admissions run on a rolling basis; applicants complete an online file and an interview.", Metadata: map[string]string{"source": "builtin", "page": "3"}},
		}
	}
	return &MockRetriever{corpus: corpus}
}

func (r *MockRetriever) Retrieve(_ context.Context, query string, k int) ([]Passage, error) {
	if k < 1 {
		k = 1
	}
	terms := strings.Fields(strings.ToLower(query))

	type scored struct {
		passage Passage
		score   int
		index   int
	}
	matches := make([]scored, 0, len(r.corpus))
	for i, p := range r.corpus {
		text := strings.ToLower(p.Text)
		score := 0
		for _, t := range terms {
			if len(t) < 3 {
				continue
			}
			if strings.Contains(text, t) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{passage: p, score: score, index: i})
		}
	}

	// Deterministic: score descending, corpus order as tie-break.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].index < matches[j].index
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	out := make([]Passage, 0, len(matches))
	for i, m := range matches {
		p := m.passage
		p.Rank = i
		out = append(out, p)
	}
	return out, nil
}

func (r *MockRetriever) Ready(context.Context) error {
	if len(r.corpus) == 0 {
		return ErrNotReady
	}
	return nil
}

func (r *MockRetriever) Close() error { return nil }
