package eval

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lbianche/minerva/internal/genai"
	"github.com/lbianche/minerva/internal/retrieval"
)

// scriptedLLM distinguishes judge prompts from answer prompts so the
// pipeline flow is observable.
type scriptedLLM struct {
	prompts []string
}

func (s *scriptedLLM) Stream(ctx context.Context, req genai.Request, onDelta genai.DeltaHandler) (genai.Response, error) {
	text, err := s.Complete(ctx, req)
	return genai.Response{Text: text}, err
}

func (s *scriptedLLM) Complete(_ context.Context, req genai.Request) (string, error) {
	prompt := req.LastUserText()
	s.prompts = append(s.prompts, prompt)
	switch {
	case strings.Contains(prompt, "relevance of retrieved documents"):
		return "Document 1: 4/5, mostly relevant.", nil
	case strings.Contains(prompt, "quality of an answer"):
		return "Accuracy 4, Completeness 3, Relevance 5, Clarity 4.", nil
	default:
		return "Aivancity offers AI-focused programs.", nil
	}
}

func TestRunProducesReport(t *testing.T) {
	llm := &scriptedLLM{}
	e := New(retrieval.NewMockRetriever(nil), llm, "Aivancity", 4)

	cases := []TestCase{
		{Question: "What are the main programs offered at Aivancity?", ExpectedAnswer: "programs"},
		{Question: "What is the campus location of Aivancity?"},
	}
	report, err := e.Run(context.Background(), cases)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.NumCases != 2 || len(report.Cases) != 2 {
		t.Fatalf("report cases = %d/%d, want 2/2", report.NumCases, len(report.Cases))
	}

	first := report.Cases[0]
	if first.Case != 1 {
		t.Errorf("Case = %d, want 1", first.Case)
	}
	if first.Retrieval.NumDocs == 0 {
		t.Error("expected retrieved documents for a corpus question")
	}
	if !strings.Contains(first.Retrieval.Assessment, "4/5") {
		t.Errorf("relevance assessment = %q", first.Retrieval.Assessment)
	}
	if first.Answer.Answer != "Aivancity offers AI-focused programs." {
		t.Errorf("answer = %q", first.Answer.Answer)
	}
	if !strings.Contains(first.Answer.Assessment, "Accuracy") {
		t.Errorf("quality assessment = %q", first.Answer.Assessment)
	}

	// Three model calls per case: relevance, answer, quality.
	if len(llm.prompts) != 6 {
		t.Fatalf("model calls = %d, want 6", len(llm.prompts))
	}
}

func TestAnswerPromptCarriesContext(t *testing.T) {
	llm := &scriptedLLM{}
	e := New(retrieval.NewMockRetriever(nil), llm, "Aivancity", 4)

	if _, err := e.Run(context.Background(), []TestCase{{Question: "What programs does Aivancity offer?"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var answerPrompt string
	for _, p := range llm.prompts {
		if strings.Contains(p, "Answer factually") {
			answerPrompt = p
		}
	}
	if answerPrompt == "" {
		t.Fatal("answer prompt not issued")
	}
	if !strings.Contains(answerPrompt, "Context:\n") {
		t.Errorf("context block missing:\n%s", answerPrompt)
	}
	if !strings.Contains(answerPrompt, "Aivancity") {
		t.Errorf("institution missing:\n%s", answerPrompt)
	}
}

func TestLoadCases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cases.json")
	payload := []TestCase{{Question: "q1"}, {Question: "q2", ExpectedAnswer: "a2"}}
	data, _ := json.Marshal(payload)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cases, err := LoadCases(path)
	if err != nil {
		t.Fatalf("LoadCases: %v", err)
	}
	if len(cases) != 2 || cases[1].ExpectedAnswer != "a2" {
		t.Fatalf("cases = %#v", cases)
	}

	if _, err := LoadCases(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file should error")
	}

	empty := filepath.Join(dir, "empty.json")
	os.WriteFile(empty, []byte("[]"), 0o644)
	if _, err := LoadCases(empty); err == nil {
		t.Error("empty case list should error")
	}
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	report := Report{NumCases: 1, Institution: "Aivancity"}
	if err := WriteReport(path, report); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if decoded.NumCases != 1 {
		t.Errorf("NumCases = %d, want 1", decoded.NumCases)
	}
}
