// Package eval scores the retrieval and answer path offline with an
// LLM judge. It drives the same gateways as the serving path so the
// numbers describe what users actually get.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lbianche/minerva/internal/genai"
	"github.com/lbianche/minerva/internal/retrieval"
)

const relevancePromptTemplate = "You are a strict evaluator assessing the relevance of retrieved documents.\n" +
	"Question: %s\n\n" +
	"Retrieved documents:\n%s\n\n" +
	"Rate the relevance of these documents to the question on a scale of 1-5.\n" +
	"1: Completely irrelevant or contains no useful information\n" +
	"2: Mostly irrelevant, with only minor relevant points\n" +
	"3: Partially relevant, contains some useful information\n" +
	"4: Mostly relevant, with minor gaps or irrelevant parts\n" +
	"5: Perfectly relevant, contains all necessary information\n\n" +
	"For each document, provide:\n" +
	"1. A rating (1-5)\n" +
	"2. A brief explanation of why it received that rating\n" +
	"3. What information is missing or irrelevant\n\n" +
	"Be critical and specific in your assessment."

const answerQualityPromptTemplate = "You are a strict evaluator assessing the quality of an answer.\n" +
	"Question: %s\n\n" +
	"Answer: %s\n\n" +
	"Rate the answer on the following criteria (1-5):\n" +
	"1. Accuracy: Is the information correct and verifiable?\n" +
	"2. Completeness: Does it fully address the question?\n" +
	"3. Relevance: Is it focused on the question?\n" +
	"4. Clarity: Is it well-explained?\n\n" +
	"For each criterion:\n" +
	"1. Provide a rating (1-5)\n" +
	"2. Explain why it received that rating\n" +
	"3. Suggest specific improvements\n\n" +
	"Be critical and specific in your assessment."

const answerPromptTemplate = "You are an AI assistant for %s. " +
	"Answer factually; if unsure, say so. And be friendly.\n\n" +
	"Context:\n%s\n\n" +
	"Question: %s\n\n" +
	"Answer:"

type TestCase struct {
	Question       string `json:"question"`
	ExpectedAnswer string `json:"expected_answer,omitempty"`
}

type RetrievalEval struct {
	NumDocs    int      `json:"num_docs_retrieved"`
	Assessment string   `json:"relevance_assessment"`
	Documents  []string `json:"documents"`
}

type AnswerEval struct {
	Answer     string `json:"answer"`
	Assessment string `json:"quality_assessment"`
}

type CaseResult struct {
	Case           int           `json:"test_case"`
	Question       string        `json:"question"`
	ExpectedAnswer string        `json:"expected_answer,omitempty"`
	Retrieval      RetrievalEval `json:"retrieval_evaluation"`
	Answer         AnswerEval    `json:"answer_evaluation"`
}

type Report struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Institution string       `json:"institution"`
	NumCases    int          `json:"num_test_cases"`
	Cases       []CaseResult `json:"results"`
}

type Evaluator struct {
	retriever   retrieval.Retriever
	llm         genai.Client
	institution string
	k           int
}

func New(retriever retrieval.Retriever, llm genai.Client, institution string, k int) *Evaluator {
	if k <= 0 {
		k = 4
	}
	return &Evaluator{retriever: retriever, llm: llm, institution: institution, k: k}
}

// EvaluateRetrieval fetches passages for the question and asks the
// judge to rate them.
func (e *Evaluator) EvaluateRetrieval(ctx context.Context, question string) (RetrievalEval, error) {
	passages, err := e.retriever.Retrieve(ctx, question, e.k)
	if err != nil {
		return RetrievalEval{}, fmt.Errorf("retrieve for evaluation: %w", err)
	}

	docs := make([]string, 0, len(passages))
	var formatted strings.Builder
	for i, p := range passages {
		docs = append(docs, p.Text)
		if i > 0 {
			formatted.WriteString("\n\n")
		}
		fmt.Fprintf(&formatted, "Document %d:\n%s", i+1, truncate(p.Text, 500))
	}

	assessment, err := e.judge(ctx, fmt.Sprintf(relevancePromptTemplate, question, formatted.String()))
	if err != nil {
		return RetrievalEval{}, err
	}
	return RetrievalEval{
		NumDocs:    len(passages),
		Assessment: assessment,
		Documents:  docs,
	}, nil
}

// EvaluateAnswer asks the judge to rate an answer on the four quality
// criteria.
func (e *Evaluator) EvaluateAnswer(ctx context.Context, question, answer string) (AnswerEval, error) {
	assessment, err := e.judge(ctx, fmt.Sprintf(answerQualityPromptTemplate, question, answer))
	if err != nil {
		return AnswerEval{}, err
	}
	return AnswerEval{Answer: answer, Assessment: assessment}, nil
}

// Run executes the full pipeline for every test case: retrieve, rate
// the passages, answer over them, rate the answer.
func (e *Evaluator) Run(ctx context.Context, cases []TestCase) (Report, error) {
	report := Report{
		GeneratedAt: time.Now().UTC(),
		Institution: e.institution,
		NumCases:    len(cases),
	}

	for i, tc := range cases {
		retr, err := e.EvaluateRetrieval(ctx, tc.Question)
		if err != nil {
			return Report{}, fmt.Errorf("case %d: %w", i+1, err)
		}

		answer, err := e.answer(ctx, tc.Question, strings.Join(retr.Documents, "\n\n"))
		if err != nil {
			return Report{}, fmt.Errorf("case %d: %w", i+1, err)
		}

		ansEval, err := e.EvaluateAnswer(ctx, tc.Question, answer)
		if err != nil {
			return Report{}, fmt.Errorf("case %d: %w", i+1, err)
		}

		report.Cases = append(report.Cases, CaseResult{
			Case:           i + 1,
			Question:       tc.Question,
			ExpectedAnswer: tc.ExpectedAnswer,
			Retrieval:      retr,
			Answer:         ansEval,
		})
	}
	return report, nil
}

func (e *Evaluator) answer(ctx context.Context, question, contextBlock string) (string, error) {
	prompt := fmt.Sprintf(answerPromptTemplate, e.institution, contextBlock, question)
	text, err := e.llm.Complete(ctx, genai.Request{
		Messages: []genai.Message{{Role: genai.RoleUser, Text: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("generate evaluation answer: %w", err)
	}
	return text, nil
}

func (e *Evaluator) judge(ctx context.Context, prompt string) (string, error) {
	text, err := e.llm.Complete(ctx, genai.Request{
		Messages: []genai.Message{{Role: genai.RoleUser, Text: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("judge call: %w", err)
	}
	return text, nil
}

// LoadCases reads a JSON array of test cases.
func LoadCases(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test cases: %w", err)
	}
	var cases []TestCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("decode test cases: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no test cases in %s", path)
	}
	return cases, nil
}

// DefaultCases is the built-in question set used when no file is given.
func DefaultCases() []TestCase {
	return []TestCase{
		{
			Question:       "What are the main programs offered at Aivancity?",
			ExpectedAnswer: "Aivancity offers various programs in technology, business, and society.",
		},
		{
			Question:       "How can I apply to Aivancity?",
			ExpectedAnswer: "Information about the application process at Aivancity.",
		},
		{
			Question:       "What is the campus location of Aivancity?",
			ExpectedAnswer: "Details about Aivancity's campus location.",
		},
	}
}

// WriteReport writes the report as indented JSON.
func WriteReport(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
