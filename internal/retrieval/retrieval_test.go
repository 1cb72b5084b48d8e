package retrieval

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMockRetrieverRanksByOverlap(t *testing.T) {
	r := NewMockRetriever([]Passage{
		{Text: "robotics lab schedule"},
		{Text: "tuition fees and scholarships for the grande ecole program"},
		{Text: "campus tuition payment deadlines"},
	})

	passages, err := r.Retrieve(context.Background(), "tuition fees", 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("len(passages) = %d, want 2", len(passages))
	}
	if passages[0].Rank != 0 || passages[1].Rank != 1 {
		t.Fatalf("ranks = %d,%d, want 0,1", passages[0].Rank, passages[1].Rank)
	}
	if passages[0].Text != "tuition fees and scholarships for the grande ecole program" {
		t.Fatalf("top passage = %q", passages[0].Text)
	}
}

func TestMockRetrieverEmptyOnNoMatch(t *testing.T) {
	r := NewMockRetriever([]Passage{{Text: "admissions process"}})
	passages, err := r.Retrieve(context.Background(), "zzz qqq", 4)
	if err != nil {
		t.Fatalf("Retrieve() error = %v, want nil for no results", err)
	}
	if len(passages) != 0 {
		t.Fatalf("len(passages) = %d, want 0", len(passages))
	}
}

func TestMockRetrieverReady(t *testing.T) {
	if err := NewMockRetriever(nil).Ready(context.Background()); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}
	empty := NewMockRetriever([]Passage{})
	if err := empty.Ready(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Ready() error = %v, want ErrNotReady", err)
	}
}

func TestHTTPRetrieverAssignsRanks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"passages":[{"text":"a","metadata":{"source":"x"}},{"text":"b"}]}`))
	}))
	defer srv.Close()

	r := NewHTTPRetriever(srv.URL)
	passages, err := r.Retrieve(context.Background(), "q", 4)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("len(passages) = %d, want 2", len(passages))
	}
	if passages[0].Rank != 0 || passages[1].Rank != 1 {
		t.Fatalf("ranks = %d,%d, want 0,1", passages[0].Rank, passages[1].Rank)
	}
	if passages[0].Metadata["source"] != "x" {
		t.Fatalf("metadata = %v", passages[0].Metadata)
	}
}

func TestHTTPRetrieverErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewHTTPRetriever(srv.URL)
	if _, err := r.Retrieve(context.Background(), "q", 1); err == nil {
		t.Fatalf("Retrieve() expected error on 503")
	}
	if err := r.Ready(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Ready() error = %v, want ErrNotReady", err)
	}
}

func TestNewRetrieverModes(t *testing.T) {
	if _, err := NewRetriever(context.Background(), Config{Mode: "faiss"}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if _, err := NewRetriever(context.Background(), Config{Mode: "postgres"}); err == nil {
		t.Fatalf("expected error for postgres mode without DATABASE_URL")
	}
	r, err := NewRetriever(context.Background(), Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("NewRetriever(auto) error = %v", err)
	}
	if _, ok := r.(*MockRetriever); !ok {
		t.Fatalf("auto mode without config = %T, want *MockRetriever", r)
	}
}
