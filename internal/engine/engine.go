// Package engine orchestrates the per-question flow: retrieve, decide
// whether to search the web, assemble context, stream the answer, and
// commit the exchange to session history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lbianche/minerva/internal/genai"
	"github.com/lbianche/minerva/internal/observability"
	"github.com/lbianche/minerva/internal/retrieval"
	"github.com/lbianche/minerva/internal/session"
	"github.com/lbianche/minerva/internal/websearch"
)

var (
	ErrEmptyQuery     = errors.New("empty query")
	ErrEmptySessionID = errors.New("empty session id")
)

// EventType discriminates stream events.
type EventType string

const (
	EventDelta EventType = "delta"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is one item on the stream returned by Handle. A stream is a
// sequence of deltas closed by exactly one done or error event.
type Event struct {
	Type         EventType
	TurnID       string
	Delta        string
	SearchedWeb  bool
	PassageCount int
	Err          error
}

// SearchDecider reports whether retrieved context suffices or a web
// search should supplement it.
type SearchDecider interface {
	NeedsSearch(ctx context.Context, query string, passages []retrieval.Passage) (bool, error)
}

type Config struct {
	Institution       string
	RetrievalK        int
	RetrievalTimeout  time.Duration
	SearchMaxResults  int
	SearchTimeout     time.Duration
	GenerationTimeout time.Duration
	HistoryLimit      int
	StreamBuffer      int
}

func (c *Config) applyDefaults() {
	if c.RetrievalK <= 0 {
		c.RetrievalK = 4
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = 5 * time.Second
	}
	if c.SearchMaxResults <= 0 {
		c.SearchMaxResults = 5
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 8 * time.Second
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 90 * time.Second
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = 64
	}
}

// Engine wires the collaborators together. All collaborator calls run
// outside any session lock; the store guards its own state.
type Engine struct {
	sessions  *session.Store
	retriever retrieval.Retriever
	decider   SearchDecider
	searcher  websearch.Client
	llm       genai.Client
	metrics   *observability.Metrics
	cfg       Config
}

func New(
	sessions *session.Store,
	retriever retrieval.Retriever,
	decider SearchDecider,
	searcher websearch.Client,
	llm genai.Client,
	metrics *observability.Metrics,
	cfg Config,
) *Engine {
	cfg.applyDefaults()
	return &Engine{
		sessions:  sessions,
		retriever: retriever,
		decider:   decider,
		searcher:  searcher,
		llm:       llm,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Handle runs one question through the full flow and returns a stream
// of events. The channel is closed after exactly one terminal event.
// The user turn is recorded up front; the assistant turn is recorded
// only when the stream finishes cleanly.
func (e *Engine) Handle(ctx context.Context, query, sessionID string) <-chan Event {
	events := make(chan Event, e.cfg.StreamBuffer)

	if query == "" || allSpace(query) {
		events <- Event{Type: EventError, Err: ErrEmptyQuery}
		close(events)
		return events
	}
	if sessionID == "" {
		events <- Event{Type: EventError, Err: ErrEmptySessionID}
		close(events)
		return events
	}

	r := &record{
		sessionID: sessionID,
		turnID:    uuid.NewString(),
		query:     query,
	}

	history := e.sessions.History(sessionID)
	e.sessions.Append(sessionID, session.RoleUser, query)

	go e.run(ctx, r, history, events)
	return events
}

func (e *Engine) run(ctx context.Context, r *record, history []session.Turn, events chan<- Event) {
	defer close(events)

	if e.metrics != nil {
		e.metrics.ActiveStreams.Inc()
		defer e.metrics.ActiveStreams.Dec()
	}
	startedAt := time.Now()

	state := nextState(StateIdle, r)
	for !state.Terminal() {
		var err error
		switch state {
		case StateRetrieving:
			e.retrieve(ctx, r)
		case StateClassifying:
			e.classify(ctx, r)
		case StateSearching:
			e.searchWeb(ctx, r)
		case StateSkipped:
			// nothing to do
		case StateAssembling:
			r.context = Assemble(r.passages, r.search)
		case StateGenerating:
			err = e.generate(ctx, r, history, events, startedAt)
		case StateStreaming:
			e.commit(r)
		}
		if err != nil {
			e.fail(ctx, r, events, err)
			e.observeStage("turn_total", startedAt)
			return
		}
		state = nextState(state, r)
	}

	e.countOutcome("ok")
	e.observeStage("turn_total", startedAt)
	e.send(ctx, events, Event{
		Type:         EventDone,
		TurnID:       r.turnID,
		SearchedWeb:  r.search.Attempted,
		PassageCount: len(r.passages),
	})
}

// retrieve fetches passages. Failure degrades to an empty context
// instead of killing the turn: the model can still answer from the
// question and history.
func (e *Engine) retrieve(ctx context.Context, r *record) {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RetrievalTimeout)
	defer cancel()

	started := time.Now()
	passages, err := e.retriever.Retrieve(rctx, r.query, e.cfg.RetrievalK)
	e.observeStage("retrieve", started)
	if err != nil {
		log.Printf("engine: retrieval failed for session %s: %v", r.sessionID, err)
		e.countProviderError("retrieval", err)
		e.indicate("retrieval_degraded")
		r.passages = nil
		return
	}
	r.passages = passages
}

func (e *Engine) classify(ctx context.Context, r *record) {
	started := time.Now()
	need, err := e.decider.NeedsSearch(ctx, r.query, r.passages)
	e.observeStage("classify", started)
	if err != nil {
		// Fail-open handling lives in the classifier; getting an
		// error here means it was configured fail-closed.
		log.Printf("engine: search decision failed for session %s: %v", r.sessionID, err)
		e.countProviderError("classifier", err)
		need = false
	}
	r.needSearch = need
	decision := "skip"
	if need {
		decision = "search"
	}
	if e.metrics != nil {
		e.metrics.SearchDecisions.WithLabelValues(decision).Inc()
	}
}

func (e *Engine) searchWeb(ctx context.Context, r *record) {
	r.search.Attempted = true
	sctx, cancel := context.WithTimeout(ctx, e.cfg.SearchTimeout)
	defer cancel()

	started := time.Now()
	results, err := e.searcher.Search(sctx, r.query, e.cfg.SearchMaxResults)
	e.observeStage("search", started)
	if err != nil {
		log.Printf("engine: web search failed for session %s: %v", r.sessionID, err)
		e.countProviderError("websearch", err)
		e.indicate("search_degraded")
		r.search.Failed = true
		return
	}
	r.search.Results = results
}

func (e *Engine) generate(ctx context.Context, r *record, history []session.Turn, events chan<- Event, startedAt time.Time) error {
	gctx, cancel := context.WithTimeout(ctx, e.cfg.GenerationTimeout)
	defer cancel()

	req := genai.Request{
		Messages: buildMessages(e.cfg.Institution, history, e.cfg.HistoryLimit, r.query, r.context),
	}

	genStarted := time.Now()
	res, err := e.llm.Stream(gctx, req, func(delta string) error {
		if !r.deltaSeen {
			r.deltaSeen = true
			if e.metrics != nil {
				e.metrics.ObserveFirstTokenLatency(time.Since(startedAt))
			}
			e.observeStage("first_token", startedAt)
		}
		if !e.send(ctx, events, Event{Type: EventDelta, TurnID: r.turnID, Delta: delta}) {
			return ctx.Err()
		}
		return nil
	})
	e.observeStage("generate", genStarted)
	if err != nil {
		e.countProviderError("genai", err)
		return fmt.Errorf("generate answer: %w", err)
	}
	r.answer = res.Text
	return nil
}

// commit records the assistant turn. This only runs after a clean
// stream end, so an aborted answer never enters history.
func (e *Engine) commit(r *record) {
	e.sessions.Append(r.sessionID, session.RoleAssistant, r.answer)
}

func (e *Engine) fail(ctx context.Context, r *record, events chan<- Event, err error) {
	outcome := "error"
	if errors.Is(err, context.Canceled) {
		outcome = "canceled"
	}
	e.countOutcome(outcome)
	e.send(ctx, events, Event{Type: EventError, TurnID: r.turnID, Err: err})
}

// send delivers an event unless the caller has gone away.
func (e *Engine) send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// ClearHistory drops a session's turns but keeps the session usable.
func (e *Engine) ClearHistory(sessionID string) {
	e.sessions.Clear(sessionID)
}

// EvictSession removes the session entirely.
func (e *Engine) EvictSession(sessionID string) {
	e.sessions.Evict(sessionID)
}

// History exposes the committed turns for a session.
func (e *Engine) History(sessionID string) []session.Turn {
	return e.sessions.History(sessionID)
}

func (e *Engine) countOutcome(outcome string) {
	if e.metrics != nil {
		e.metrics.RequestsTotal.WithLabelValues(outcome).Inc()
	}
}

func (e *Engine) countProviderError(provider string, err error) {
	if e.metrics == nil {
		return
	}
	code := "error"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = "timeout"
	case errors.Is(err, context.Canceled):
		code = "canceled"
	}
	e.metrics.ProviderErrors.WithLabelValues(provider, code).Inc()
}

func (e *Engine) observeStage(stage string, since time.Time) {
	if e.metrics != nil {
		e.metrics.ObserveStage(stage, time.Since(since))
	}
}

func (e *Engine) indicate(name string) {
	if e.metrics != nil {
		e.metrics.ObserveIndicator(name)
	}
}

func allSpace(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
