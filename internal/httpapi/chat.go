package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lbianche/minerva/internal/engine"
	"github.com/lbianche/minerva/internal/protocol"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// handleChatSSE streams one answer as server-sent events. Each event
// carries a protocol envelope; the stream always ends with answer_end
// or error_event.
func (s *Server) handleChatSSE(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session_id is required")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "empty_query", "query is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer cannot stream")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := s.engine.Handle(r.Context(), req.Query, req.SessionID)
	for ev := range events {
		payload := envelopeFor(req.SessionID, ev)
		data, err := json.Marshal(payload)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}
}

// handleChatWS serves the same stream over a websocket. The client
// sends client_ask messages; asks on one connection run sequentially.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan protocol.ClientAsk, 16)
	outbound := make(chan any, 256)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case ask, ok := <-inbound:
				if !ok {
					return
				}
				s.streamAnswer(ctx, ask, outbound)
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			}
			select {
			case outbound <- errEvent:
			default:
				// Keep websocket writes single-threaded; drop when
				// the outbound queue is saturated.
			}
			continue
		}
		ask, ok := parsed.(protocol.ClientAsk)
		if !ok {
			continue
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- ask:
		}
	}

	cancel()
	close(inbound)
	<-workerDone
	<-writerDone
}

func (s *Server) streamAnswer(ctx context.Context, ask protocol.ClientAsk, outbound chan<- any) {
	events := s.engine.Handle(ctx, ask.Query, ask.SessionID)
	for ev := range events {
		select {
		case <-ctx.Done():
			// Drain so the engine goroutine can finish.
			for range events {
			}
			return
		case outbound <- envelopeFor(ask.SessionID, ev):
		}
	}
}

// envelopeFor maps engine events onto the wire protocol.
func envelopeFor(sessionID string, ev engine.Event) any {
	switch ev.Type {
	case engine.EventDelta:
		return protocol.AnswerDelta{
			Type:      protocol.TypeAnswerDelta,
			SessionID: sessionID,
			TurnID:    ev.TurnID,
			TextDelta: ev.Delta,
		}
	case engine.EventDone:
		return protocol.AnswerEnd{
			Type:         protocol.TypeAnswerEnd,
			SessionID:    sessionID,
			TurnID:       ev.TurnID,
			SearchedWeb:  ev.SearchedWeb,
			PassageCount: ev.PassageCount,
		}
	default:
		return protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sessionID,
			TurnID:    ev.TurnID,
			Code:      errorCode(ev.Err),
			Detail:    errorDetail(ev.Err),
		}
	}
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return "internal"
	case errors.Is(err, engine.ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, engine.ErrEmptySessionID):
		return "missing_session_id"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "generation_failed"
	}
}

func errorDetail(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
