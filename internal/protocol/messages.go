package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies stream payload variants shared by the SSE and
// websocket transports.
type MessageType string

const (
	TypeClientAsk   MessageType = "client_ask"
	TypeAnswerDelta MessageType = "answer_delta"
	TypeAnswerEnd   MessageType = "answer_end"
	TypeSystemEvent MessageType = "system_event"
	TypeErrorEvent  MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientAsk is the inbound question on the websocket transport.
type ClientAsk struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Query     string      `json:"query"`
}

// AnswerDelta carries one streamed text chunk of the assistant answer.
type AnswerDelta struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	TextDelta string      `json:"text_delta"`
}

// AnswerEnd is the explicit end-of-stream marker for a successful turn.
type AnswerEnd struct {
	Type         MessageType `json:"type"`
	SessionID    string      `json:"session_id"`
	TurnID       string      `json:"turn_id"`
	SearchedWeb  bool        `json:"searched_web"`
	PassageCount int         `json:"passage_count"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

// ErrorEvent terminates a stream that failed or was aborted mid-answer.
type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id,omitempty"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientAsk:
		var msg ClientAsk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Query == "" {
			return nil, errors.New("invalid client_ask")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
