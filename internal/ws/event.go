package ws

import (
	"time"

	"github.com/salespulse/docchat/internal/model"
)

type EventType string

const (
	// client -> server
	EventJoin  EventType = "join"
	EventLeave EventType = "leave"
	EventSend  EventType = "send"

	// server -> client
	EventMessage         EventType = "message"
	EventInitialMessages EventType = "initial_messages"
	EventStatus          EventType = "status"
	EventMention         EventType = "mention"
	EventCountChanged    EventType = "count_changed"
	EventError           EventType = "error"
)

// Error codes carried in ErrorPayload. A failure is only ever reported to
// the connection that caused it.
const (
	ErrCodeValidation  = "validation_failure"
	ErrCodePersistence = "persistence_failure"
	ErrCodeInternal    = "internal_error"
)

// IncomingEvent is what the client sends to the server.
type IncomingEvent struct {
	Type    EventType     `json:"type"`
	Room    string        `json:"room,omitempty"`
	Body    string        `json:"body,omitempty"`
	Context model.Context `json:"context,omitempty"`
}

// OutgoingEvent is what the server sends to the client. Payload uses typed
// structs to keep the hot path off map[string]any.
type OutgoingEvent struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// MessagePayload is the per-recipient view of a broadcast message. The
// username/msg field names are the wire contract expected by the frontend.
// IsOwnMessage is computed for each recipient and never persisted, so the
// payload never reveals which other recipients are the author.
type MessagePayload struct {
	ID           string        `json:"id"`
	Seq          int64         `json:"seq"`
	Room         string        `json:"room"`
	Username     string        `json:"username"`
	Msg          string        `json:"msg"`
	Context      model.Context `json:"context,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
	IsOwnMessage bool          `json:"is_own_message"`
}

// StatusPayload announces membership changes to a room.
type StatusPayload struct {
	Room string `json:"room"`
	Msg  string `json:"msg"`
}

// MentionPayload is a directed alert to a single user.
type MentionPayload struct {
	Room string `json:"room"`
	Msg  string `json:"msg"`
}

// CountChangedPayload refreshes one unseen badge. A full repaint after
// reconnect goes through GET /api/unseen instead.
type CountChangedPayload struct {
	Room  string `json:"room"`
	Count int64  `json:"count"`
}

// ErrorPayload is sent only to the connection whose request failed.
type ErrorPayload struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func messagePayload(m *model.Message, recipientUserID string) MessagePayload {
	return MessagePayload{
		ID:           m.ID,
		Seq:          m.Seq,
		Room:         m.RoomID,
		Username:     m.AuthorName,
		Msg:          m.Body,
		Context:      m.Context,
		Timestamp:    m.CreatedAt,
		IsOwnMessage: m.AuthorID == recipientUserID,
	}
}
