package model

import "time"

// Context carries the business-document metadata attached to a message
// (which delivery, site and brand the conversation is about). The chat core
// treats these fields as opaque and only carries them to recipients.
type Context struct {
	Delivery string `json:"delivery,omitempty"`
	Site     string `json:"site,omitempty"`
	Brand    string `json:"brand,omitempty"`
}

// Message is an immutable chat message. Seq is assigned by the store on
// append and is the canonical delivery order within a room; it is never
// reused and never changes.
type Message struct {
	Seq        int64     `json:"seq"`
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	Context    Context   `json:"context"`
	CreatedAt  time.Time `json:"created_at"`
}
