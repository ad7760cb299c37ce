package model

import "time"

// RoomGrant allows a user to join a room. Rooms are keyed by the business
// document they discuss; grants are written by the ERP when a document is
// assigned, the chat service only reads them.
type RoomGrant struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	GrantedAt time.Time `json:"granted_at"`
}
