package models

import "time"

// WhiteboardSnapshot is the last durably saved canvas for a room. Draw and
// clear events are never persisted individually; a save overwrites the whole
// snapshot.
type WhiteboardSnapshot struct {
	RoomID     string    `json:"room_id"`
	Title      string    `json:"title"`
	CanvasData string    `json:"canvas_data"`
	SavedBy    string    `json:"saved_by"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DocumentRecord is a co-edited document. LockedBy is the cooperative
// single-writer marker; empty means unlocked.
type DocumentRecord struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	LockedBy  string    `json:"locked_by,omitempty"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notification is a directed message persisted for a single user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
