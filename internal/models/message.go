package models

import "time"

// Message types stored alongside chat content.
const (
	MessageTypeText   = "TEXT"
	MessageTypeFile   = "FILE"
	MessageTypeSystem = "SYSTEM"
)

// ChatMessage represents a persisted chat message. Ordering is assigned by
// the hub at arrival time, not by the sender.
type ChatMessage struct {
	ID          string       `json:"id"`
	RoomID      string       `json:"room_id"`
	SenderID    string       `json:"sender_id"`
	SenderName  string       `json:"sender_name"`
	Content     string       `json:"content"`
	Type        string       `json:"type"`
	ReplyToID   string       `json:"reply_to_id,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Attachment is file metadata carried on a message.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
	Mime string `json:"mime,omitempty"`
}
