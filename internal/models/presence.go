package models

import "time"

// UserStatus is the self-reported availability of a participant.
type UserStatus string

const (
	StatusDefault      UserStatus = "default"
	StatusBusy         UserStatus = "busy"
	StatusAway         UserStatus = "away"
	StatusDoNotDisturb UserStatus = "do-not-disturb"
)

// CursorPosition is a pointer location on the shared surface.
type CursorPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PresenceEntry is the per-user ephemeral state tracked for a room.
// Durability comes from the REST snapshot, not this struct.
type PresenceEntry struct {
	UserID   string          `json:"user_id"`
	UserName string          `json:"user_name"`
	Online   bool            `json:"online"`
	Status   UserStatus      `json:"status,omitempty"`
	Activity string          `json:"activity,omitempty"`
	LastSeen time.Time       `json:"last_seen"`
	Cursor   *CursorPosition `json:"cursor,omitempty"`
	IsTyping bool            `json:"is_typing"`
}
