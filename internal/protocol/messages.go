package protocol

import (
	"fmt"

	"github.com/consultly/collab/internal/models"
	"github.com/goccy/go-json"
)

// MessageType identifies the type of a channel event.
type MessageType string

const (
	// Client -> hub
	TypeJoinRoom         MessageType = "join-room"
	TypeLeaveRoom        MessageType = "leave-room"
	TypeSendMessage      MessageType = "send-message"
	TypeTypingStart      MessageType = "typing-start"
	TypeTypingStop       MessageType = "typing-stop"
	TypeWhiteboardDraw   MessageType = "whiteboard-draw"
	TypeWhiteboardClear  MessageType = "whiteboard-clear"
	TypeWhiteboardSave   MessageType = "whiteboard-save"
	TypeDocumentEdit     MessageType = "document-edit"
	TypeDocumentCursor   MessageType = "document-cursor"
	TypeDocumentSave     MessageType = "document-save"
	TypeDocumentLock     MessageType = "document-lock"
	TypeDocumentUnlock   MessageType = "document-unlock"
	TypeCursorMove       MessageType = "cursor-move"
	TypeUserStatus       MessageType = "user-status"
	TypeFileShare        MessageType = "file-share"
	TypeNotificationSend MessageType = "notification-send"

	// Hub -> client
	TypeRoomJoined       MessageType = "room-joined"
	TypeUserJoined       MessageType = "user-joined"
	TypeUserLeft         MessageType = "user-left"
	TypeNewMessage       MessageType = "new-message"
	TypeWhiteboardSaved  MessageType = "whiteboard-saved"
	TypeDocumentSaved    MessageType = "document-saved"
	TypeDocumentLocked   MessageType = "document-locked"
	TypeDocumentUnlocked MessageType = "document-unlocked"
	TypeNotification     MessageType = "notification"
	TypeError            MessageType = "error"
)

// Envelope wraps every channel event with a type tag.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Payload is the closed union of channel event payloads. Exactly one
// concrete type exists per MessageType; Decode is the only constructor
// for inbound payloads, so a type switch over Payload covers the whole
// protocol.
type Payload interface {
	EventType() MessageType
}

// Sender identifies the originating participant on relayed events. The hub
// stamps these fields; values supplied by a client are overwritten.
type Sender struct {
	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

// JoinRoom asks the hub to add this connection to a room.
type JoinRoom struct {
	RoomID string `json:"room_id"`
}

// LeaveRoom is the fire-and-forget counterpart of JoinRoom.
type LeaveRoom struct {
	RoomID string `json:"room_id"`
}

// RoomMember is one entry of the membership list sent with RoomJoined.
type RoomMember struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// RoomJoined acknowledges a join and carries the current member list.
type RoomJoined struct {
	RoomID  string       `json:"room_id"`
	Members []RoomMember `json:"members"`
}

// UserJoined announces a new room member to existing members.
type UserJoined struct {
	Sender
}

// UserLeft announces a departed member, including one dropped by the
// transport without a clean leave.
type UserLeft struct {
	Sender
}

// SendMessage carries an outbound chat message.
type SendMessage struct {
	RoomID    string `json:"room_id"`
	Content   string `json:"content"`
	Type      string `json:"type,omitempty"`
	ReplyToID string `json:"reply_to_id,omitempty"`
}

// NewMessage relays a persisted chat message to the room.
type NewMessage struct {
	Message models.ChatMessage `json:"message"`
}

// TypingStart signals the first keystroke. Client to hub it names the room;
// relayed to peers it names the typist.
type TypingStart struct {
	RoomID string `json:"room_id,omitempty"`
	Sender
}

// TypingStop signals the end of typing.
type TypingStop struct {
	RoomID string `json:"room_id,omitempty"`
	Sender
}

// CursorMove broadcasts a pointer position.
type CursorMove struct {
	RoomID string  `json:"room_id,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Sender
}

// UserStatus broadcasts a self-reported availability change.
type UserStatus struct {
	RoomID string            `json:"room_id,omitempty"`
	Status models.UserStatus `json:"status"`
	Sender
}

// WhiteboardDraw is an ephemeral stroke broadcast. It never implies a save.
type WhiteboardDraw struct {
	RoomID      string          `json:"room_id,omitempty"`
	DrawingData json.RawMessage `json:"drawing_data"`
	Sender
}

// WhiteboardClear wipes local rendering state on every member.
type WhiteboardClear struct {
	RoomID string `json:"room_id,omitempty"`
	Sender
}

// WhiteboardSave asks the hub to persist a full canvas snapshot.
type WhiteboardSave struct {
	RoomID     string `json:"room_id"`
	Title      string `json:"title,omitempty"`
	CanvasData string `json:"canvas_data"`
}

// WhiteboardSaved acknowledges a whiteboard save.
type WhiteboardSaved struct{}

// DocumentEdit broadcasts an opaque edit operation. Consumers apply it
// directly; concurrent overlapping edits last-applied-wins.
type DocumentEdit struct {
	RoomID     string          `json:"room_id,omitempty"`
	DocumentID string          `json:"document_id"`
	Operation  json.RawMessage `json:"operation"`
	Sender
}

// DocumentCursor broadcasts an in-document cursor position.
type DocumentCursor struct {
	RoomID     string          `json:"room_id,omitempty"`
	DocumentID string          `json:"document_id"`
	Cursor     json.RawMessage `json:"cursor"`
	Sender
}

// DocumentSave asks the hub to persist document content.
type DocumentSave struct {
	RoomID     string `json:"room_id"`
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
}

// DocumentSaved acknowledges a document save.
type DocumentSaved struct{}

// DocumentLock requests exclusive write intent on a document.
type DocumentLock struct {
	RoomID     string `json:"room_id"`
	DocumentID string `json:"document_id"`
}

// DocumentUnlock releases a held lock.
type DocumentUnlock struct {
	RoomID     string `json:"room_id"`
	DocumentID string `json:"document_id"`
}

// DocumentLocked acknowledges a lock grant and announces the owner.
type DocumentLocked struct {
	DocumentID string `json:"document_id"`
	Sender
}

// DocumentUnlocked announces a released lock.
type DocumentUnlocked struct {
	DocumentID string `json:"document_id"`
	Sender
}

// FileShare broadcasts shared-file metadata to the room.
type FileShare struct {
	RoomID string            `json:"room_id,omitempty"`
	File   models.Attachment `json:"file"`
	Sender
}

// NotificationSend asks the hub to persist and deliver a directed
// notification. It is user-scoped, not room-scoped.
type NotificationSend struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

// NotificationEvent delivers a persisted notification to its target user.
type NotificationEvent struct {
	Notification models.Notification `json:"notification"`
}

// ErrorPayload is sent by the hub when an operation fails. It settles
// whichever acknowledged operation is pending on the client.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeNotInRoom    = "not_in_room"
	ErrCodeLocked       = "locked"
	ErrCodeInvalidMsg   = "invalid_message"
	ErrCodeInternal     = "internal_error"
)

func (JoinRoom) EventType() MessageType          { return TypeJoinRoom }
func (LeaveRoom) EventType() MessageType         { return TypeLeaveRoom }
func (RoomJoined) EventType() MessageType        { return TypeRoomJoined }
func (UserJoined) EventType() MessageType        { return TypeUserJoined }
func (UserLeft) EventType() MessageType          { return TypeUserLeft }
func (SendMessage) EventType() MessageType       { return TypeSendMessage }
func (NewMessage) EventType() MessageType        { return TypeNewMessage }
func (TypingStart) EventType() MessageType       { return TypeTypingStart }
func (TypingStop) EventType() MessageType        { return TypeTypingStop }
func (CursorMove) EventType() MessageType        { return TypeCursorMove }
func (UserStatus) EventType() MessageType        { return TypeUserStatus }
func (WhiteboardDraw) EventType() MessageType    { return TypeWhiteboardDraw }
func (WhiteboardClear) EventType() MessageType   { return TypeWhiteboardClear }
func (WhiteboardSave) EventType() MessageType    { return TypeWhiteboardSave }
func (WhiteboardSaved) EventType() MessageType   { return TypeWhiteboardSaved }
func (DocumentEdit) EventType() MessageType      { return TypeDocumentEdit }
func (DocumentCursor) EventType() MessageType    { return TypeDocumentCursor }
func (DocumentSave) EventType() MessageType      { return TypeDocumentSave }
func (DocumentSaved) EventType() MessageType     { return TypeDocumentSaved }
func (DocumentLock) EventType() MessageType      { return TypeDocumentLock }
func (DocumentUnlock) EventType() MessageType    { return TypeDocumentUnlock }
func (DocumentLocked) EventType() MessageType    { return TypeDocumentLocked }
func (DocumentUnlocked) EventType() MessageType  { return TypeDocumentUnlocked }
func (FileShare) EventType() MessageType         { return TypeFileShare }
func (NotificationSend) EventType() MessageType  { return TypeNotificationSend }
func (NotificationEvent) EventType() MessageType { return TypeNotification }
func (ErrorPayload) EventType() MessageType      { return TypeError }

// Encode marshals a payload into envelope bytes ready for the wire.
func Encode(p Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.EventType(), err)
	}
	return json.Marshal(Envelope{Type: p.EventType(), Data: raw})
}

// Decode parses envelope bytes into the concrete payload for its type.
// Unknown types are an error, never a silent drop.
func Decode(data []byte) (Payload, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	return env.Payload()
}

// Payload decodes the envelope body into its concrete type.
func (env *Envelope) Payload() (Payload, error) {
	var p Payload
	switch env.Type {
	case TypeJoinRoom:
		p = &JoinRoom{}
	case TypeLeaveRoom:
		p = &LeaveRoom{}
	case TypeRoomJoined:
		p = &RoomJoined{}
	case TypeUserJoined:
		p = &UserJoined{}
	case TypeUserLeft:
		p = &UserLeft{}
	case TypeSendMessage:
		p = &SendMessage{}
	case TypeNewMessage:
		p = &NewMessage{}
	case TypeTypingStart:
		p = &TypingStart{}
	case TypeTypingStop:
		p = &TypingStop{}
	case TypeCursorMove:
		p = &CursorMove{}
	case TypeUserStatus:
		p = &UserStatus{}
	case TypeWhiteboardDraw:
		p = &WhiteboardDraw{}
	case TypeWhiteboardClear:
		p = &WhiteboardClear{}
	case TypeWhiteboardSave:
		p = &WhiteboardSave{}
	case TypeWhiteboardSaved:
		p = &WhiteboardSaved{}
	case TypeDocumentEdit:
		p = &DocumentEdit{}
	case TypeDocumentCursor:
		p = &DocumentCursor{}
	case TypeDocumentSave:
		p = &DocumentSave{}
	case TypeDocumentSaved:
		p = &DocumentSaved{}
	case TypeDocumentLock:
		p = &DocumentLock{}
	case TypeDocumentUnlock:
		p = &DocumentUnlock{}
	case TypeDocumentLocked:
		p = &DocumentLocked{}
	case TypeDocumentUnlocked:
		p = &DocumentUnlocked{}
	case TypeFileShare:
		p = &FileShare{}
	case TypeNotificationSend:
		p = &NotificationSend{}
	case TypeNotification:
		p = &NotificationEvent{}
	case TypeError:
		p = &ErrorPayload{}
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, p); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", env.Type, err)
		}
	}
	return p, nil
}
