package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/consultly/collab/internal/auth"
	"github.com/consultly/collab/internal/db"
	"github.com/consultly/collab/internal/models"
	"github.com/consultly/collab/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server holds the hub's dependencies.
type Server struct {
	hub    *Hub
	store  *db.Store
	auth   *auth.Authenticator
	logger *slog.Logger
}

// NewServer creates a new server instance.
func NewServer(hub *Hub, store *db.Store, authenticator *auth.Authenticator, logger *slog.Logger) *Server {
	return &Server{
		hub:    hub,
		store:  store,
		auth:   authenticator,
		logger: logger,
	}
}

// HandleWebSocket authenticates and upgrades a channel connection.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.GetUser(r.Context(), r)
	if err != nil {
		s.logger.Warn("auth failed", slog.Any("error", err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := s.hub.NewClient(conn, user)
	s.hub.Register(client)

	go s.writePump(client)
	s.readPump(client)
}

func (s *Server) readPump(client *Client) {
	defer func() {
		s.handleDisconnect(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket error", slog.String("user", client.user.ID), slog.Any("error", err))
			}
			break
		}

		s.handleMessage(client, message)
	}
}

func (s *Server) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleDisconnect covers both clean closes and pong-deadline expiry. Peers
// get a synthetic user-left either way, so presence converges without a
// clean leave event.
func (s *Server) handleDisconnect(client *Client) {
	if roomID := client.Room(); roomID != "" {
		s.leaveRoom(client, roomID)
	}
	s.hub.Unregister(client)
}

func (s *Server) handleMessage(client *Client, data []byte) {
	payload, err := protocol.Decode(data)
	if err != nil {
		client.SendError(protocol.ErrCodeInvalidMsg, "Invalid message format")
		return
	}

	switch p := payload.(type) {
	case *protocol.JoinRoom:
		s.handleJoinRoom(client, p)
	case *protocol.LeaveRoom:
		s.handleLeaveRoom(client, p)
	case *protocol.SendMessage:
		s.handleSendMessage(client, p)
	case *protocol.TypingStart:
		if client.Room() == p.RoomID {
			s.hub.RelayToOthers(p.RoomID, client, &protocol.TypingStart{Sender: senderOf(client)})
		}
	case *protocol.TypingStop:
		if client.Room() == p.RoomID {
			s.hub.RelayToOthers(p.RoomID, client, &protocol.TypingStop{Sender: senderOf(client)})
		}
	case *protocol.CursorMove:
		if client.Room() == p.RoomID {
			s.hub.RelayToOthers(p.RoomID, client, &protocol.CursorMove{X: p.X, Y: p.Y, Sender: senderOf(client)})
		}
	case *protocol.UserStatus:
		s.handleUserStatus(client, p)
	case *protocol.WhiteboardDraw:
		if client.Room() == p.RoomID {
			s.hub.RelayToOthers(p.RoomID, client, &protocol.WhiteboardDraw{DrawingData: p.DrawingData, Sender: senderOf(client)})
		}
	case *protocol.WhiteboardClear:
		if client.Room() == p.RoomID {
			s.hub.RelayToOthers(p.RoomID, client, &protocol.WhiteboardClear{Sender: senderOf(client)})
		}
	case *protocol.WhiteboardSave:
		s.handleWhiteboardSave(client, p)
	case *protocol.DocumentEdit:
		if client.Room() == p.RoomID {
			s.hub.RelayToOthers(p.RoomID, client, &protocol.DocumentEdit{
				DocumentID: p.DocumentID, Operation: p.Operation, Sender: senderOf(client),
			})
		}
	case *protocol.DocumentCursor:
		if client.Room() == p.RoomID {
			s.hub.RelayToOthers(p.RoomID, client, &protocol.DocumentCursor{
				DocumentID: p.DocumentID, Cursor: p.Cursor, Sender: senderOf(client),
			})
		}
	case *protocol.DocumentSave:
		s.handleDocumentSave(client, p)
	case *protocol.DocumentLock:
		s.handleDocumentLock(client, p)
	case *protocol.DocumentUnlock:
		s.handleDocumentUnlock(client, p)
	case *protocol.FileShare:
		s.handleFileShare(client, p)
	case *protocol.NotificationSend:
		s.handleNotificationSend(client, p)
	default:
		client.SendError(protocol.ErrCodeInvalidMsg, "Unexpected message type")
	}
}

func senderOf(client *Client) protocol.Sender {
	return protocol.Sender{UserID: client.user.ID, UserName: client.user.Name}
}

func (s *Server) handleJoinRoom(client *Client, p *protocol.JoinRoom) {
	if p.RoomID == "" {
		client.SendError(protocol.ErrCodeInvalidMsg, "Room id required")
		return
	}

	// A client holds one room at a time; joining another leaves the old one.
	if prev := client.Room(); prev != "" && prev != p.RoomID {
		s.leaveRoom(client, prev)
	}

	members := s.hub.Join(client, p.RoomID)

	if err := s.store.UpsertPresence(p.RoomID, client.user, true, models.StatusDefault, ""); err != nil {
		s.logger.Error("presence upsert failed", slog.String("user", client.user.ID), slog.Any("error", err))
	}

	s.hub.RelayToOthers(p.RoomID, client, &protocol.UserJoined{Sender: senderOf(client)})
	client.SendEvent(&protocol.RoomJoined{RoomID: p.RoomID, Members: members})
	s.logger.Info("user joined room", slog.String("user", client.user.ID), slog.String("room", p.RoomID))
}

func (s *Server) handleLeaveRoom(client *Client, p *protocol.LeaveRoom) {
	if client.Room() != p.RoomID {
		return
	}
	s.leaveRoom(client, p.RoomID)
}

func (s *Server) leaveRoom(client *Client, roomID string) {
	s.hub.Leave(client, roomID)

	if err := s.store.UpsertPresence(roomID, client.user, false, "", ""); err != nil {
		s.logger.Error("presence upsert failed", slog.String("user", client.user.ID), slog.Any("error", err))
	}

	s.hub.RelayToOthers(roomID, nil, &protocol.UserLeft{Sender: senderOf(client)})
	s.logger.Info("user left room", slog.String("user", client.user.ID), slog.String("room", roomID))
}

func (s *Server) handleSendMessage(client *Client, p *protocol.SendMessage) {
	if client.Room() != p.RoomID {
		client.SendError(protocol.ErrCodeNotInRoom, "Not in specified room")
		return
	}

	msg, err := s.store.CreateMessage(p.RoomID, client.user, p.Content, p.Type, p.ReplyToID)
	if err != nil {
		s.logger.Error("failed to store message", slog.Any("error", err))
		client.SendError(protocol.ErrCodeInternal, "Failed to save message")
		return
	}

	// Chat goes to every member, sender included, in hub arrival order.
	s.hub.BroadcastToRoom(p.RoomID, &protocol.NewMessage{Message: *msg})
}

func (s *Server) handleUserStatus(client *Client, p *protocol.UserStatus) {
	if client.Room() != p.RoomID {
		return
	}
	if err := s.store.UpsertPresence(p.RoomID, client.user, true, p.Status, ""); err != nil {
		s.logger.Error("presence upsert failed", slog.Any("error", err))
	}
	s.hub.RelayToOthers(p.RoomID, client, &protocol.UserStatus{Status: p.Status, Sender: senderOf(client)})
}

func (s *Server) handleWhiteboardSave(client *Client, p *protocol.WhiteboardSave) {
	if client.Room() != p.RoomID {
		client.SendError(protocol.ErrCodeNotInRoom, "Not in specified room")
		return
	}

	if err := s.store.SaveWhiteboard(p.RoomID, p.Title, p.CanvasData, client.user.ID); err != nil {
		s.logger.Error("whiteboard save failed", slog.String("room", p.RoomID), slog.Any("error", err))
		client.SendError(protocol.ErrCodeInternal, "Failed to save whiteboard")
		return
	}

	client.SendEvent(&protocol.WhiteboardSaved{})
}

func (s *Server) handleDocumentSave(client *Client, p *protocol.DocumentSave) {
	if client.Room() != p.RoomID {
		client.SendError(protocol.ErrCodeNotInRoom, "Not in specified room")
		return
	}

	if err := s.store.SaveDocument(p.DocumentID, p.Content, client.user.ID); err != nil {
		s.logger.Error("document save failed", slog.String("document", p.DocumentID), slog.Any("error", err))
		client.SendError(protocol.ErrCodeInternal, "Failed to save document")
		return
	}

	client.SendEvent(&protocol.DocumentSaved{})
}

func (s *Server) handleDocumentLock(client *Client, p *protocol.DocumentLock) {
	if client.Room() != p.RoomID {
		client.SendError(protocol.ErrCodeNotInRoom, "Not in specified room")
		return
	}

	err := s.store.LockDocument(p.DocumentID, client.user.ID)
	if errors.Is(err, db.ErrLocked) {
		client.SendError(protocol.ErrCodeLocked, "Document is locked by another user")
		return
	}
	if err != nil {
		s.logger.Error("document lock failed", slog.String("document", p.DocumentID), slog.Any("error", err))
		client.SendError(protocol.ErrCodeInternal, "Failed to lock document")
		return
	}

	locked := &protocol.DocumentLocked{DocumentID: p.DocumentID, Sender: senderOf(client)}
	client.SendEvent(locked)
	s.hub.RelayToOthers(p.RoomID, client, locked)
}

func (s *Server) handleDocumentUnlock(client *Client, p *protocol.DocumentUnlock) {
	if client.Room() != p.RoomID {
		client.SendError(protocol.ErrCodeNotInRoom, "Not in specified room")
		return
	}

	if err := s.store.UnlockDocument(p.DocumentID, client.user.ID); err != nil {
		s.logger.Error("document unlock failed", slog.String("document", p.DocumentID), slog.Any("error", err))
		client.SendError(protocol.ErrCodeInternal, "Failed to unlock document")
		return
	}

	unlocked := &protocol.DocumentUnlocked{DocumentID: p.DocumentID, Sender: senderOf(client)}
	client.SendEvent(unlocked)
	s.hub.RelayToOthers(p.RoomID, client, unlocked)
}

func (s *Server) handleFileShare(client *Client, p *protocol.FileShare) {
	if client.Room() != p.RoomID {
		client.SendError(protocol.ErrCodeNotInRoom, "Not in specified room")
		return
	}

	s.hub.RelayToOthers(p.RoomID, client, &protocol.FileShare{File: p.File, Sender: senderOf(client)})

	// A file share also leaves a FILE message in the chat history.
	msg, err := s.store.CreateMessage(p.RoomID, client.user, "Shared file: "+p.File.Name, models.MessageTypeFile, "")
	if err != nil {
		s.logger.Error("failed to store file message", slog.Any("error", err))
		return
	}
	s.hub.BroadcastToRoom(p.RoomID, &protocol.NewMessage{Message: *msg})
}

func (s *Server) handleNotificationSend(client *Client, p *protocol.NotificationSend) {
	notif, err := s.store.CreateNotification(p.UserID, p.Title, p.Content, p.Type)
	if err != nil {
		s.logger.Error("failed to store notification", slog.Any("error", err))
		return
	}
	s.hub.SendToUser(p.UserID, &protocol.NotificationEvent{Notification: *notif})
}
