package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/consultly/collab/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrLocked is returned when a document lock is held by another user.
var ErrLocked = errors.New("document locked by another user")

// Store handles hub-side database operations.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the hub database.
func NewStore(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_fk=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: sqlDB}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			sender_name TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'TEXT',
			reply_to_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at);

		CREATE TABLE IF NOT EXISTS whiteboards (
			room_id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			canvas_data TEXT NOT NULL,
			saved_by TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			locked_by TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS document_versions (
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			version INTEGER NOT NULL,
			content TEXT NOT NULL,
			saved_by TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (document_id, version)
		);

		CREATE TABLE IF NOT EXISTS user_presence (
			room_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			user_name TEXT NOT NULL DEFAULT '',
			online INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'default',
			activity TEXT NOT NULL DEFAULT '',
			last_seen DATETIME NOT NULL,
			PRIMARY KEY (room_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'SYSTEM',
			read INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateMessage persists a chat message and returns the stored record.
// The id and timestamp are assigned here, so room ordering is arrival order.
func (s *Store) CreateMessage(roomID string, sender *models.User, content, msgType, replyToID string) (*models.ChatMessage, error) {
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	msg := &models.ChatMessage{
		ID:         uuid.New().String(),
		RoomID:     roomID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Content:    content,
		Type:       msgType,
		ReplyToID:  replyToID,
		CreatedAt:  time.Now().UTC(),
	}
	var replyTo sql.NullString
	if replyToID != "" {
		replyTo = sql.NullString{String: replyToID, Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (id, room_id, sender_id, sender_name, content, type, reply_to_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.RoomID, msg.SenderID, msg.SenderName, msg.Content, msg.Type, replyTo, msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GetRecentMessages returns up to limit messages for a room, oldest first.
func (s *Store) GetRecentMessages(roomID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, room_id, sender_id, sender_name, content, type, COALESCE(reply_to_id, ''), created_at
		FROM (
			SELECT * FROM messages WHERE room_id = ? ORDER BY created_at DESC, id LIMIT ?
		) ORDER BY created_at ASC, id
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName, &m.Content, &m.Type, &m.ReplyToID, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// SaveWhiteboard overwrites the room's canvas snapshot. The stored snapshot
// always reflects the last successful save, never a merge of drafts.
func (s *Store) SaveWhiteboard(roomID, title, canvasData, savedBy string) error {
	if title == "" {
		title = "Whiteboard - " + time.Now().UTC().Format("2006-01-02 15:04")
	}
	_, err := s.db.Exec(`
		INSERT INTO whiteboards (room_id, title, canvas_data, saved_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET
			title = excluded.title,
			canvas_data = excluded.canvas_data,
			saved_by = excluded.saved_by,
			updated_at = excluded.updated_at
	`, roomID, title, canvasData, savedBy, time.Now().UTC())
	return err
}

// GetWhiteboard returns the last saved snapshot for a room, or nil.
func (s *Store) GetWhiteboard(roomID string) (*models.WhiteboardSnapshot, error) {
	var wb models.WhiteboardSnapshot
	err := s.db.QueryRow(`
		SELECT room_id, title, canvas_data, saved_by, updated_at FROM whiteboards WHERE room_id = ?
	`, roomID).Scan(&wb.RoomID, &wb.Title, &wb.CanvasData, &wb.SavedBy, &wb.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wb, nil
}

// CreateDocument creates a new co-edited document in a room.
func (s *Store) CreateDocument(roomID, title string) (*models.DocumentRecord, error) {
	doc := &models.DocumentRecord{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Title:     title,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(`
		INSERT INTO documents (id, room_id, title, content, locked_by, version, updated_at)
		VALUES (?, ?, ?, '', '', 0, ?)
	`, doc.ID, doc.RoomID, doc.Title, doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument returns a document record, or nil if it does not exist.
func (s *Store) GetDocument(id string) (*models.DocumentRecord, error) {
	var d models.DocumentRecord
	err := s.db.QueryRow(`
		SELECT id, room_id, title, content, locked_by, version, updated_at FROM documents WHERE id = ?
	`, id).Scan(&d.ID, &d.RoomID, &d.Title, &d.Content, &d.LockedBy, &d.Version, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveDocument overwrites document content, bumps the version and records a
// version row. Saves are idempotent from the hub's point of view; a retried
// save simply writes another version.
func (s *Store) SaveDocument(id, content, savedBy string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.Exec(`
		UPDATE documents SET content = ?, version = version + 1, updated_at = ? WHERE id = ?
	`, content, now, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("document %s not found", id)
	}

	var version int
	if err := tx.QueryRow(`SELECT version FROM documents WHERE id = ?`, id).Scan(&version); err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO document_versions (document_id, version, content, saved_by, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, version, content, savedBy, now)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// LockDocument grants the lock to userID if no other user holds it.
// Re-acquiring a lock you already hold succeeds.
func (s *Store) LockDocument(id, userID string) error {
	res, err := s.db.Exec(`
		UPDATE documents SET locked_by = ? WHERE id = ? AND (locked_by = '' OR locked_by = ?)
	`, userID, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		doc, err := s.GetDocument(id)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("document %s not found", id)
		}
		return ErrLocked
	}
	return nil
}

// UnlockDocument releases the lock if userID holds it. Releasing a lock you
// do not hold is a no-op.
func (s *Store) UnlockDocument(id, userID string) error {
	_, err := s.db.Exec(`
		UPDATE documents SET locked_by = '' WHERE id = ? AND locked_by = ?
	`, id, userID)
	return err
}

// UpsertPresence records a participant's presence for the REST snapshot.
func (s *Store) UpsertPresence(roomID string, user *models.User, online bool, status models.UserStatus, activity string) error {
	if status == "" {
		status = models.StatusDefault
	}
	_, err := s.db.Exec(`
		INSERT INTO user_presence (room_id, user_id, user_name, online, status, activity, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id, user_id) DO UPDATE SET
			user_name = excluded.user_name,
			online = excluded.online,
			status = excluded.status,
			activity = CASE WHEN excluded.activity != '' THEN excluded.activity ELSE user_presence.activity END,
			last_seen = excluded.last_seen
	`, roomID, user.ID, user.Name, online, status, activity, time.Now().UTC())
	return err
}

// GetRoomPresence returns the persisted presence snapshot for a room.
func (s *Store) GetRoomPresence(roomID string) ([]models.PresenceEntry, error) {
	rows, err := s.db.Query(`
		SELECT user_id, user_name, online, status, activity, last_seen
		FROM user_presence WHERE room_id = ? ORDER BY user_id
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.PresenceEntry
	for rows.Next() {
		var e models.PresenceEntry
		if err := rows.Scan(&e.UserID, &e.UserName, &e.Online, &e.Status, &e.Activity, &e.LastSeen); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreateNotification persists a directed notification.
func (s *Store) CreateNotification(userID, title, content, notifType string) (*models.Notification, error) {
	if notifType == "" {
		notifType = "SYSTEM"
	}
	n := &models.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		Type:      notifType,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(`
		INSERT INTO notifications (id, user_id, title, content, type, read, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`, n.ID, n.UserID, n.Title, n.Content, n.Type, n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}
