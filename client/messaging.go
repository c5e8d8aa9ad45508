package client

import (
	"time"

	"github.com/consultly/collab/internal/models"
	"github.com/consultly/collab/internal/protocol"
)

// SendMessage emits a chat message to the current room. Fire-and-forget:
// delivery confirmation is only the echoed new-message broadcast. Fails
// synchronously without an active room.
func (c *Client) SendMessage(content, msgType, replyToID string) error {
	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	return c.sendPayload(&protocol.SendMessage{
		RoomID:    roomID,
		Content:   content,
		Type:      msgType,
		ReplyToID: replyToID,
	})
}

// StartTyping broadcasts a typing-start for the current room.
func (c *Client) StartTyping() error {
	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	return c.sendPayload(&protocol.TypingStart{RoomID: roomID})
}

// StopTyping broadcasts a typing-stop and cancels any pending auto-stop.
func (c *Client) StopTyping() error {
	c.typingMu.Lock()
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.typingMu.Unlock()

	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	return c.sendPayload(&protocol.TypingStop{RoomID: roomID})
}

// HandleTypingActivity is the per-keystroke helper: it fires typing-start
// immediately and (re)arms a timer that emits typing-stop after the idle
// window. Each call pushes the auto-stop out by the full window.
func (c *Client) HandleTypingActivity() error {
	if err := c.StartTyping(); err != nil {
		return err
	}

	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	c.typingTimer = time.AfterFunc(c.opts.TypingIdle, func() {
		c.typingMu.Lock()
		c.typingTimer = nil
		c.typingMu.Unlock()
		if roomID, err := c.roomFor(); err == nil {
			c.sendPayload(&protocol.TypingStop{RoomID: roomID})
		}
	})
	return nil
}

// ShareFile broadcasts file metadata to the current room. The hub also
// records a FILE chat message.
func (c *Client) ShareFile(file models.Attachment) error {
	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	return c.sendPayload(&protocol.FileShare{RoomID: roomID, File: file})
}

// SendNotification asks the hub to persist and deliver a directed
// notification. Requires a connection but not a room.
func (c *Client) SendNotification(userID, title, content, notifType string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.sendPayload(&protocol.NotificationSend{
		UserID:  userID,
		Title:   title,
		Content: content,
		Type:    notifType,
	})
}
