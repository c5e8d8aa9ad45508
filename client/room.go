package client

import (
	"context"

	"github.com/consultly/collab/internal/protocol"
)

// JoinRoom joins a room, racing the room-joined ack against an error event
// and the ack ceiling. Requires an established connection; fails
// synchronously otherwise. On success the room becomes current.
func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	_, err := c.await(ctx, &protocol.JoinRoom{RoomID: roomID}, protocol.TypeRoomJoined, func(p protocol.Payload) bool {
		joined, ok := p.(*protocol.RoomJoined)
		return ok && joined.RoomID == roomID
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.currentRoom = roomID
	c.mu.Unlock()
	return nil
}

// LeaveRoom emits a leave notification and clears local state without
// waiting for acknowledgment.
func (c *Client) LeaveRoom() {
	c.mu.Lock()
	roomID := c.currentRoom
	c.currentRoom = ""
	connected := c.state == StateConnected
	c.mu.Unlock()

	if connected && roomID != "" {
		c.sendPayload(&protocol.LeaveRoom{RoomID: roomID})
	}
}

// CurrentRoomID returns the currently joined room id, or "".
func (c *Client) CurrentRoomID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentRoom
}
