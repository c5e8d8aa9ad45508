package client

import (
	"context"

	"github.com/consultly/collab/internal/protocol"
	"github.com/goccy/go-json"
)

// Draw broadcasts a stroke to the current room. Fire-and-forget; received
// draw events mutate only local rendering state and never trigger a save.
func (c *Client) Draw(drawingData json.RawMessage) error {
	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	return c.sendPayload(&protocol.WhiteboardDraw{RoomID: roomID, DrawingData: drawingData})
}

// ClearWhiteboard broadcasts a canvas wipe to the current room.
func (c *Client) ClearWhiteboard() error {
	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	return c.sendPayload(&protocol.WhiteboardClear{RoomID: roomID})
}

// SaveWhiteboard persists a full canvas snapshot, racing the saved ack
// against an error event and the ack ceiling. The durable snapshot is
// always the last successful save, never a merge of drafts.
func (c *Client) SaveWhiteboard(ctx context.Context, canvasData, title string) error {
	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	_, err = c.await(ctx, &protocol.WhiteboardSave{
		RoomID:     roomID,
		Title:      title,
		CanvasData: canvasData,
	}, protocol.TypeWhiteboardSaved, nil)
	return err
}
