package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/consultly/collab/internal/models"
	"github.com/goccy/go-json"
)

// doGet performs an authenticated GET against the REST collaborators and
// decodes the response into out.
func (c *Client) doGet(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// FetchPresence loads the presence snapshot for a room, the durability
// source the tracker seeds from.
func (c *Client) FetchPresence(ctx context.Context, roomID string) ([]models.PresenceEntry, error) {
	var out struct {
		Presence []models.PresenceEntry `json:"presence"`
	}
	if err := c.doGet(ctx, "/api/rooms/"+roomID+"/presence", &out); err != nil {
		return nil, err
	}
	return out.Presence, nil
}

// FetchWhiteboard loads the last saved canvas snapshot, or nil when the
// room has never been saved.
func (c *Client) FetchWhiteboard(ctx context.Context, roomID string) (*models.WhiteboardSnapshot, error) {
	var wb models.WhiteboardSnapshot
	if err := c.doGet(ctx, "/api/rooms/"+roomID+"/whiteboard", &wb); err != nil {
		return nil, err
	}
	if wb.RoomID == "" {
		return nil, nil
	}
	return &wb, nil
}

// FetchDocument loads a document record including its lock owner.
func (c *Client) FetchDocument(ctx context.Context, documentID string) (*models.DocumentRecord, error) {
	var doc models.DocumentRecord
	if err := c.doGet(ctx, "/api/documents/"+documentID, &doc); err != nil {
		return nil, err
	}
	if doc.ID == "" {
		return nil, nil
	}
	return &doc, nil
}

// FetchMessages loads recent chat history for a room, oldest first.
func (c *Client) FetchMessages(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error) {
	var out struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	path := "/api/rooms/" + roomID + "/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.doGet(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}
