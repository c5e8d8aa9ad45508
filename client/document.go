package client

import (
	"context"

	"github.com/consultly/collab/internal/protocol"
	"github.com/goccy/go-json"
)

// EditDocument broadcasts an opaque edit operation. Fire-and-forget;
// consumers apply operations directly, so concurrent overlapping edits are
// last-applied-wins.
func (c *Client) EditDocument(documentID string, operation json.RawMessage) error {
	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	return c.sendPayload(&protocol.DocumentEdit{
		RoomID:     roomID,
		DocumentID: documentID,
		Operation:  operation,
	})
}

// UpdateDocumentCursor broadcasts an in-document cursor position.
func (c *Client) UpdateDocumentCursor(documentID string, cursor json.RawMessage) error {
	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	return c.sendPayload(&protocol.DocumentCursor{
		RoomID:     roomID,
		DocumentID: documentID,
		Cursor:     cursor,
	})
}

// SaveDocument persists document content with the same ack/timeout race as
// the whiteboard save.
func (c *Client) SaveDocument(ctx context.Context, documentID, content string) error {
	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	_, err = c.await(ctx, &protocol.DocumentSave{
		RoomID:     roomID,
		DocumentID: documentID,
		Content:    content,
	}, protocol.TypeDocumentSaved, nil)
	return err
}

// LockDocument requests single-writer intent on a document. The hub grants
// the lock only when no other user holds it.
func (c *Client) LockDocument(ctx context.Context, documentID string) error {
	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	_, err = c.await(ctx, &protocol.DocumentLock{
		RoomID:     roomID,
		DocumentID: documentID,
	}, protocol.TypeDocumentLocked, func(p protocol.Payload) bool {
		locked, ok := p.(*protocol.DocumentLocked)
		return ok && locked.DocumentID == documentID && locked.UserID == c.opts.UserID
	})
	return err
}

// UnlockDocument releases a held lock.
func (c *Client) UnlockDocument(ctx context.Context, documentID string) error {
	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	_, err = c.await(ctx, &protocol.DocumentUnlock{
		RoomID:     roomID,
		DocumentID: documentID,
	}, protocol.TypeDocumentUnlocked, func(p protocol.Payload) bool {
		unlocked, ok := p.(*protocol.DocumentUnlocked)
		return ok && unlocked.DocumentID == documentID && unlocked.UserID == c.opts.UserID
	})
	return err
}
