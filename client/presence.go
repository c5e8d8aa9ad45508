package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/consultly/collab/internal/models"
	"github.com/consultly/collab/internal/protocol"
)

// DefaultAvatarCap is how many online users are shown as avatars before the
// overflow badge takes over.
const DefaultAvatarCap = 5

// MoveCursor broadcasts the local pointer position to the current room.
func (c *Client) MoveCursor(x, y float64) error {
	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	return c.sendPayload(&protocol.CursorMove{RoomID: roomID, X: x, Y: y})
}

// UpdateStatus broadcasts a self-reported availability change.
func (c *Client) UpdateStatus(status models.UserStatus) error {
	roomID, err := c.roomFor()
	if err != nil {
		return err
	}
	return c.sendPayload(&protocol.UserStatus{RoomID: roomID, Status: status})
}

// PresenceTracker maintains the per-user presence map for a room. It seeds
// from the REST snapshot and layers incremental channel events on top.
// Entries are never expired by a timer; only an explicit (or synthetic)
// user-left marks a user offline.
type PresenceTracker struct {
	localUserID string
	dispatcher  *Dispatcher

	mu      sync.RWMutex
	entries map[string]models.PresenceEntry
	subs    []Subscription
}

// NewPresenceTracker creates a tracker bound to this session's dispatcher
// and attaches its event handlers. After a Disconnect the registrations are
// gone; call Attach again once reconnected.
func (c *Client) NewPresenceTracker() *PresenceTracker {
	t := &PresenceTracker{
		localUserID: c.opts.UserID,
		dispatcher:  c.dispatcher,
		entries:     make(map[string]models.PresenceEntry),
	}
	t.Attach()
	return t
}

// Attach registers the tracker's handlers on the dispatcher.
func (t *PresenceTracker) Attach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.subs) > 0 {
		return
	}
	for _, event := range []protocol.MessageType{
		protocol.TypeUserJoined,
		protocol.TypeUserLeft,
		protocol.TypeCursorMove,
		protocol.TypeTypingStart,
		protocol.TypeTypingStop,
		protocol.TypeUserStatus,
	} {
		t.subs = append(t.subs, t.dispatcher.On(event, t.apply))
	}
}

// Detach removes the tracker's handlers.
func (t *PresenceTracker) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.subs {
		t.dispatcher.Off(sub)
	}
	t.subs = nil
}

// Load seeds the tracker from a REST snapshot, replacing current state.
func (t *PresenceTracker) Load(snapshot []models.PresenceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]models.PresenceEntry, len(snapshot))
	for _, e := range snapshot {
		t.entries[e.UserID] = e
	}
}

// apply reconciles one channel event into the map.
func (t *PresenceTracker) apply(p protocol.Payload) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev := p.(type) {
	case *protocol.UserJoined:
		// Join replaces the entry wholesale.
		t.entries[ev.UserID] = models.PresenceEntry{
			UserID:   ev.UserID,
			UserName: ev.UserName,
			Online:   true,
			LastSeen: now,
		}

	case *protocol.UserLeft:
		// Leave merges: only online and lastSeen change.
		entry := t.entries[ev.UserID]
		entry.UserID = ev.UserID
		if entry.UserName == "" {
			entry.UserName = ev.UserName
		}
		entry.Online = false
		entry.LastSeen = now
		t.entries[ev.UserID] = entry

	case *protocol.CursorMove:
		if ev.UserID == t.localUserID {
			return
		}
		entry := t.entries[ev.UserID]
		entry.UserID = ev.UserID
		entry.UserName = ev.UserName
		entry.Cursor = &models.CursorPosition{X: ev.X, Y: ev.Y}
		entry.Online = true
		entry.LastSeen = now
		t.entries[ev.UserID] = entry

	case *protocol.TypingStart:
		if ev.UserID == t.localUserID {
			return
		}
		entry := t.entries[ev.UserID]
		entry.UserID = ev.UserID
		entry.UserName = ev.UserName
		entry.IsTyping = true
		entry.Online = true
		entry.LastSeen = now
		t.entries[ev.UserID] = entry

	case *protocol.TypingStop:
		if ev.UserID == t.localUserID {
			return
		}
		entry, ok := t.entries[ev.UserID]
		if !ok {
			return
		}
		entry.IsTyping = false
		t.entries[ev.UserID] = entry

	case *protocol.UserStatus:
		entry := t.entries[ev.UserID]
		entry.UserID = ev.UserID
		entry.UserName = ev.UserName
		entry.Status = ev.Status
		entry.Online = true
		entry.LastSeen = now
		t.entries[ev.UserID] = entry
	}
}

// Entry returns a user's presence entry.
func (t *PresenceTracker) Entry(userID string) (models.PresenceEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[userID]
	return e, ok
}

// Entries returns a copy of all tracked entries.
func (t *PresenceTracker) Entries() []models.PresenceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.PresenceEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}

// Online returns the entries currently marked online.
func (t *PresenceTracker) Online() []models.PresenceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []models.PresenceEntry
	for _, e := range t.entries {
		if e.Online {
			out = append(out, e)
		}
	}
	return out
}

// Avatars returns up to max online users plus the overflow count for the
// "+N" badge. max <= 0 uses DefaultAvatarCap.
func (t *PresenceTracker) Avatars(max int) ([]models.PresenceEntry, int) {
	if max <= 0 {
		max = DefaultAvatarCap
	}
	online := t.Online()
	if len(online) <= max {
		return online, 0
	}
	return online[:max], len(online) - max
}

// HumanizeLastSeen renders a last-seen timestamp the way the presence UI
// shows it: "Just now", minutes, hours, then a calendar date.
func HumanizeLastSeen(lastSeen, now time.Time) string {
	minutes := int(now.Sub(lastSeen).Minutes())
	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case minutes < 24*60:
		return fmt.Sprintf("%dh ago", minutes/60)
	default:
		return lastSeen.Format("Jan 02")
	}
}
