package client

import (
	"testing"
	"time"

	"github.com/consultly/collab/internal/models"
	"github.com/consultly/collab/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(localUserID string) *PresenceTracker {
	t := &PresenceTracker{
		localUserID: localUserID,
		dispatcher:  NewDispatcher(),
		entries:     make(map[string]models.PresenceEntry),
	}
	t.Attach()
	return t
}

func sender(id, name string) protocol.Sender {
	return protocol.Sender{UserID: id, UserName: name}
}

func TestPresenceJoinReplacesEntry(t *testing.T) {
	tr := newTestTracker("me")

	tr.apply(&protocol.UserStatus{Status: models.StatusBusy, Sender: sender("u1", "Alice")})
	tr.apply(&protocol.TypingStart{Sender: sender("u1", "Alice")})

	// A fresh join wipes stale per-session state like typing and status.
	tr.apply(&protocol.UserJoined{Sender: sender("u1", "Alice")})

	entry, ok := tr.Entry("u1")
	require.True(t, ok)
	assert.True(t, entry.Online)
	assert.False(t, entry.IsTyping)
	assert.Equal(t, models.UserStatus(""), entry.Status)
	assert.Nil(t, entry.Cursor)
}

func TestPresenceLeaveMerges(t *testing.T) {
	tr := newTestTracker("me")

	tr.apply(&protocol.UserJoined{Sender: sender("u1", "Alice")})
	tr.apply(&protocol.UserStatus{Status: models.StatusAway, Sender: sender("u1", "Alice")})
	tr.apply(&protocol.UserLeft{Sender: sender("u1", "Alice")})

	entry, ok := tr.Entry("u1")
	require.True(t, ok)
	assert.False(t, entry.Online)
	// Leave keeps the rest of the entry so the UI can show "last seen".
	assert.Equal(t, models.StatusAway, entry.Status)
	assert.Equal(t, "Alice", entry.UserName)
	assert.False(t, entry.LastSeen.IsZero())
}

func TestPresenceStatusThenTyping(t *testing.T) {
	tr := newTestTracker("me")

	tr.apply(&protocol.UserStatus{Status: models.StatusBusy, Sender: sender("u1", "Alice")})
	tr.apply(&protocol.TypingStart{Sender: sender("u1", "Alice")})

	entry, ok := tr.Entry("u1")
	require.True(t, ok)
	assert.Equal(t, models.StatusBusy, entry.Status)
	assert.True(t, entry.IsTyping)
	assert.True(t, entry.Online)
}

func TestPresenceIgnoresLocalEphemeralEvents(t *testing.T) {
	tr := newTestTracker("me")

	tr.apply(&protocol.CursorMove{X: 1, Y: 2, Sender: sender("me", "Me")})
	tr.apply(&protocol.TypingStart{Sender: sender("me", "Me")})

	_, ok := tr.Entry("me")
	assert.False(t, ok)
}

func TestPresenceCursorMove(t *testing.T) {
	tr := newTestTracker("me")

	tr.apply(&protocol.CursorMove{X: 10, Y: 20, Sender: sender("u1", "Alice")})

	entry, ok := tr.Entry("u1")
	require.True(t, ok)
	require.NotNil(t, entry.Cursor)
	assert.Equal(t, 10.0, entry.Cursor.X)
	assert.Equal(t, 20.0, entry.Cursor.Y)
	assert.True(t, entry.Online)
}

func TestPresenceTypingStopUnknownUser(t *testing.T) {
	tr := newTestTracker("me")

	// A stray typing-stop for an unseen user must not create an entry.
	tr.apply(&protocol.TypingStop{Sender: sender("u9", "Ghost")})

	_, ok := tr.Entry("u9")
	assert.False(t, ok)
}

func TestPresenceLoadReplacesState(t *testing.T) {
	tr := newTestTracker("me")
	tr.apply(&protocol.UserJoined{Sender: sender("stale", "Stale")})

	tr.Load([]models.PresenceEntry{
		{UserID: "u1", UserName: "Alice", Online: true, Status: models.StatusDefault},
		{UserID: "u2", UserName: "Bob", Online: false},
	})

	_, ok := tr.Entry("stale")
	assert.False(t, ok)
	assert.Len(t, tr.Entries(), 2)
	assert.Len(t, tr.Online(), 1)
}

func TestPresenceAvatarsOverflow(t *testing.T) {
	tr := newTestTracker("me")
	for _, id := range []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"} {
		tr.apply(&protocol.UserJoined{Sender: sender(id, id)})
	}

	visible, overflow := tr.Avatars(5)
	assert.Len(t, visible, 5)
	assert.Equal(t, 2, overflow)

	visible, overflow = tr.Avatars(10)
	assert.Len(t, visible, 7)
	assert.Equal(t, 0, overflow)

	// max <= 0 falls back to the default cap.
	visible, overflow = tr.Avatars(0)
	assert.Len(t, visible, DefaultAvatarCap)
	assert.Equal(t, 2, overflow)
}

func TestPresenceDetach(t *testing.T) {
	tr := newTestTracker("me")
	tr.Detach()

	tr.dispatcher.emit(&protocol.UserJoined{Sender: sender("u1", "Alice")})
	_, ok := tr.Entry("u1")
	assert.False(t, ok)
}

func TestHumanizeLastSeen(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		lastSeen time.Time
		want     string
	}{
		{now.Add(-30 * time.Second), "Just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-59 * time.Minute), "59m ago"},
		{now.Add(-90 * time.Minute), "1h ago"},
		{now.Add(-23 * time.Hour), "23h ago"},
		{time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), "Jun 01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanizeLastSeen(tt.lastSeen, now))
	}
}
