package server

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/consultly/collab/internal/models"
	"github.com/consultly/collab/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{messages: make(map[string][][]byte)}
}

func (f *fakeRelay) Publish(roomID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[roomID] = append(f.messages[roomID], data)
	return nil
}

func (f *fakeRelay) count(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[roomID])
}

func newTestHub(relay RelayPublisher) *Hub {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), relay)
	go hub.Run()
	return hub
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.send:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected delivery: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubJoinAndLeave(t *testing.T) {
	hub := newTestHub(nil)
	alice := hub.NewClient(nil, &models.User{ID: "u1", Name: "Alice"})
	bob := hub.NewClient(nil, &models.User{ID: "u2", Name: "Bob"})

	members := hub.Join(alice, "room-1")
	require.Len(t, members, 1)
	assert.Equal(t, "room-1", alice.Room())

	members = hub.Join(bob, "room-1")
	assert.Len(t, members, 2)

	hub.Leave(alice, "room-1")
	assert.Empty(t, alice.Room())

	members = hub.Join(alice, "room-1")
	assert.Len(t, members, 2)
}

func TestHubBroadcastToRoom(t *testing.T) {
	hub := newTestHub(nil)
	alice := hub.NewClient(nil, &models.User{ID: "u1", Name: "Alice"})
	bob := hub.NewClient(nil, &models.User{ID: "u2", Name: "Bob"})
	carol := hub.NewClient(nil, &models.User{ID: "u3", Name: "Carol"})

	hub.Join(alice, "room-1")
	hub.Join(bob, "room-1")
	hub.Join(carol, "room-2")

	hub.BroadcastToRoom("room-1", &protocol.WhiteboardClear{})

	for _, c := range []*Client{alice, bob} {
		p, err := protocol.Decode(receive(t, c))
		require.NoError(t, err)
		assert.Equal(t, protocol.TypeWhiteboardClear, p.EventType())
	}
	expectNothing(t, carol)
}

func TestHubRelayToOthersSkipsSender(t *testing.T) {
	hub := newTestHub(nil)
	alice := hub.NewClient(nil, &models.User{ID: "u1", Name: "Alice"})
	bob := hub.NewClient(nil, &models.User{ID: "u2", Name: "Bob"})

	hub.Join(alice, "room-1")
	hub.Join(bob, "room-1")

	hub.RelayToOthers("room-1", alice, &protocol.TypingStart{Sender: protocol.Sender{UserID: "u1"}})

	p, err := protocol.Decode(receive(t, bob))
	require.NoError(t, err)
	assert.Equal(t, "u1", p.(*protocol.TypingStart).UserID)
	expectNothing(t, alice)
}

func TestHubSendToUser(t *testing.T) {
	hub := newTestHub(nil)
	alice := hub.NewClient(nil, &models.User{ID: "u1", Name: "Alice"})
	bob := hub.NewClient(nil, &models.User{ID: "u2", Name: "Bob"})
	hub.Register(alice)
	hub.Register(bob)
	t.Cleanup(func() {
		hub.Unregister(alice)
		hub.Unregister(bob)
	})

	hub.SendToUser("u1", &protocol.NotificationEvent{
		Notification: models.Notification{ID: "n1", UserID: "u1", Title: "Hello"},
	})

	p, err := protocol.Decode(receive(t, alice))
	require.NoError(t, err)
	assert.Equal(t, "n1", p.(*protocol.NotificationEvent).Notification.ID)
	expectNothing(t, bob)
}

func TestHubDropsSaturatedClientWithoutBlocking(t *testing.T) {
	hub := newTestHub(nil)
	slow := hub.NewClient(nil, &models.User{ID: "u1", Name: "Alice"})
	fast := hub.NewClient(nil, &models.User{ID: "u2", Name: "Bob"})
	hub.Register(slow)
	hub.Register(fast)
	hub.Join(slow, "room-1")
	hub.Join(fast, "room-2")

	// Fill the slow client's entire send buffer so the next delivery
	// cannot be queued.
	for i := 0; i < cap(slow.send); i++ {
		slow.send <- []byte("backlog")
	}

	hub.BroadcastToRoom("room-1", &protocol.WhiteboardClear{})

	// The hub loop must keep serving other rooms.
	hub.BroadcastToRoom("room-2", &protocol.WhiteboardClear{})
	receive(t, fast)

	// The saturated client is removed: its send channel ends up closed.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-slow.send:
			if !ok {
				assert.Empty(t, slow.Room())
				return
			}
		case <-deadline:
			t.Fatal("saturated client was never dropped")
		}
	}
}

func TestHubConcurrentJoinsAndBroadcasts(t *testing.T) {
	hub := newTestHub(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := hub.NewClient(nil, &models.User{ID: fmt.Sprintf("u%d", n), Name: "x"})
			for j := 0; j < 50; j++ {
				hub.Join(c, "room-1")
				hub.Leave(c, "room-1")
			}
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			hub.BroadcastToRoom("room-1", &protocol.WhiteboardClear{})
		}
	}()

	wg.Wait()
}

func TestHubRelayPublish(t *testing.T) {
	relay := newFakeRelay()
	hub := newTestHub(relay)
	alice := hub.NewClient(nil, &models.User{ID: "u1", Name: "Alice"})
	hub.Join(alice, "room-1")

	hub.BroadcastToRoom("room-1", &protocol.WhiteboardClear{})
	receive(t, alice)
	assert.Eventually(t, func() bool { return relay.count("room-1") == 1 }, time.Second, 10*time.Millisecond)

	// Inbound peer traffic fans out locally without re-entering the relay.
	data, err := protocol.Encode(&protocol.WhiteboardClear{})
	require.NoError(t, err)
	hub.DeliverLocal("room-1", data)

	receive(t, alice)
	assert.Equal(t, 1, relay.count("room-1"))
}
