package server

import (
	"log/slog"
	"sync"

	"github.com/consultly/collab/internal/models"
	"github.com/consultly/collab/internal/protocol"
	"github.com/gorilla/websocket"
)

// Client represents a connected WebSocket client.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	user   *models.User
	send   chan []byte
	roomID string
	roomMu sync.RWMutex
}

// RelayPublisher forwards room events to peer hub nodes. Nil disables
// cross-node fanout.
type RelayPublisher interface {
	Publish(roomID string, data []byte) error
}

// Hub maintains the authoritative membership per room and relays events.
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	rooms   map[string]map[*Client]bool // roomID -> members
	roomsMu sync.RWMutex

	byUser   map[string]map[*Client]bool // userID -> live connections
	byUserMu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomMessage

	relay  RelayPublisher
	logger *slog.Logger
}

type roomMessage struct {
	roomID string
	except *Client // nil broadcasts to every member
	data   []byte
	peers  bool // forward to peer nodes via the relay
}

// NewHub creates a new Hub. relay may be nil.
func NewHub(logger *slog.Logger, relay RelayPublisher) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		byUser:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomMessage, 256),
		relay:      relay,
		logger:     logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()

			h.byUserMu.Lock()
			if h.byUser[client.user.ID] == nil {
				h.byUser[client.user.ID] = make(map[*Client]bool)
			}
			h.byUser[client.user.ID][client] = true
			h.byUserMu.Unlock()
			h.logger.Info("client connected", slog.String("user", client.user.ID))

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()

			h.byUserMu.Lock()
			if conns, ok := h.byUser[client.user.ID]; ok {
				delete(conns, client)
				if len(conns) == 0 {
					delete(h.byUser, client.user.ID)
				}
			}
			h.byUserMu.Unlock()
			h.logger.Info("client disconnected", slog.String("user", client.user.ID))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg *roomMessage) {
	h.roomsMu.RLock()
	members := make([]*Client, 0, len(h.rooms[msg.roomID]))
	for client := range h.rooms[msg.roomID] {
		members = append(members, client)
	}
	h.roomsMu.RUnlock()

	for _, client := range members {
		if client == msg.except {
			continue
		}
		select {
		case client.send <- msg.data:
		default:
			h.drop(client)
		}
	}

	if msg.peers && h.relay != nil {
		if err := h.relay.Publish(msg.roomID, msg.data); err != nil {
			h.logger.Warn("relay publish failed", slog.String("room", msg.roomID), slog.Any("error", err))
		}
	}
}

// drop removes a client whose send buffer is full. It runs on the hub
// goroutine, so it must not go through the unregister channel: Run is the
// only reader of that channel and would deadlock on itself.
func (h *Hub) drop(client *Client) {
	if roomID := client.Room(); roomID != "" {
		h.roomsMu.Lock()
		if members, ok := h.rooms[roomID]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
		h.roomsMu.Unlock()
		client.setRoom("")
	}

	h.clientsMu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.clientsMu.Unlock()

	h.byUserMu.Lock()
	if conns, ok := h.byUser[client.user.ID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.byUser, client.user.ID)
		}
	}
	h.byUserMu.Unlock()

	h.logger.Warn("send buffer full, dropping client", slog.String("user", client.user.ID))
}

// Join adds a client to a room and returns the resulting member list.
func (h *Hub) Join(client *Client, roomID string) []protocol.RoomMember {
	h.roomsMu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	members := make([]protocol.RoomMember, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		members = append(members, protocol.RoomMember{UserID: c.user.ID, UserName: c.user.Name})
	}
	h.roomsMu.Unlock()

	client.setRoom(roomID)
	return members
}

// Leave removes a client from a room, dropping the room when empty.
func (h *Hub) Leave(client *Client, roomID string) {
	h.roomsMu.Lock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.roomsMu.Unlock()

	client.setRoom("")
}

// RelayToOthers sends an event to every room member except the sender, and
// forwards it to peer nodes.
func (h *Hub) RelayToOthers(roomID string, except *Client, p protocol.Payload) {
	h.enqueue(roomID, except, p, true)
}

// BroadcastToRoom sends an event to every member of a room, the sender
// included, and forwards it to peer nodes.
func (h *Hub) BroadcastToRoom(roomID string, p protocol.Payload) {
	h.enqueue(roomID, nil, p, true)
}

// DeliverLocal fans an already-encoded event from a peer node out to local
// members only. It never re-enters the relay.
func (h *Hub) DeliverLocal(roomID string, data []byte) {
	h.broadcast <- &roomMessage{roomID: roomID, data: data}
}

func (h *Hub) enqueue(roomID string, except *Client, p protocol.Payload, peers bool) {
	data, err := protocol.Encode(p)
	if err != nil {
		h.logger.Error("failed to encode event", slog.String("type", string(p.EventType())), slog.Any("error", err))
		return
	}
	h.broadcast <- &roomMessage{roomID: roomID, except: except, data: data, peers: peers}
}

// SendToUser delivers an event to every live connection of one user.
func (h *Hub) SendToUser(userID string, p protocol.Payload) {
	data, err := protocol.Encode(p)
	if err != nil {
		h.logger.Error("failed to encode event", slog.String("type", string(p.EventType())), slog.Any("error", err))
		return
	}

	h.byUserMu.RLock()
	conns := make([]*Client, 0, len(h.byUser[userID]))
	for c := range h.byUser[userID] {
		conns = append(conns, c)
	}
	h.byUserMu.RUnlock()

	for _, c := range conns {
		c.Send(data)
	}
}

// NewClient creates a new client for the hub.
func (h *Hub) NewClient(conn *websocket.Conn, user *models.User) *Client {
	return &Client{
		hub:  h,
		conn: conn,
		user: user,
		send: make(chan []byte, 256),
	}
}

// Register registers a client with the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister unregisters a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Send sends data to the client, dropping it if the buffer is full.
func (c *Client) Send(data []byte) {
	select {
	case c.send <- data:
	default:
		// Buffer full
	}
}

// SendEvent encodes and sends a protocol event to the client.
func (c *Client) SendEvent(p protocol.Payload) {
	data, err := protocol.Encode(p)
	if err != nil {
		return
	}
	c.Send(data)
}

// SendError sends an error event to the client.
func (c *Client) SendError(code, message string) {
	c.SendEvent(&protocol.ErrorPayload{Code: code, Message: message})
}

// User returns the client's user.
func (c *Client) User() *models.User {
	return c.user
}

// Room returns the client's current room id, or "".
func (c *Client) Room() string {
	c.roomMu.RLock()
	defer c.roomMu.RUnlock()
	return c.roomID
}

func (c *Client) setRoom(roomID string) {
	c.roomMu.Lock()
	c.roomID = roomID
	c.roomMu.Unlock()
}
