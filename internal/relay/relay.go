package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const channelPrefix = "collab:room:"

// envelope wraps a room event for transit between hub nodes. The node id
// lets subscribers drop their own publications.
type envelope struct {
	Node string          `json:"node"`
	Data json.RawMessage `json:"data"`
}

// Bridge fans room events out to peer hub nodes over Redis pub/sub so a
// room can span multiple server processes.
type Bridge struct {
	rdb    *redis.Client
	nodeID string
	logger *slog.Logger
}

// New connects to Redis and returns a Bridge.
func New(redisURL string, logger *slog.Logger) (*Bridge, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Bridge{
		rdb:    rdb,
		nodeID: uuid.New().String(),
		logger: logger,
	}, nil
}

// Close closes the Redis connection.
func (b *Bridge) Close() error {
	return b.rdb.Close()
}

// Publish forwards an encoded room event to peer nodes.
func (b *Bridge) Publish(roomID string, data []byte) error {
	payload, err := json.Marshal(envelope{Node: b.nodeID, Data: data})
	if err != nil {
		return err
	}
	return b.rdb.Publish(context.Background(), channelPrefix+roomID, payload).Err()
}

// Subscribe listens for peer events and hands them to deliver. Events
// published by this node are dropped. Blocks until ctx is cancelled.
func (b *Bridge) Subscribe(ctx context.Context, deliver func(roomID string, data []byte)) {
	pubsub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		b.logger.Error("relay subscription failed", slog.Any("error", err))
		return
	}
	b.logger.Info("relay subscribed", slog.String("pattern", channelPrefix+"*"))

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("bad relay payload", slog.Any("error", err))
				continue
			}
			if env.Node == b.nodeID {
				continue
			}
			roomID := strings.TrimPrefix(msg.Channel, channelPrefix)
			deliver(roomID, env.Data)
		case <-ctx.Done():
			return
		}
	}
}
