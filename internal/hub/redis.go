package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"voice-room-service/internal/observability/logging"
)

// NewRedisClient connects to addr, which is either host:port or a
// redis:// URL.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

type relayEnvelope struct {
	Origin string          `json:"origin"`
	RoomID string          `json:"roomId"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// RedisRelay shares room broadcasts between instances over a Redis
// pub/sub channel. Messages carry the publishing instance id so each
// instance ignores its own.
type RedisRelay struct {
	client     *redis.Client
	channel    string
	instanceID string
	logger     zerolog.Logger
}

func NewRedisRelay(client *redis.Client, channel, instanceID string) *RedisRelay {
	return &RedisRelay{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		logger:     logging.WithComponent("redis-relay"),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, roomID, event string, payload any) error {
	body, err := r.encode(roomID, event, payload)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, body).Err()
}

// Run delivers broadcasts from other instances into h until ctx is done.
func (r *RedisRelay) Run(ctx context.Context, h *Hub) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info().Str("channel", r.channel).Str("instanceId", r.instanceID).Msg("Relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(h, msg.Payload)
		}
	}
}

func (r *RedisRelay) encode(roomID, event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal relay payload: %w", err)
	}
	return json.Marshal(relayEnvelope{
		Origin: r.instanceID,
		RoomID: roomID,
		Event:  event,
		Data:   data,
	})
}

func (r *RedisRelay) deliver(h *Hub, raw string) bool {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.logger.Warn().Err(err).Msg("Dropping malformed relay message")
		return false
	}
	if env.Origin == r.instanceID || env.RoomID == "" {
		return false
	}
	h.DeliverLocal(env.RoomID, env.Event, env.Data)
	return true
}
