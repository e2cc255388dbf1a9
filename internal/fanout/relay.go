package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	eventMessage = "message"
	eventEvict   = "evict"
)

type relayEvent struct {
	Source  string          `json:"source"`
	Kind    string          `json:"kind"`
	Group   string          `json:"group"`
	Payload json.RawMessage `json:"payload,omitempty"`
	UserID  uint            `json:"user_id,omitempty"`
	SentAt  time.Time       `json:"sent_at"`
}

// Relay is a Bus spanning several API nodes. Every publish is delivered to the local hub and
// broadcast to peers over NATS when configured, otherwise over Redis pub/sub. Events carrying
// this node's id are ignored on receipt.
type Relay struct {
	hub         *Hub
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	nodeID      string
	logger      zerolog.Logger
}

// NewRelay wraps hub. With neither transport configured the relay behaves exactly like the hub.
func NewRelay(hub *Hub, redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *Relay {
	relay := &Relay{
		hub:    hub,
		nodeID: uuid.NewString(),
		logger: logger.With().Str("component", "fanout_relay").Logger(),
	}

	if channelBase == "" {
		return relay
	}

	switch {
	case natsConn != nil:
		relay.nats = natsConn
		relay.natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".chat"
	case redisClient != nil:
		relay.redis = redisClient
		relay.redisStream = channelBase + ":chat"
	}

	return relay
}

// NodeID identifies this process in relayed events.
func (r *Relay) NodeID() string {
	return r.nodeID
}

// Start subscribes to the configured transport. The subscription is confirmed before Start returns.
func (r *Relay) Start(ctx context.Context) error {
	switch {
	case r.nats != nil:
		return r.consumeNATS(ctx)
	case r.redis != nil:
		return r.consumeRedis(ctx)
	default:
		return nil
	}
}

func (r *Relay) JoinGroup(key string, handle *Handle) {
	r.hub.JoinGroup(key, handle)
}

func (r *Relay) LeaveGroup(key string, handle *Handle) {
	r.hub.LeaveGroup(key, handle)
}

func (r *Relay) Members(key string) int {
	return r.hub.Members(key)
}

func (r *Relay) Publish(ctx context.Context, key string, payload []byte) error {
	r.hub.deliver(key, payload)
	return r.broadcast(ctx, relayEvent{Kind: eventMessage, Group: key, Payload: payload})
}

func (r *Relay) Evict(ctx context.Context, key string, userID uint) error {
	r.hub.evictLocal(key, userID)
	return r.broadcast(ctx, relayEvent{Kind: eventEvict, Group: key, UserID: userID})
}

func (r *Relay) broadcast(ctx context.Context, event relayEvent) error {
	if r.nats == nil && r.redis == nil {
		return nil
	}

	event.Source = r.nodeID
	event.SentAt = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if r.nats != nil {
		return r.nats.Publish(r.natsSubject, payload)
	}
	return r.redis.Publish(ctx, r.redisStream, payload).Err()
}

func (r *Relay) consumeRedis(ctx context.Context) error {
	pubsub := r.redis.Subscribe(ctx, r.redisStream)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	go func() {
		defer func() {
			_ = pubsub.Close()
		}()
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return
				}
				r.logger.Error().Err(err).Msg("fanout redis subscription closed")
				return
			}
			r.handleEvent([]byte(msg.Payload))
		}
	}()

	return nil
}

func (r *Relay) consumeNATS(ctx context.Context) error {
	sub, err := r.nats.Subscribe(r.natsSubject, func(msg *nats.Msg) {
		r.handleEvent(msg.Data)
	})
	if err != nil {
		return err
	}
	if err := r.nats.Flush(); err != nil {
		r.logger.Warn().Err(err).Msg("failed to flush nats subscription")
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to drain fanout nats subscription")
		}
	}()

	return nil
}

func (r *Relay) handleEvent(data []byte) {
	var event relayEvent
	if err := json.Unmarshal(data, &event); err != nil {
		r.logger.Warn().Err(err).Msg("invalid fanout event")
		return
	}

	if event.Source == r.nodeID {
		return
	}

	switch event.Kind {
	case eventMessage:
		r.hub.deliver(event.Group, event.Payload)
	case eventEvict:
		r.hub.evictLocal(event.Group, event.UserID)
	default:
		r.logger.Warn().Str("kind", event.Kind).Msg("unknown fanout event kind")
	}
}
