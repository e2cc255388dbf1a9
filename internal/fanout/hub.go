package fanout

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/echo-go-api/internal/observability"
)

// Bus delivers payloads to every handle joined to a group key.
type Bus interface {
	JoinGroup(key string, handle *Handle)
	LeaveGroup(key string, handle *Handle)
	Publish(ctx context.Context, key string, payload []byte) error
	Evict(ctx context.Context, key string, userID uint) error
	Members(key string) int
}

// Hub is the in-process Bus. Delivery never blocks: a handle whose inbox is full misses the payload.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Handle]struct{}
	log    zerolog.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		groups: make(map[string]map[*Handle]struct{}),
		log:    logger.With().Str("component", "fanout_hub").Logger(),
	}
}

func (h *Hub) JoinGroup(key string, handle *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.groups[key]; !exists {
		h.groups[key] = make(map[*Handle]struct{})
	}
	h.groups[key][handle] = struct{}{}
	h.log.Debug().Str("group", key).Uint("user_id", handle.UserID()).Str("handle_id", handle.ID()).Msg("handle joined group")
}

// LeaveGroup is idempotent and safe for handles that never joined.
func (h *Hub) LeaveGroup(key string, handle *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	handles, ok := h.groups[key]
	if !ok {
		return
	}
	if _, joined := handles[handle]; !joined {
		return
	}
	delete(handles, handle)
	if len(handles) == 0 {
		delete(h.groups, key)
	}
	h.log.Debug().Str("group", key).Uint("user_id", handle.UserID()).Str("handle_id", handle.ID()).Msg("handle left group")
}

// Publish delivers payload to the handles joined at call time.
func (h *Hub) Publish(_ context.Context, key string, payload []byte) error {
	h.deliver(key, payload)
	return nil
}

// Evict signals every handle of userID in the group to close.
func (h *Hub) Evict(_ context.Context, key string, userID uint) error {
	h.evictLocal(key, userID)
	return nil
}

func (h *Hub) Members(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[key])
}

// Contains reports whether handle is currently joined to key.
func (h *Hub) Contains(key string, handle *Handle) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.groups[key][handle]
	return ok
}

func (h *Hub) deliver(key string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for handle := range h.groups[key] {
		select {
		case handle.send <- payload:
		default:
			observability.FanoutDropped().Inc()
			h.log.Warn().Str("group", key).Uint("user_id", handle.UserID()).Msg("dropping payload for slow session")
		}
	}
}

func (h *Hub) evictLocal(key string, userID uint) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for handle := range h.groups[key] {
		if handle.UserID() == userID {
			handle.evict()
			h.log.Info().Str("group", key).Uint("user_id", userID).Msg("evicting session")
		}
	}
}
