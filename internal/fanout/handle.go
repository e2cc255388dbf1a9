package fanout

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Handle is the inbox of one joined session. Payloads are handed over through a buffered channel
// that the session's writer goroutine drains.
type Handle struct {
	id        string
	userID    uint
	send      chan []byte
	evicted   chan struct{}
	evictOnce sync.Once
}

// NewHandle creates an inbox for userID holding up to buffer undelivered payloads.
func NewHandle(userID uint, buffer int) *Handle {
	if buffer <= 0 {
		buffer = 1
	}
	return &Handle{
		id:      uuid.NewString(),
		userID:  userID,
		send:    make(chan []byte, buffer),
		evicted: make(chan struct{}),
	}
}

func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) UserID() uint {
	return h.userID
}

// Messages yields published payloads. The channel is never closed; watch Evicted or the session's own lifecycle.
func (h *Handle) Messages() <-chan []byte {
	return h.send
}

// Evicted is closed once the user's membership of the group was revoked.
func (h *Handle) Evicted() <-chan struct{} {
	return h.evicted
}

func (h *Handle) evict() {
	h.evictOnce.Do(func() { close(h.evicted) })
}

// ChatGroup returns the group key of a chat.
func ChatGroup(chatID uint) string {
	return fmt.Sprintf("chat_%d", chatID)
}
