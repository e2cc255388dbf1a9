package repository

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/echo-go-api/internal/models"
)

// MemoryMessageStore keeps messages in process. It backs local development without a document store
// and is used by tests.
type MemoryMessageStore struct {
	mu       sync.RWMutex
	messages map[uint][]models.Message
	failWith error
}

// NewMemoryMessageStore constructs an empty in-memory message store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{messages: make(map[uint][]models.Message)}
}

// FailWith makes every subsequent Insert return err. Passing nil restores normal behaviour.
func (s *MemoryMessageStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *MemoryMessageStore) Insert(ctx context.Context, message *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}

	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	if message.Attachments == nil {
		message.Attachments = []string{}
	}

	stored := *message
	stored.Attachments = append([]string(nil), message.Attachments...)
	s.messages[message.ChatID] = append(s.messages[message.ChatID], stored)
	return nil
}

func (s *MemoryMessageStore) ListByChat(ctx context.Context, chatID uint, before primitive.ObjectID, limit int) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := append([]models.Message(nil), s.messages[chatID]...)
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return bytes.Compare(all[i].ID[:], all[j].ID[:]) > 0
	})

	result := make([]models.Message, 0, limit)
	for _, message := range all {
		if !before.IsZero() && bytes.Compare(message.ID[:], before[:]) >= 0 {
			continue
		}
		result = append(result, message)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// Count returns the number of stored messages for chatID.
func (s *MemoryMessageStore) Count(chatID uint) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[chatID])
}
