package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/echo-go-api/internal/models"
)

func exerciseMessagePagination(t *testing.T, store MessageStore, chatID uint) {
	t.Helper()
	ctx := context.Background()

	sent := make([]models.Message, 0, 5)
	for _, text := range []string{"m1", "m2", "m3", "m4", "m5"} {
		message := models.Message{ChatID: chatID, SenderID: 1, Text: text}
		require.NoError(t, store.Insert(ctx, &message))
		require.False(t, message.ID.IsZero())
		require.False(t, message.Timestamp.IsZero())
		sent = append(sent, message)
	}
	require.NoError(t, store.Insert(ctx, &models.Message{ChatID: chatID + 1, SenderID: 1, Text: "elsewhere"}))

	page, err := store.ListByChat(ctx, chatID, primitive.NilObjectID, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "m5", page[0].Text)
	require.Equal(t, "m4", page[1].Text)

	page, err = store.ListByChat(ctx, chatID, sent[3].ID, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "m3", page[0].Text)
	require.Equal(t, "m2", page[1].Text)

	page, err = store.ListByChat(ctx, chatID, sent[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "m1", page[0].Text)

	page, err = store.ListByChat(ctx, chatID, sent[0].ID, 2)
	require.NoError(t, err)
	require.Empty(t, page)
}

func TestMemoryMessageStorePagination(t *testing.T) {
	store := NewMemoryMessageStore()
	exerciseMessagePagination(t, store, 10)
	require.Equal(t, 5, store.Count(10))
}

func TestMemoryMessageStoreFailure(t *testing.T) {
	store := NewMemoryMessageStore()
	store.FailWith(mongo.ErrClientDisconnected)

	err := store.Insert(context.Background(), &models.Message{ChatID: 1, Text: "x"})
	require.ErrorIs(t, err, mongo.ErrClientDisconnected)
	require.Zero(t, store.Count(1))
}

func TestMongoMessageStorePagination(t *testing.T) {
	uri := os.Getenv("ECHO_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("ECHO_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database("echo_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() { _ = db.Drop(context.Background()) })

	require.NoError(t, EnsureMessageIndexes(ctx, db))
	exerciseMessagePagination(t, NewMongoMessageStore(db), 10)
}
