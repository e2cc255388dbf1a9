package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/echo-go-api/internal/models"
)

const messagesCollection = "messages"

// MessageStore is the append-only chat message log.
type MessageStore interface {
	Insert(ctx context.Context, message *models.Message) error
	ListByChat(ctx context.Context, chatID uint, before primitive.ObjectID, limit int) ([]models.Message, error)
}

type mongoMessageStore struct {
	collection *mongo.Collection
}

// NewMongoMessageStore returns a message store backed by the messages collection of db.
func NewMongoMessageStore(db *mongo.Database) MessageStore {
	return &mongoMessageStore{collection: db.Collection(messagesCollection)}
}

// EnsureMessageIndexes creates the compound index used by history pagination.
func EnsureMessageIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(messagesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "chat_id", Value: 1}, {Key: "_id", Value: -1}},
		Options: options.Index().SetName("chat_id_id_desc"),
	})
	return err
}

// Insert assigns the id and timestamp on the server side of the pipeline and appends the document.
func (s *mongoMessageStore) Insert(ctx context.Context, message *models.Message) error {
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	if message.Attachments == nil {
		message.Attachments = []string{}
	}

	_, err := s.collection.InsertOne(ctx, message)
	return err
}

// ListByChat returns up to limit messages older than before, newest first. A zero cursor starts at the newest message.
func (s *mongoMessageStore) ListByChat(ctx context.Context, chatID uint, before primitive.ObjectID, limit int) ([]models.Message, error) {
	filter := bson.M{"chat_id": chatID}
	if !before.IsZero() {
		filter["_id"] = bson.M{"$lt": before}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := make([]models.Message, 0, limit)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
