package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/foodhall/pkg/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	itemsCollection  = "items"
	usersCollection  = "users"
	cartCollection   = "cartitems"
	ordersCollection = "orders"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	return &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the stores rely on. The (user, item) unique index is what
// keeps concurrent adds of the same item from producing two cart entries.
func (m *MongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		cartCollection: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "item", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ordersCollection: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "paymentStatus", Value: 1}}},
			{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}},
		},
		m.config.Collection: {
			{Keys: bson.D{{Key: "entity_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := m.database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (m *MongoRepository) Items() ItemRepository {
	return &itemRepository{coll: m.database.Collection(itemsCollection)}
}

func (m *MongoRepository) Users() UserRepository {
	return &userRepository{coll: m.database.Collection(usersCollection)}
}

func (m *MongoRepository) Cart() CartRepository {
	return &cartRepository{coll: m.database.Collection(cartCollection)}
}

func (m *MongoRepository) Orders() OrderRepository {
	return &orderRepository{coll: m.database.Collection(ordersCollection)}
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Service   string             `bson:"service" json:"service"`
	Action    string             `bson:"action" json:"action"`
	EntityID  string             `bson:"entity_id" json:"entityId"`
	Data      bson.M             `bson:"data" json:"data"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

func (m *MongoRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	collection := m.database.Collection(m.config.Collection)
	log.CreatedAt = time.Now()
	_, err := collection.InsertOne(ctx, log)
	return err
}

func (m *MongoRepository) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	collection := m.database.Collection(m.config.Collection)

	filter := bson.M{"entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*AuditLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
