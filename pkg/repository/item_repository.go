package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/example/foodhall/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) error
	List(ctx context.Context) ([]models.Item, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Item, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Item, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	IncrementHearts(ctx context.Context, id primitive.ObjectID) (*models.Item, error)
}

type itemRepository struct {
	coll *mongo.Collection
}

func (r *itemRepository) Create(ctx context.Context, item *models.Item) error {
	now := time.Now()
	item.CreatedAt, item.UpdatedAt = now, now
	res, err := r.coll.InsertOne(ctx, item)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", translate(err))
	}
	item.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *itemRepository) List(ctx context.Context) ([]models.Item, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer cursor.Close(ctx)

	items := []models.Item{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return items, nil
}

func (r *itemRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Item, error) {
	var item models.Item
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&item); err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *itemRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Item, error) {
	out := make(map[primitive.ObjectID]*models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var item models.Item
		if err := cursor.Decode(&item); err != nil {
			return nil, fmt.Errorf("failed to decode item: %w", err)
		}
		out[item.ID] = &item
	}
	return out, cursor.Err()
}

func (r *itemRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *itemRepository) IncrementHearts(ctx context.Context, id primitive.ObjectID) (*models.Item, error) {
	var item models.Item
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"hearts": 1}, "$set": bson.M{"updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&item)
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}
