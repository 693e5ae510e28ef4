package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/foodhall/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CartRepository interface {
	ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.CartEntry, error)
	// Upsert sets the quantity of the (user, item) entry, creating it when absent.
	Upsert(ctx context.Context, user, item primitive.ObjectID, quantity int) (*models.CartEntry, error)
	SetQuantity(ctx context.Context, id, user primitive.ObjectID, quantity int) (*models.CartEntry, error)
	Delete(ctx context.Context, id, user primitive.ObjectID) error
	DeleteByUser(ctx context.Context, user primitive.ObjectID) (int64, error)
}

type cartRepository struct {
	coll *mongo.Collection
}

func (r *cartRepository) ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.CartEntry, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"user": user}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []models.CartEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return entries, nil
}

func (r *cartRepository) Upsert(ctx context.Context, user, item primitive.ObjectID, quantity int) (*models.CartEntry, error) {
	now := time.Now()
	filter := bson.M{"user": user, "item": item}
	update := bson.M{
		"$set":         bson.M{"quantity": quantity, "updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var entry models.CartEntry
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&entry)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent upsert inserted the entry first; the retry matches it and updates.
		err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&entry)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cart entry: %w", translate(err))
	}
	return &entry, nil
}

func (r *cartRepository) SetQuantity(ctx context.Context, id, user primitive.ObjectID, quantity int) (*models.CartEntry, error) {
	var entry models.CartEntry
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user": user},
		bson.M{"$set": bson.M{"quantity": quantity, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update cart entry: %w", err)
	}
	return &entry, nil
}

func (r *cartRepository) Delete(ctx context.Context, id, user primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "user": user})
	if err != nil {
		return fmt.Errorf("failed to delete cart entry: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cartRepository) DeleteByUser(ctx context.Context, user primitive.ObjectID) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"user": user})
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart: %w", err)
	}
	return res.DeletedCount, nil
}
