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

// OrderPatch is a partial update; nil fields are left untouched.
type OrderPatch struct {
	FirstName        *string
	LastName         *string
	Phone            *string
	Email            *string
	Address          *string
	City             *string
	Zipcode          *string
	Status           *models.OrderStatus
	ExpectedDelivery *time.Time
	DeliveredAt      *time.Time
}

func (p OrderPatch) fields() bson.M {
	set := bson.M{}
	put := func(key string, v *string) {
		if v != nil {
			set[key] = *v
		}
	}
	put("firstName", p.FirstName)
	put("lastName", p.LastName)
	put("phone", p.Phone)
	put("email", p.Email)
	put("address", p.Address)
	put("city", p.City)
	put("zipcode", p.Zipcode)
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.ExpectedDelivery != nil {
		set["expectedDelivery"] = *p.ExpectedDelivery
	}
	if p.DeliveredAt != nil {
		set["deliveredAt"] = *p.DeliveredAt
	}
	return set
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	GetBySession(ctx context.Context, sessionID string) (*models.Order, error)
	ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	AttachSession(ctx context.Context, id primitive.ObjectID, sessionID, paymentIntentID string) error
	SetPaymentStatus(ctx context.Context, id primitive.ObjectID, status models.PaymentStatus) error
	// MarkPaid moves the order owning sessionID to succeeded. transitioned is false when the
	// order had already succeeded.
	MarkPaid(ctx context.Context, sessionID string) (order *models.Order, transitioned bool, err error)
	Update(ctx context.Context, id primitive.ObjectID, patch OrderPatch) (*models.Order, error)
}

type orderRepository struct {
	coll *mongo.Collection
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now
	res, err := r.coll.InsertOne(ctx, order)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", translate(err))
	}
	order.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *orderRepository) GetBySession(ctx context.Context, sessionID string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"sessionId": sessionID})
}

func (r *orderRepository) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var order models.Order
	if err := r.coll.FindOne(ctx, filter).Decode(&order); err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.Order, error) {
	return r.find(ctx, bson.M{"user": user})
}

func (r *orderRepository) ListAll(ctx context.Context) ([]models.Order, error) {
	return r.find(ctx, bson.M{})
}

func (r *orderRepository) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) AttachSession(ctx context.Context, id primitive.ObjectID, sessionID, paymentIntentID string) error {
	set := bson.M{"sessionId": sessionID, "updatedAt": time.Now()}
	if paymentIntentID != "" {
		set["paymentIntentId"] = paymentIntentID
	}
	return r.updateOne(ctx, id, set)
}

func (r *orderRepository) SetPaymentStatus(ctx context.Context, id primitive.ObjectID, status models.PaymentStatus) error {
	return r.updateOne(ctx, id, bson.M{"paymentStatus": status, "updatedAt": time.Now()})
}

func (r *orderRepository) updateOne(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepository) MarkPaid(ctx context.Context, sessionID string) (*models.Order, bool, error) {
	var order models.Order
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"sessionId": sessionID, "paymentStatus": bson.M{"$ne": models.PaymentSucceeded}},
		bson.M{"$set": bson.M{"paymentStatus": models.PaymentSucceeded, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if err == nil {
		return &order, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to mark order paid: %w", err)
	}

	existing, err := r.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *orderRepository) Update(ctx context.Context, id primitive.ObjectID, patch OrderPatch) (*models.Order, error) {
	set := patch.fields()
	set["updatedAt"] = time.Now()

	var order models.Order
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}
