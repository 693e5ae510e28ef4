package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
	PaymentCard   PaymentMethod = "card"
	PaymentUPI    PaymentMethod = "upi"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentOnline, PaymentCard, PaymentUPI:
		return true
	}
	return false
}

// RequiresGateway is true for every method settled through the payment gateway.
func (m PaymentMethod) RequiresGateway() bool {
	return m != PaymentCOD
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

type OrderStatus string

const (
	StatusProcessing     OrderStatus = "processing"
	StatusOutForDelivery OrderStatus = "outForDelivery"
	StatusDelivered      OrderStatus = "delivered"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusOutForDelivery, StatusDelivered:
		return true
	}
	return false
}

// OrderItemSnapshot copies the item at checkout time; later catalog edits never touch it.
type OrderItemSnapshot struct {
	Name     string  `bson:"name" json:"name"`
	Price    float64 `bson:"price" json:"price"`
	ImageURL string  `bson:"imageUrl" json:"imageUrl"`
}

type OrderLine struct {
	ID       primitive.ObjectID `bson:"_id" json:"_id"`
	ItemID   primitive.ObjectID `bson:"itemId,omitempty" json:"itemId,omitempty"`
	Item     OrderItemSnapshot  `bson:"item" json:"item"`
	Quantity int                `bson:"quantity" json:"quantity"`
}

type Contact struct {
	FirstName string `bson:"firstName" json:"firstName"`
	LastName  string `bson:"lastName" json:"lastName"`
	Phone     string `bson:"phone" json:"phone"`
	Email     string `bson:"email" json:"email"`
}

type Shipping struct {
	Address string `bson:"address" json:"address"`
	City    string `bson:"city" json:"city"`
	Zipcode string `bson:"zipcode" json:"zipcode"`
}

type Order struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	User             primitive.ObjectID `bson:"user" json:"user"`
	Contact          `bson:",inline"`
	Shipping         `bson:",inline"`
	Items            []OrderLine   `bson:"items" json:"items"`
	PaymentMethod    PaymentMethod `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus    PaymentStatus `bson:"paymentStatus" json:"paymentStatus"`
	SessionID        string        `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	PaymentIntentID  string        `bson:"paymentIntentId,omitempty" json:"paymentIntentId,omitempty"`
	Subtotal         float64       `bson:"subtotal" json:"subtotal"`
	Tax              float64       `bson:"tax" json:"tax"`
	ShippingCost     float64       `bson:"shipping" json:"shipping"`
	Total            float64       `bson:"total" json:"total"`
	Status           OrderStatus   `bson:"status" json:"status"`
	ExpectedDelivery *time.Time    `bson:"expectedDelivery,omitempty" json:"expectedDelivery,omitempty"`
	DeliveredAt      *time.Time    `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt        time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time     `bson:"updatedAt" json:"updatedAt"`
}
