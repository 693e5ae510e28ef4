package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartEntry is unique per (User, Item).
type CartEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	User      primitive.ObjectID `bson:"user"`
	Item      primitive.ObjectID `bson:"item"`
	Quantity  int                `bson:"quantity"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

// CartItemView is the item projection embedded in a cart line.
type CartItemView struct {
	ID       string  `json:"_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl"`
}

// CartLine is the single canonical shape returned by every cart operation.
type CartLine struct {
	ID       string       `json:"_id"`
	ItemID   string       `json:"itemId"`
	Item     CartItemView `json:"item"`
	Quantity int          `json:"quantity"`
}

func NewCartLine(entry *CartEntry, item *Item) CartLine {
	return CartLine{
		ID:     entry.ID.Hex(),
		ItemID: item.ID.Hex(),
		Item: CartItemView{
			ID:       item.ID.Hex(),
			Name:     item.Name,
			Price:    item.Price,
			ImageURL: item.ImageURL,
		},
		Quantity: entry.Quantity,
	}
}
