package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category string

const (
	CategoryBreakfast Category = "Breakfast"
	CategoryLunch     Category = "Lunch"
	CategoryDinner    Category = "Dinner"
	CategoryMexican   Category = "Mexican"
	CategoryItalian   Category = "Italian"
	CategoryDesserts  Category = "Desserts"
	CategoryDrinks    Category = "Drinks"
)

var Categories = []Category{
	CategoryBreakfast, CategoryLunch, CategoryDinner, CategoryMexican,
	CategoryItalian, CategoryDesserts, CategoryDrinks,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Item is a menu entry. ImageURL holds the storage key of the uploaded image.
type Item struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Category    Category           `bson:"category" json:"category"`
	Price       float64            `bson:"price" json:"price"`
	Rating      float64            `bson:"rating" json:"rating"`
	Hearts      int64              `bson:"hearts" json:"hearts"`
	ImageURL    string             `bson:"imageUrl" json:"imageUrl"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
