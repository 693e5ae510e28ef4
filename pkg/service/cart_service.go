package service

import (
	"context"

	"github.com/example/foodhall/pkg/models"
	"github.com/example/foodhall/pkg/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CartService reads the store on every call; nothing is cached.
type CartService struct {
	cart   repository.CartRepository
	items  repository.ItemRepository
	logger *zap.Logger
}

func NewCartService(cart repository.CartRepository, items repository.ItemRepository, logger *zap.Logger) *CartService {
	return &CartService{cart: cart, items: items, logger: logger.Named("cart-service")}
}

// GetCart returns the user's entries with items expanded. Entries whose item was deleted
// from the menu are left out.
func (s *CartService) GetCart(ctx context.Context, userID string) ([]models.CartLine, error) {
	user, err := userIDFrom(userID)
	if err != nil {
		return nil, err
	}

	entries, err := s.cart.ListByUser(ctx, user)
	if err != nil {
		return nil, storeErr(err, "cart")
	}
	ids := make([]primitive.ObjectID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.Item)
	}
	items, err := s.items.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "items")
	}

	lines := make([]models.CartLine, 0, len(entries))
	for i := range entries {
		item, ok := items[entries[i].Item]
		if !ok {
			s.logger.Debug("Skipping cart entry for missing item",
				zap.String("entry_id", entries[i].ID.Hex()),
				zap.String("item_id", entries[i].Item.Hex()))
			continue
		}
		lines = append(lines, models.NewCartLine(&entries[i], item))
	}
	return lines, nil
}

// AddItem sets the quantity of the (user, item) entry, creating it on first add.
func (s *CartService) AddItem(ctx context.Context, userID, itemID string, quantity int) (*models.CartLine, error) {
	user, err := userIDFrom(userID)
	if err != nil {
		return nil, err
	}
	itemOID, err := objectID(itemID, "Item")
	if err != nil {
		return nil, err
	}
	item, err := s.items.GetByID(ctx, itemOID)
	if err != nil {
		return nil, storeErr(err, "Item")
	}

	entry, err := s.cart.Upsert(ctx, user, itemOID, clampQuantity(quantity))
	if err != nil {
		return nil, storeErr(err, "cart entry")
	}
	line := models.NewCartLine(entry, item)
	return &line, nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, entryID string, quantity int) (*models.CartLine, error) {
	user, err := userIDFrom(userID)
	if err != nil {
		return nil, err
	}
	id, err := objectID(entryID, "Cart item")
	if err != nil {
		return nil, err
	}

	entry, err := s.cart.SetQuantity(ctx, id, user, clampQuantity(quantity))
	if err != nil {
		return nil, storeErr(err, "Cart item")
	}
	item, err := s.items.GetByID(ctx, entry.Item)
	if err != nil {
		return nil, storeErr(err, "Item")
	}
	line := models.NewCartLine(entry, item)
	return &line, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, entryID string) error {
	user, err := userIDFrom(userID)
	if err != nil {
		return err
	}
	id, err := objectID(entryID, "Cart item")
	if err != nil {
		return err
	}
	return storeErr(s.cart.Delete(ctx, id, user), "Cart item")
}

// ClearCart reports how many entries were removed; an empty cart is not an error.
func (s *CartService) ClearCart(ctx context.Context, userID string) (int64, error) {
	user, err := userIDFrom(userID)
	if err != nil {
		return 0, err
	}
	n, err := s.cart.DeleteByUser(ctx, user)
	if err != nil {
		return 0, storeErr(err, "cart")
	}
	return n, nil
}

// clampQuantity keeps every stored quantity at one or more.
func clampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}
