package service

import (
	"context"
	"io"
	"math"
	"strings"

	"github.com/example/foodhall/pkg/apperr"
	"github.com/example/foodhall/pkg/events"
	"github.com/example/foodhall/pkg/models"
	"github.com/example/foodhall/pkg/repository"
	"github.com/example/foodhall/pkg/storage"
	"go.uber.org/zap"
)

// NewItem is the admin create form. Image is optional.
type NewItem struct {
	Name        string
	Description string
	Category    models.Category
	Price       float64
	Rating      float64
	Hearts      int64
	ImageName   string
	ImageType   string
	Image       io.Reader
}

func (n *NewItem) validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return apperr.InvalidInput("Name is required")
	}
	if !n.Category.Valid() {
		return apperr.InvalidInput("Invalid category")
	}
	if math.IsNaN(n.Price) || math.IsInf(n.Price, 0) || n.Price < 0 {
		return apperr.InvalidInput("Price must be a non-negative number")
	}
	if math.IsNaN(n.Rating) || n.Rating < 0 || n.Rating > 5 {
		return apperr.InvalidInput("Rating must be between 0 and 5")
	}
	if n.Hearts < 0 {
		return apperr.InvalidInput("Hearts must not be negative")
	}
	return nil
}

type CatalogService struct {
	items  repository.ItemRepository
	images storage.ImageStore
	cache  repository.Cache
	events events.Publisher
	logger *zap.Logger
}

func NewCatalogService(
	items repository.ItemRepository,
	images storage.ImageStore,
	cache repository.Cache,
	publisher events.Publisher,
	logger *zap.Logger,
) *CatalogService {
	return &CatalogService{
		items:  items,
		images: images,
		cache:  cache,
		events: publisher,
		logger: logger.Named("catalog-service"),
	}
}

func (s *CatalogService) List(ctx context.Context) ([]models.Item, error) {
	if items, err := s.cache.GetMenu(ctx); err == nil {
		return items, nil
	}

	items, err := s.items.List(ctx)
	if err != nil {
		return nil, storeErr(err, "items")
	}
	if err := s.cache.SetMenu(ctx, items); err != nil {
		s.logger.Warn("Failed to cache menu", zap.Error(err))
	}
	return items, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*models.Item, error) {
	oid, err := objectID(id, "Item")
	if err != nil {
		return nil, err
	}
	item, err := s.items.GetByID(ctx, oid)
	if err != nil {
		return nil, storeErr(err, "Item")
	}
	return item, nil
}

func (s *CatalogService) Create(ctx context.Context, in NewItem) (*models.Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	item := &models.Item{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		Rating:      in.Rating,
		Hearts:      in.Hearts,
	}
	if in.Image != nil {
		key, err := s.images.Save(ctx, in.ImageName, in.ImageType, in.Image)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to store image", err)
		}
		item.ImageURL = key
	}

	if err := s.items.Create(ctx, item); err != nil {
		s.removeImage(ctx, item.ImageURL)
		return nil, storeErr(err, "Item")
	}

	s.invalidateMenu(ctx)
	s.events.Publish(events.Event{
		Kind:     events.ItemCreated,
		EntityID: item.ID.Hex(),
		Data:     map[string]interface{}{"name": item.Name, "price": item.Price},
	})
	return item, nil
}

// Delete removes the item and, best effort, its stored image.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id, "Item")
	if err != nil {
		return err
	}
	item, err := s.items.GetByID(ctx, oid)
	if err != nil {
		return storeErr(err, "Item")
	}
	if err := s.items.Delete(ctx, oid); err != nil {
		return storeErr(err, "Item")
	}

	s.removeImage(ctx, item.ImageURL)
	s.invalidateMenu(ctx)
	s.events.Publish(events.Event{Kind: events.ItemDeleted, EntityID: id})
	return nil
}

// Heart bumps the popularity counter.
func (s *CatalogService) Heart(ctx context.Context, id string) (*models.Item, error) {
	oid, err := objectID(id, "Item")
	if err != nil {
		return nil, err
	}
	item, err := s.items.IncrementHearts(ctx, oid)
	if err != nil {
		return nil, storeErr(err, "Item")
	}
	s.invalidateMenu(ctx)
	return item, nil
}

func (s *CatalogService) removeImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Error("Failed to remove item image", zap.String("key", key), zap.Error(err))
	}
}

func (s *CatalogService) invalidateMenu(ctx context.Context) {
	if err := s.cache.InvalidateMenu(ctx); err != nil {
		s.logger.Warn("Failed to invalidate menu cache", zap.Error(err))
	}
}
