package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/foodhall/pkg/config"
	"github.com/example/foodhall/pkg/ledger"
	"github.com/example/foodhall/pkg/models"
	"github.com/example/foodhall/pkg/repository"
	"github.com/example/foodhall/pkg/service"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

type AuthAPI interface {
	Register(ctx context.Context, name, email, password string) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	User(ctx context.Context, userID string) (*models.User, error)
	Profile(ctx context.Context, userID string) (*models.Profile, error)
}

type CatalogAPI interface {
	List(ctx context.Context) ([]models.Item, error)
	Get(ctx context.Context, id string) (*models.Item, error)
	Create(ctx context.Context, in service.NewItem) (*models.Item, error)
	Delete(ctx context.Context, id string) error
	Heart(ctx context.Context, id string) (*models.Item, error)
}

type CartAPI interface {
	GetCart(ctx context.Context, userID string) ([]models.CartLine, error)
	AddItem(ctx context.Context, userID, itemID string, quantity int) (*models.CartLine, error)
	UpdateQuantity(ctx context.Context, userID, entryID string, quantity int) (*models.CartLine, error)
	RemoveItem(ctx context.Context, userID, entryID string) error
	ClearCart(ctx context.Context, userID string) (int64, error)
}

type OrderAPI interface {
	CreateOrder(ctx context.Context, userID string, in service.CreateOrderInput) (*service.CreateOrderResult, error)
	ConfirmPayment(ctx context.Context, userID, sessionID string) (*models.Order, error)
	GetOrders(ctx context.Context, userID string) ([]models.Order, error)
	GetOrder(ctx context.Context, userID, orderID, email string) (*models.Order, error)
	UpdateOrder(ctx context.Context, userID, orderID, email string, in service.ContactUpdate) (*models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	UpdateAnyOrder(ctx context.Context, orderID string, in service.AdminOrderUpdate) (*models.Order, error)
	FollowUps(ctx context.Context, limit int) ([]ledger.PaymentAttempt, error)
	History(ctx context.Context, orderID string, limit int) ([]*repository.AuditLog, error)
}

// TokenVerifier returns the user id carried by a bearer token.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type Services struct {
	Auth    AuthAPI
	Catalog CatalogAPI
	Cart    CartAPI
	Orders  OrderAPI
	Tokens  TokenVerifier
}

type Gateway struct {
	config   *config.Config
	services Services
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
}

func NewGateway(cfg *config.Config, logger *zap.Logger, services Services) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(corsMiddleware(&cfg.CORS))

	return &Gateway{
		config:   cfg,
		services: services,
		logger:   logger,
		router:   router,
	}
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if g.config.Storage.Driver == "local" {
		g.router.Static("/uploads", g.config.Storage.UploadDir)
	}

	requireAuth := authMiddleware(g.services.Tokens, g.config.Auth.CookieName)
	requireAdmin := adminMiddleware(g.services.Auth, g.logger)

	api := g.router.Group("/api")
	{
		user := api.Group("/user")
		{
			user.POST("/register", g.register)
			user.POST("/login", g.login)
			user.GET("/me", requireAuth, g.me)
		}

		items := api.Group("/items")
		{
			items.GET("", g.listItems)
			items.GET("/:id", g.getItem)
			items.POST("/:id/heart", g.heartItem)
			items.POST("", requireAuth, requireAdmin, g.createItem)
			items.DELETE("/:id", requireAuth, requireAdmin, g.deleteItem)
		}

		cart := api.Group("/cart", requireAuth)
		{
			cart.GET("", g.getCart)
			cart.POST("", g.addToCart)
			cart.POST("/clear", g.clearCart)
			cart.PUT("/:id", g.updateCartItem)
			cart.DELETE("/:id", g.removeCartItem)
		}

		orders := api.Group("/orders", requireAuth)
		{
			orders.POST("", g.createOrder)
			orders.GET("", g.getOrders)
			orders.GET("/confirm", g.confirmPayment)
			orders.POST("/confirm", g.confirmPayment)
			orders.GET("/getall", requireAdmin, g.getAllOrders)
			orders.PUT("/getall/:id", requireAdmin, g.updateAnyOrder)
			orders.GET("/getall/:id/history", requireAdmin, g.orderHistory)
			orders.GET("/payments/followups", requireAdmin, g.paymentFollowUps)
			orders.GET("/:id", g.getOrder)
			orders.PUT("/:id", g.updateOrder)
		}
	}

	if g.config.Swagger.Enabled {
		g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Start blocks until the server stops. http.ErrServerClosed is not reported.
func (g *Gateway) Start() error {
	addr := g.config.Server.Addr()
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}
