package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/foodhall/gateway"
	"github.com/example/foodhall/pkg/auth"
	"github.com/example/foodhall/pkg/config"
	"github.com/example/foodhall/pkg/discovery"
	"github.com/example/foodhall/pkg/events"
	opsgrpc "github.com/example/foodhall/pkg/grpc"
	"github.com/example/foodhall/pkg/ledger"
	"github.com/example/foodhall/pkg/logger"
	"github.com/example/foodhall/pkg/payment"
	"github.com/example/foodhall/pkg/repository"
	"github.com/example/foodhall/pkg/service"
	"github.com/example/foodhall/pkg/storage"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "config/config.yaml", "path to the YAML config file")
	pflag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	log, err := logger.New(&cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting API",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port),
		zap.String("host", cfg.Server.Host))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB
	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ccancel()
		mongoRepo.Close(cctx)
	}()
	if err := mongoRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to create indexes", zap.Error(err))
	}

	// Redis
	var cache repository.Cache = repository.NopCache{}
	var redisRepo *repository.RedisRepository
	if cfg.Redis.Addr != "" {
		redisRepo = repository.NewRedisRepository(&cfg.Redis)
		if err := redisRepo.Ping(ctx); err != nil {
			log.Warn("Redis connection failed, continuing without cache", zap.Error(err))
		} else {
			log.Info("Redis connected successfully")
			cache = redisRepo
		}
		defer redisRepo.Close()
	}

	// Payment ledger
	var recorder ledger.Recorder = ledger.Discard{}
	if cfg.Ledger.DSN != "" {
		l, err := ledger.Open(&cfg.Ledger)
		if err != nil {
			log.Fatal("Failed to open payment ledger", zap.Error(err))
		}
		defer l.Close()
		recorder = l
	} else {
		log.Warn("No ledger DSN configured, payment attempts will not be recorded")
	}

	// Payment gateway
	var gw payment.Gateway = payment.Unavailable{}
	if sg, err := payment.NewStripeGateway(&cfg.Payment, log.Named("stripe")); err != nil {
		log.Warn("Online payments disabled", zap.Error(err))
	} else {
		gw = sg
	}

	images, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		log.Fatal("Failed to set up image storage", zap.Error(err))
	}

	bus, err := events.NewBus(cfg.Server.Name, mongoRepo, log)
	if err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer bus.Close(5 * time.Second)

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	services := gateway.Services{
		Auth:    service.NewAuthService(mongoRepo.Users(), cache, auth.NewPasswordHasher(cfg.Auth.BcryptCost), tokens, bus, log),
		Catalog: service.NewCatalogService(mongoRepo.Items(), images, cache, bus, log),
		Cart:    service.NewCartService(mongoRepo.Cart(), mongoRepo.Items(), log),
		Orders: service.NewOrderService(service.OrderDeps{
			Orders:  mongoRepo.Orders(),
			Items:   mongoRepo.Items(),
			Gateway: gw,
			Ledger:  recorder,
			Events:  bus,
			Audit:   mongoRepo,
		}, cfg, log),
		Tokens: tokens,
	}

	api := gateway.NewGateway(cfg, log, services)
	api.SetupRoutes()

	serverErr := make(chan error, 2)
	go func() {
		if err := api.Start(); err != nil {
			serverErr <- err
		}
	}()

	// gRPC health
	var ops *opsgrpc.OpsServer
	if cfg.GRPC.Port > 0 {
		ops = opsgrpc.NewOpsServer(cfg, log)
		ops.AddCheck("mongodb", mongoRepo.Ping)
		if redisRepo != nil {
			ops.AddCheck("redis", redisRepo.Ping)
		}
		go func() {
			if err := ops.Start(ctx); err != nil {
				serverErr <- err
			}
		}()
	}

	// Service discovery
	instance := &discovery.ServiceInstance{Name: cfg.Server.Name, Host: cfg.Server.Host, Port: cfg.Server.Port}
	var sd *discovery.ServiceDiscovery
	if len(cfg.Etcd.Endpoints) > 0 {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, log)
		if err != nil {
			log.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else if err := sd.Register(ctx, instance); err != nil {
			log.Warn("Failed to register service", zap.Error(err))
		} else {
			log.Info("Service registered in etcd", zap.String("address", instance.Addr()))
		}
	}

	log.Info("API started successfully")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		log.Error("Server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if sd != nil {
		if err := sd.Deregister(shutdownCtx, instance); err != nil {
			log.Error("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}
	if ops != nil {
		ops.Stop()
	}
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	log.Info("API stopped")
}
