package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"roomrelay/internal/config"
	"roomrelay/internal/database/db_client"
	"roomrelay/internal/http/http_server"
	"roomrelay/internal/lifecycle"
	"roomrelay/internal/redis/redis_client"
	"roomrelay/internal/redis/redis_functions"
	"roomrelay/internal/redis/watcher/memberwatcher"
	"roomrelay/internal/registry"
	"roomrelay/internal/services/broadcast"
	"roomrelay/internal/services/membership"
	"roomrelay/internal/syncdb"
	"roomrelay/internal/syncevents"
	"roomrelay/internal/ws"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newLogger() *zap.Logger {
	var log *zap.Logger
	if os.Getenv("LOG_FORMAT") == "json" {
		log, _ = zap.NewProduction()
	} else {
		log, _ = zap.NewDevelopment()
	}
	return log
}

func main() {
	Log := newLogger()
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client
	var store registry.Store

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Registry store
	switch cfg.StoreDriver {
	case "redis":
		redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort), cfg.RedisDb)
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		Log.Debug("Redis client created successfully")

		// Load the Redis Functions lua
		if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
			Log.Fatal("load-redis-funcs", zap.Error(err))
		}
		store = registry.NewRedisStore(redisClient, cfg.MemberTTL)
	default:
		Log.Warn("memory store: membership is not shared between instances")
		store = registry.NewMemoryStore()
	}

	// 4. Services
	membershipService := membership.NewMembershipService(store, cfg.RoomCapacity, cfg.RoomModes)

	hub := ws.NewHub()
	var bus *ws.Bus
	if redisClient != nil {
		bus = ws.NewBus(ctx, redisClient, hub)
		defer bus.Close()
		hub.UseBus(bus)
		go bus.Run(ctx)

		// Background: lease expiry ➜ drop membership
		go memberwatcher.Run(ctx, redisClient, membershipService)
	}
	broadcastService := broadcast.NewBroadcastService(store, hub, cfg.FanoutLimit)

	// 5. Optional Postgres mirror
	if cfg.MirrorEnabled() {
		pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()
		if err := db_client.EnsureSchema(ctx, pgDb); err != nil {
			Log.Fatal("pg-schema", zap.Error(err))
		}

		syncdb.Run(ctx, store, pgDb, cfg.SyncInterval)
		if redisClient != nil {
			syncevents.Run(ctx, redisClient, pgDb)
		}
	}

	// 6. Event routing: connect / message / disconnect / heartbeat
	router := ws.NewRouter()
	lifecycle.New(membershipService, broadcastService, lifecycle.CatalogFor(cfg.MessageLang)).Register(router)
	wsSrv := ws.NewWsServer(hub, bus, router, cfg.WsReadLimit, cfg.WsPingPeriod)

	// 7. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, membershipService)
	go func() {
		<-ctx.Done()
		_ = httpServer.Dispose()
	}()
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
	Log.Info("server stopped")
}
