package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"RTChat/global"
	"RTChat/logger"
	"RTChat/middleware"
	midsec "RTChat/middleware/security"
	"RTChat/module/channel"
	"RTChat/service/realtime"
	"RTChat/service/realtime/handlers"
	"RTChat/service/storage"
	"RTChat/tools/ids"
	"RTChat/tools/security"
)

const presenceTTL = 90 * time.Second

func main() {
	cfg := global.Load()
	ids.SetNodeID(cfg.SnowNodeID)

	store := buildStore(cfg)

	srv := realtime.NewServer(realtime.Config{
		NodeID:        cfg.GatewayNodeId,
		SessionSecret: []byte(cfg.SessionSecret),
	}, nil)
	handlers.RegisterAll(srv)

	srv.OnConnect(func(c *realtime.Conn) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = store.UpsertUser(ctx, storage.User{ID: c.UserID, Email: c.UserEmail})
		if err := store.SetOnline(ctx, c.UserID, srv.NodeID(), presenceTTL); err != nil {
			logger.Warnf("[presence] set online user=%s err=%v", c.UserID, err)
		}
	})
	srv.OnDisconnect(func(c *realtime.Conn) {
		// another live connection for the same user keeps them online
		if len(srv.Conns().ListByUser(c.UserID)) > 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.SetOffline(ctx, c.UserID); err != nil {
			logger.Warnf("[presence] set offline user=%s err=%v", c.UserID, err)
		}
	})

	authOpts := midsec.DefaultOptions(security.DefaultOptions([]byte(cfg.SessionSecret)))

	r := gin.New()
	r.Use(gin.Recovery(), middleware.CORS())
	r.GET("/ws", srv.HandleWS)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	channel.NewHandler(store, srv).RegisterRoutes(r, authOpts)

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		logger.Infof("[main] listening on %s node=%s", cfg.Addr, cfg.GatewayNodeId)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("[main] listen err=%v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("[main] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Close()
	_ = httpSrv.Shutdown(ctx)
}

func buildStore(cfg global.AppConfig) storage.Store {
	if cfg.RedisAddr == "" {
		logger.Info("[main] using in-memory store")
		return storage.NewMemoryStore()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warnf("[main] redis ping failed, falling back to memory store: %v", err)
		return storage.NewMemoryStore()
	}
	logger.Infof("[main] using redis store addr=%s", cfg.RedisAddr)
	return storage.NewRedisStore(rdb)
}
