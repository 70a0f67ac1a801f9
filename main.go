package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"ChitChat/global"
	"ChitChat/logger"
	mid "ChitChat/middleware"
	midsec "ChitChat/middleware/security"
	chatmod "ChitChat/module/chat"
	usermod "ChitChat/module/user"
	"ChitChat/service/bot"
	chatsvc "ChitChat/service/chat"
	"ChitChat/service/storage"
	"ChitChat/tools/security"
)

func main() {
	conf, err := global.Load()
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}
	if conf.JWTSecret == "" {
		logger.Errorf("CHITCHAT_JWT_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := storage.Open(ctx, conf.DatabaseURL, conf.BotEmail)
	if err != nil {
		logger.Errorf("open storage: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Errorf("ensure schema: %v", err)
		os.Exit(1)
	}
	if _, err := store.EnsureBotUser(ctx, conf.BotName); err != nil {
		logger.Errorf("ensure bot user: %v", err)
		os.Exit(1)
	}

	var presence *storage.PresenceManager
	if conf.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     conf.RedisAddr,
			Password: conf.RedisPassword,
			DB:       conf.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis unreachable, presence disabled: %v", err)
		} else {
			presence = storage.NewPresenceManager(rdb)
		}
	}

	jwtOpts := security.DefaultOptions([]byte(conf.JWTSecret))
	jwtOpts.TTL = conf.JWTTTL

	registry := chatsvc.NewRegistry()
	broadcaster := chatsvc.NewBroadcaster(registry, conf.SendTimeout)
	gate := chatsvc.NewAuthGate(security.Verifier{Opts: jwtOpts}, store)
	server := chatsvc.NewServer(registry, broadcaster, gate, presence)

	responder := bot.NewGemini(bot.GeminiConfig{
		APIKey:  conf.GeminiAPIKey,
		Model:   conf.GeminiModel,
		BaseURL: conf.GeminiBaseURL,
	})
	pipeline := chatsvc.NewPipeline(store, broadcaster, responder, chatsvc.PipelineConf{
		BotMention:   conf.BotMention,
		HistoryLimit: conf.HistoryLimit,
	})

	r := gin.Default()
	r.Use(mid.Origin())

	router := mid.NewRouter(midsec.Middleware(gate, midsec.DefaultOptions()))
	usermod.NewHandler(store, jwtOpts).Register(router, r)
	chatmod.NewHandler(store, pipeline, server, presence).Register(router, r)

	logger.Infof("listening on %s", conf.ListenAddr)
	if err := r.Run(conf.ListenAddr); err != nil {
		logger.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}
