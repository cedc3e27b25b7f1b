package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tyforge-web/internal/apiclient"
	"tyforge-web/internal/chat"
	"tyforge-web/internal/config"
	"tyforge-web/internal/db"
	"tyforge-web/internal/email"
	"tyforge-web/internal/guard"
	apihttp "tyforge-web/internal/http"
	"tyforge-web/internal/llm"
	"tyforge-web/internal/repository"
	"tyforge-web/internal/service"
	"tyforge-web/internal/session"
	"tyforge-web/internal/storage"
	"tyforge-web/internal/telemetry"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	backendTimeout = 15 * time.Second
	chatTimeout    = 30 * time.Second
	restoreWait    = 3 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	shutdownTracing := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.OTLPInsecure, logger)

	sealer := storage.NewSealer(cfg.TokenVaultKey)
	if sealer == nil {
		logger.Warn("token vault key not configured, tokens stored in clear")
	}

	var (
		tokenStorage = storage.NewMemoryStorage(sealer)
		loginLimiter = service.NewLoginRateLimiter(service.DefaultLoginWindow, service.DefaultLoginMax)
		redisClient  *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			tokenStorage = storage.NewRedisStorage(redisClient, sealer, 0)
			loginLimiter = service.NewRedisLoginRateLimiter(redisClient, service.DefaultLoginWindow, service.DefaultLoginMax)
		}
		cancel()
		defer redisClient.Close()
	}

	var leadRepo repository.LeadRepository = repository.NewMemoryLeadRepository()
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal("db schema", zap.Error(err))
		}
		leadRepo = repository.NewPgLeadRepository(pool)
	} else {
		logger.Warn("database not configured, leads kept in memory")
	}

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			UseTLS:   cfg.SMTPUseTLS,
		})
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var llmClient llm.ChatClient
	chatCfg := chat.Config{
		Breaker: chat.NewQuotaBreaker(cfg.QuotaCooldown, cfg.QuotaMaxPerMinute),
		Model:   cfg.ChatModel,
		Logger:  logger,
	}
	if cfg.ChatEnabled() {
		client := llm.NewHTTPClient(cfg.ChatAPIURL, cfg.ChatAPIKey, telemetry.HTTPClient(chatTimeout), logger)
		llmClient = client
		chatCfg.Remote = chat.NewRemoteResponder(client, cfg.ChatModel)
		chatCfg.Summarizer = client
	} else {
		logger.Warn("chat api not configured, assistant runs on rule replies")
	}
	chats := chat.NewRegistry(chatCfg)

	numbers := service.WhatsAppNumbers{Software: cfg.WhatsAppSoftwareNumber, Hardware: cfg.WhatsAppHardwareNumber}
	leadSvc := service.NewLeadService(logger, leadRepo, emailSender, cfg.LeadNotifyTo)
	ideaSvc := service.NewIdeaService(logger, llmClient, chats.Breaker(), cfg.ChatModel)
	devices := service.NewDeviceTokenService(cfg.DeviceCookieSecret, 0)

	public := apiclient.NewClient(cfg.BackendURL, telemetry.HTTPClient(backendTimeout), nil, logger)
	tabs := session.NewRegistry(tokenStorage, func(tokens apiclient.TokenSource) *apiclient.Client {
		return apiclient.NewClient(cfg.BackendURL, telemetry.HTTPClient(backendTimeout), tokens, logger)
	}, cfg.SessionIdleTTL, logger)
	tabs.OnEvict(func(deviceID, tabID string) {
		if n := chats.CloseOwner(apihttp.ChatOwner(deviceID, tabID)); n > 0 {
			logger.Info("conversations closed with idle tab", zap.Int("count", n))
		}
	})
	go tabs.Run(ctx)
	defer tabs.Close()

	router := apihttp.NewRouter(
		logger,
		cfg.FrontendOrigins,
		apihttp.IdentityMiddleware(devices, tabs, cfg.DeviceCookieSecure, logger),
		guard.RequireAuth(apihttp.CurrentStore, restoreWait, logger),
		apihttp.Handlers{
			Session: apihttp.NewSessionHandler(logger, loginLimiter, restoreWait),
			Portal:  apihttp.NewPortalHandler(logger, public),
			Chat:    apihttp.NewChatHandler(logger, chats, leadSvc, public, numbers),
			Leads:   apihttp.NewLeadHandler(logger, leadSvc, ideaSvc, numbers),
			Events:  apihttp.NewEventsHandler(logger, apihttp.OriginPatterns(cfg.FrontendOrigins)),
		},
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           telemetry.Handler(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("backend", cfg.BackendURL),
		zap.Bool("chat_enabled", cfg.ChatEnabled()),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	leadSvc.Wait()
	logger.Info("server stopped")
}
