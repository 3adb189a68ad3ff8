package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	assistantsvc "fleamarket/internal/app/services/assistant"
	authsvc "fleamarket/internal/app/services/auth"
	chatsvc "fleamarket/internal/app/services/chat"
	marketsvc "fleamarket/internal/app/services/market"
	domainauth "fleamarket/internal/domain/auth"
	domainchat "fleamarket/internal/domain/chat"
	domainlistings "fleamarket/internal/domain/listings"
	domainpurchase "fleamarket/internal/domain/purchase"
	domainuser "fleamarket/internal/domain/user"
	"fleamarket/internal/infra/broker/kafka"
	"fleamarket/internal/infra/chat/hub"
	"fleamarket/internal/infra/chat/scylla"
	"fleamarket/internal/infra/config"
	mongodb "fleamarket/internal/infra/db/mongo"
	ginserver "fleamarket/internal/infra/http/gin"
	"fleamarket/internal/infra/obs"
	"fleamarket/internal/infra/security"
	"fleamarket/internal/infra/storage/memory"
	"fleamarket/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	ready    func() error

	producer *kafka.Producer
	consumer *kafka.Consumer
}

type stores struct {
	users         domainuser.Repository
	sessions      domainauth.SessionStore
	listings      domainlistings.Repository
	purchases     domainpurchase.Repository
	conversations domainchat.ConversationStore
	messages      domainchat.MessageStore
	ping          func(ctx context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	st, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	chatHub := hub.New(logger)
	app := &application{}

	chatService := &chatsvc.Service{
		Conversations: st.conversations,
		Messages:      st.messages,
		Hub:           chatHub,
		Users:         st.users,
		Logger:        logger,
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, err
		}
		relay := kafka.NewChatRelay(producer, chatHub, cfg.ChatTopic, logger)
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, "fleamarket-chat", nil, relay)
		if err != nil {
			_ = producer.Close()
			return nil, err
		}
		go func() {
			if err := consumer.Run(ctx, []string{cfg.ChatTopic}); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("chat consumer stopped", "error", err)
			}
		}()
		chatService.Events = relay
		app.producer = producer
		app.consumer = consumer
		logger.Info("chat relay enabled", "topic", cfg.ChatTopic, "brokers", cfg.KafkaBrokers)
	}

	var uploader s3.Uploader = s3.NoopUploader{}
	if cfg.S3Endpoint != "" {
		client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicURL, logger)
		if err != nil {
			logger.Warn("object storage unavailable, photo uploads disabled", "error", err)
		} else {
			uploader = client
		}
	}

	authService := &authsvc.Service{
		Users:      st.users,
		Sessions:   st.sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}
	marketService := &marketsvc.Service{
		Listings:  st.listings,
		Purchases: st.purchases,
		Uploader:  uploader,
		Logger:    logger,
	}

	var assistantHTTP ginserver.AssistantHTTP
	if cfg.AssistantURL != "" {
		assistantHTTP = ginserver.AssistantHandler{
			Service: &assistantsvc.Service{
				Client:   &http.Client{Timeout: 30 * time.Second},
				Endpoint: cfg.AssistantURL,
				APIKey:   cfg.AssistantKey,
				Model:    cfg.AssistantModel,
				Listings: st.listings,
				Logger:   logger,
			},
			Logger: logger,
		}
	}

	app.handlers = ginserver.Handlers{
		Auth:      ginserver.AuthHandler{Service: authService, Logger: logger},
		Listing:   ginserver.ListingHandler{Service: marketService, Logger: logger},
		Chat:      ginserver.ChatHandler{Service: chatService, Logger: logger},
		Assistant: assistantHTTP,
		Admin: ginserver.AdminHandler{
			Users:         st.users,
			Listings:      st.listings,
			Purchases:     st.purchases,
			Conversations: st.conversations,
			Logger:        logger,
		},
		AuthMiddleware: ginserver.AuthMiddleware{Service: authService, Logger: logger}.Handle,
	}
	app.ready = func() error {
		if st.ping == nil {
			return nil
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return st.ping(pingCtx)
	}
	return app, nil
}

func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	switch cfg.StorageMode {
	case "mongo":
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return stores{}, err
		}
		users := mongodb.NewUserRepository(client.DB)
		if err := users.EnsureIndexes(ctx); err != nil {
			return stores{}, err
		}
		session, err := scylla.NewSession(scylla.Config{
			Hosts:    cfg.ScyllaHosts,
			Keyspace: cfg.ScyllaKeyspace,
		}, logger)
		if err != nil {
			return stores{}, err
		}
		chatStore := scylla.NewStore(session, logger)
		return stores{
			users:         users,
			sessions:      memory.NewSessionStore(),
			listings:      mongodb.NewListingRepository(client.DB),
			purchases:     mongodb.NewPurchaseRepository(client.DB),
			conversations: chatStore,
			messages:      chatStore,
			ping:          client.Ping,
		}, nil
	default:
		chatStore := memory.NewChatStore()
		return stores{
			users:         memory.NewUserRepository(),
			sessions:      memory.NewSessionStore(),
			listings:      memory.NewListingRepository(),
			purchases:     memory.NewPurchaseRepository(),
			conversations: chatStore,
			messages:      chatStore,
		}, nil
	}
}

func (a *application) close(logger *slog.Logger) {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			logger.Warn("kafka consumer close failed", "error", err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Warn("kafka producer close failed", "error", err)
		}
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
