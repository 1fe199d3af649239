package main

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"taskchat/chat"
	"taskchat/chat/actions"
	"taskchat/chat/conversations"
	"taskchat/chat/interpreters"
	"taskchat/config"
	"taskchat/logger"
	"taskchat/tasks/service"
	"taskchat/tasks/store"
)

// app holds the wired components shared by the serve and chat commands.
type app struct {
	config        *config.Config
	logger        *logger.Logger
	store         store.TaskStore
	service       service.Service
	registry      *chat.HandlerRegistry
	conversations chat.ConversationStore
	engine        *chat.Engine
}

func newApp(ctx context.Context, logOutput io.Writer) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	lg := logger.New(cfg.LogLevel, logOutput)

	taskStore, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		RedisURL:    cfg.RedisURL,
		RedisPrefix: cfg.RedisPrefix,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}

	convs, err := openConversations(cfg)
	if err != nil {
		taskStore.Close()
		return nil, err
	}

	svc := service.New(taskStore, lg)
	registry := actions.NewRegistry(svc)

	lg.Info("Registered chat actions", map[string]any{
		"count": len(registry.Kinds()),
		"kinds": registry.Kinds(),
	})

	return &app{
		config:        cfg,
		logger:        lg,
		store:         taskStore,
		service:       svc,
		registry:      registry,
		conversations: convs,
		engine:        chat.NewEngine(convs, newInterpreter(cfg, lg), registry, lg),
	}, nil
}

// openConversations keeps conversations next to the tasks when they live in Redis,
// and in memory otherwise.
func openConversations(cfg *config.Config) (chat.ConversationStore, error) {
	if cfg.StoreBackend != config.BackendRedis {
		return conversations.NewMemoryStore(), nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return conversations.NewRedisStore(redis.NewClient(opt), cfg.RedisPrefix), nil
}

func newInterpreter(cfg *config.Config, lg *logger.Logger) chat.Interpreter {
	if cfg.Interpreter == config.InterpreterOpenAI {
		return interpreters.NewOpenAI(interpreters.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.InterpreterBudget(),
		}, lg)
	}
	return interpreters.Rules{}
}

func (a *app) Close() {
	if err := a.conversations.Close(); err != nil {
		a.logger.Warn("Failed to close conversation store", map[string]any{"error": err.Error()})
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close task store", map[string]any{"error": err.Error()})
	}
}
