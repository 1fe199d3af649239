package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"

	InterpreterRules  = "rules"
	InterpreterOpenAI = "openai"
)

var defaults = map[string]any{
	"PORT":             8080,
	"LOG_LEVEL":        "INFO",
	"REQUEST_TIMEOUT":  30 * time.Second,
	"SHUTDOWN_TIMEOUT": 15 * time.Second,
	"VERSION":          "1.0.0",

	"REDIS_URL":    "redis://localhost:6379",
	"REDIS_PREFIX": "taskchat",
	"SQLITE_PATH":  "taskchat.db",

	"OPENAI_BASE_URL":     "https://api.openai.com/v1",
	"OPENAI_MODEL":        "gpt-4",
	"INTERPRETER_TIMEOUT": 20 * time.Second,
	"CHAT_OWNER":          "default_user",
}

// Config holds all application configuration
type Config struct {
	ServerPort      int           `json:"server_port"`
	LogLevel        string        `json:"log_level"`
	RequestTimeout  time.Duration `json:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	Version         string        `json:"version"`

	// Task storage
	StoreBackend string `json:"store_backend"`
	RedisURL     string `json:"redis_url"`
	RedisPrefix  string `json:"redis_prefix"`
	DatabaseURL  string `json:"-"`
	SQLitePath   string `json:"sqlite_path"`

	// Chat
	Interpreter        string        `json:"interpreter"`
	OpenAIAPIKey       string        `json:"-"`
	OpenAIBaseURL      string        `json:"openai_base_url"`
	OpenAIModel        string        `json:"openai_model"`
	InterpreterTimeout time.Duration `json:"interpreter_timeout"`
	ChatOwner          string        `json:"chat_owner"`
}

// LoadConfig reads an optional .env file, an optional config file named by
// CONFIG_FILE, and the environment. Environment variables win over both files.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &Config{
		ServerPort:      getInt(v, "PORT"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		RequestTimeout:  getDuration(v, "REQUEST_TIMEOUT"),
		ShutdownTimeout: getDuration(v, "SHUTDOWN_TIMEOUT"),
		Version:         v.GetString("VERSION"),

		StoreBackend: v.GetString("STORE_BACKEND"),
		RedisURL:     v.GetString("REDIS_URL"),
		RedisPrefix:  v.GetString("REDIS_PREFIX"),
		DatabaseURL:  v.GetString("DATABASE_URL"),
		SQLitePath:   v.GetString("SQLITE_PATH"),

		Interpreter:        v.GetString("INTERPRETER"),
		OpenAIAPIKey:       v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:      v.GetString("OPENAI_BASE_URL"),
		OpenAIModel:        v.GetString("OPENAI_MODEL"),
		InterpreterTimeout: getDuration(v, "INTERPRETER_TIMEOUT"),
		ChatOwner:          v.GetString("CHAT_OWNER"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Address returns the server address in host:port format
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// InterpreterBudget is the time a chat turn may spend in the interpreter. It is
// capped at three quarters of the request timeout so the turn can still act and reply.
func (c *Config) InterpreterBudget() time.Duration {
	if limit := c.RequestTimeout * 3 / 4; c.InterpreterTimeout > limit {
		return limit
	}
	return c.InterpreterTimeout
}

// getInt and getDuration fall back to the default when a value does not parse.
func getInt(v *viper.Viper, key string) int {
	if n, err := cast.ToIntE(strings.TrimSpace(v.GetString(key))); err == nil {
		return n
	}
	return cast.ToInt(defaults[key])
}

func getDuration(v *viper.Viper, key string) time.Duration {
	if d, err := cast.ToDurationE(strings.TrimSpace(v.GetString(key))); err == nil {
		return d
	}
	return cast.ToDuration(defaults[key])
}

// validate performs basic validation of the configuration
func (c *Config) validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port %d: must be between 1 and 65535", c.ServerPort)
	}

	validLevels := map[string]bool{
		"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true,
	}
	upperLevel := strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if !validLevels[upperLevel] {
		return fmt.Errorf("invalid log level '%s': must be DEBUG, INFO, WARN, ERROR, or FATAL", c.LogLevel)
	}
	c.LogLevel = upperLevel

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request timeout %v: must be positive", c.RequestTimeout)
	}
	if c.RequestTimeout > 10*time.Minute {
		return fmt.Errorf("invalid request timeout %v: must not exceed 10 minutes", c.RequestTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout %v: must be positive", c.ShutdownTimeout)
	}
	if c.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("invalid shutdown timeout %v: must not exceed 5 minutes", c.ShutdownTimeout)
	}

	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("version cannot be empty")
	}
	c.Version = strings.TrimSpace(c.Version)

	if err := c.validateStore(); err != nil {
		return err
	}
	return c.validateChat()
}

func (c *Config) validateStore() error {
	backend := strings.ToLower(strings.TrimSpace(c.StoreBackend))
	if backend == "" {
		// a database URL alone is enough to select Postgres
		backend = BackendMemory
		if strings.TrimSpace(c.DatabaseURL) != "" {
			backend = BackendPostgres
		}
	}
	c.StoreBackend = backend

	switch backend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("redis URL cannot be empty when the redis store is selected")
		}
		if strings.TrimSpace(c.RedisPrefix) == "" {
			return fmt.Errorf("redis prefix cannot be empty when the redis store is selected")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("database URL cannot be empty when the postgres store is selected")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("sqlite path cannot be empty when the sqlite store is selected")
		}
	default:
		return fmt.Errorf("invalid store backend '%s': must be memory, redis, postgres, or sqlite", c.StoreBackend)
	}
	return nil
}

func (c *Config) validateChat() error {
	interpreter := strings.ToLower(strings.TrimSpace(c.Interpreter))
	if interpreter == "" {
		interpreter = InterpreterRules
		if strings.TrimSpace(c.OpenAIAPIKey) != "" {
			interpreter = InterpreterOpenAI
		}
	}
	c.Interpreter = interpreter

	switch interpreter {
	case InterpreterRules:
	case InterpreterOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return fmt.Errorf("OpenAI API key cannot be empty when the openai interpreter is selected")
		}
	default:
		return fmt.Errorf("invalid interpreter '%s': must be rules or openai", c.Interpreter)
	}

	if c.InterpreterTimeout <= 0 {
		return fmt.Errorf("invalid interpreter timeout %v: must be positive", c.InterpreterTimeout)
	}
	if c.InterpreterTimeout > 5*time.Minute {
		return fmt.Errorf("invalid interpreter timeout %v: must not exceed 5 minutes", c.InterpreterTimeout)
	}

	if strings.TrimSpace(c.ChatOwner) == "" {
		return fmt.Errorf("chat owner cannot be empty")
	}
	c.ChatOwner = strings.TrimSpace(c.ChatOwner)

	return nil
}
