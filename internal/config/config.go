package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Env       string          `mapstructure:"env"`
	API       APIConfig       `mapstructure:"api"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Storage   StorageConfig   `mapstructure:"storage"`
	UI        UIConfig        `mapstructure:"ui"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	DevServer DevServerConfig `mapstructure:"devserver"`
}

// APIConfig points the client at the remote REST API
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RealtimeConfig configures the live message channel
type RealtimeConfig struct {
	Path        string        `mapstructure:"path"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// StorageConfig selects where the token and theme are persisted
type StorageConfig struct {
	Backend       string      `mapstructure:"backend"`
	Path          string      `mapstructure:"path"`
	SQLitePath    string      `mapstructure:"sqlite_path"`
	EncryptionKey string      `mapstructure:"encryption_key"`
	Redis         RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// UIConfig holds view-layer settings
type UIConfig struct {
	DefaultBotName  string `mapstructure:"default_bot_name"`
	DesktopMinWidth int    `mapstructure:"desktop_min_width"`
	AdminPageSize   int    `mapstructure:"admin_page_size"`
}

type LoggingConfig struct {
	Level        string        `mapstructure:"level"`
	Format       string        `mapstructure:"format"`
	File         string        `mapstructure:"file"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

// DevServerConfig configures the development backend
type DevServerConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Version   string        `mapstructure:"version"`
	BotName   string        `mapstructure:"bot_name"`
	AdminUser string        `mapstructure:"admin_email"`
	AdminPass string        `mapstructure:"admin_password"`
	Bot       BotConfig     `mapstructure:"bot"`
	Store     StoreConfig   `mapstructure:"store"`
}

// StoreConfig selects where the development backend keeps users, messages and settings
type StoreConfig struct {
	// Driver is memory or postgres
	Driver   string         `mapstructure:"driver"`
	Database DatabaseConfig `mapstructure:"database"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// BotConfig selects how the development backend answers chat messages
type BotConfig struct {
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	HistoryTurns int           `mapstructure:"history_turns"`
	Timeout      time.Duration `mapstructure:"timeout"`
	OllamaHost   string        `mapstructure:"ollama_host"`
	OpenAIKey    string        `mapstructure:"openai_api_key"`
	OpenAIURL    string        `mapstructure:"openai_base_url"`
	AnthropicKey string        `mapstructure:"anthropic_api_key"`
	AnthropicURL string        `mapstructure:"anthropic_base_url"`
	GeminiKey    string        `mapstructure:"gemini_api_key"`
}

// Addr returns the listen address of the development backend
func (c DevServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	// Override with environment variables
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks values that have no usable fallback
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch c.Storage.Backend {
	case "file", "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.UI.AdminPageSize <= 0 {
		return fmt.Errorf("ui.admin_page_size must be positive")
	}
	switch c.DevServer.Store.Driver {
	case "", "memory", "postgres":
	default:
		return fmt.Errorf("unknown devserver store driver %q", c.DevServer.Store.Driver)
	}
	return nil
}

// IsProduction reports whether the client runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	// API
	v.SetDefault("api.base_url", "http://localhost:3000")
	v.SetDefault("api.timeout", "30s")

	// Realtime
	v.SetDefault("realtime.path", "/ws")
	v.SetDefault("realtime.dial_timeout", "10s")

	// Storage
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.path", defaultDataPath("state.json"))
	v.SetDefault("storage.sqlite_path", defaultDataPath("state.db"))
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.key_prefix", "support-chat:")

	// UI
	v.SetDefault("ui.default_bot_name", "Assistant")
	v.SetDefault("ui.desktop_min_width", 100)
	v.SetDefault("ui.admin_page_size", 10)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", defaultDataPath("logs/chat.log"))
	v.SetDefault("logging.max_age", "168h") // 7 days
	v.SetDefault("logging.rotation_time", "24h")

	// Development backend
	v.SetDefault("devserver.host", "127.0.0.1")
	v.SetDefault("devserver.port", 3000)
	v.SetDefault("devserver.jwt_secret", "dev-secret-change-me-32-chars!!!")
	v.SetDefault("devserver.token_ttl", "24h")
	v.SetDefault("devserver.version", "1.0.0")
	v.SetDefault("devserver.bot_name", "Assistant")
	v.SetDefault("devserver.admin_email", "admin@example.com")
	v.SetDefault("devserver.admin_password", "admin123")
	v.SetDefault("devserver.bot.provider", "echo")
	v.SetDefault("devserver.bot.history_turns", 10)
	v.SetDefault("devserver.bot.timeout", "60s")
	v.SetDefault("devserver.store.driver", "memory")
	v.SetDefault("devserver.store.database.host", "localhost")
	v.SetDefault("devserver.store.database.port", 5432)
	v.SetDefault("devserver.store.database.user", "supportchat")
	v.SetDefault("devserver.store.database.database", "supportchat")
	v.SetDefault("devserver.store.database.ssl_mode", "disable")
	v.SetDefault("devserver.store.database.max_conns", 10)
	v.SetDefault("devserver.store.database.min_conns", 2)
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("env", "ENV")

	// API
	v.BindEnv("api.base_url", "CHAT_API_BASE_URL")

	// Storage
	v.BindEnv("storage.backend", "CHAT_STORAGE_BACKEND")
	v.BindEnv("storage.encryption_key", "CHAT_STORAGE_KEY")
	v.BindEnv("storage.redis.password", "REDIS_PASSWORD")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")

	// Development backend
	v.BindEnv("devserver.jwt_secret", "DEV_JWT_SECRET")
	v.BindEnv("devserver.port", "DEV_PORT")
	v.BindEnv("devserver.bot.provider", "BOT_PROVIDER")
	v.BindEnv("devserver.bot.model", "BOT_MODEL")
	v.BindEnv("devserver.bot.ollama_host", "OLLAMA_HOST")
	v.BindEnv("devserver.bot.openai_api_key", "OPENAI_API_KEY")
	v.BindEnv("devserver.bot.openai_base_url", "OPENAI_BASE_URL")
	v.BindEnv("devserver.bot.anthropic_api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("devserver.bot.gemini_api_key", "GEMINI_API_KEY")
	v.BindEnv("devserver.store.driver", "DEV_STORE")
	v.BindEnv("devserver.store.database.host", "POSTGRES_HOST")
	v.BindEnv("devserver.store.database.password", "POSTGRES_PASSWORD")
}

func defaultDataPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./data/" + name
	}
	return dir + "/support-chat/" + name
}
