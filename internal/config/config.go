package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Scoreboard ScoreboardConfig
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Lock       LockConfig
	WebSocket  WebSocketConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит настройки подключения к Redis.
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: "single", "sentinel" или "cluster". По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: список адресов (хост:порт). Для 'single' используется первый адрес.
	Addrs []string `mapstructure:"addrs"`

	// Addr: адрес для режима 'single', если Addrs пуст
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: имя мастера (только для "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// JWTConfig содержит настройки проверки токенов. Токены выпускает сервис авторизации.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// ScoreboardConfig содержит настройки таблицы результатов
type ScoreboardConfig struct {
	// CacheTTLSeconds - время жизни кеша таблицы
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

// CacheTTL возвращает время жизни кеша таблицы
func (s ScoreboardConfig) CacheTTL() time.Duration {
	if s.CacheTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// RateLimitConfig содержит настройки HTTP-ограничения частоты отправки флагов
type RateLimitConfig struct {
	SubmitPerMinute int `mapstructure:"submit_per_minute"`
}

// LockConfig содержит настройки блокировки пары (команда, задача)
type LockConfig struct {
	// Backend: "redis" или "local"
	Backend   string `mapstructure:"backend"`
	TTLMillis int    `mapstructure:"ttl_ms"`
	WaitMs    int    `mapstructure:"wait_ms"`
}

// WebSocketConfig содержит настройки ленты событий
type WebSocketConfig struct {
	Ping    PingConfig
	Cluster ClusterConfig
	Limits  LimitsConfig
}

// PingConfig содержит настройки пингов (в секундах)
type PingConfig struct {
	Interval int
	Timeout  int
}

// ClusterConfig содержит настройки рассылки событий между инстансами
type ClusterConfig struct {
	Enabled          bool
	BroadcastChannel string `mapstructure:"broadcast_channel"`
}

// LimitsConfig содержит настройки ограничений соединений
type LimitsConfig struct {
	MaxMessageSize      int     `mapstructure:"max_message_size"`
	WriteWait           int     `mapstructure:"write_wait"`
	ClientSendBuffer    int     `mapstructure:"client_send_buffer"`
	ConnectionsPerIPSec float64 `mapstructure:"connections_per_ip_sec"`
	ConnectionsBurst    int     `mapstructure:"connections_burst"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// PostgresURL формирует URL подключения для golang-migrate и lib/pq
func (d *DatabaseConfig) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := newViper(configPath)

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("JWT Secret Set: %t", cfg.JWT.Secret != "")
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Scoreboard Cache TTL: %s", cfg.Scoreboard.CacheTTL())
		log.Printf("Lock Backend: %s", cfg.Lock.Backend)
		log.Printf("Websocket Cluster Enabled: %t", cfg.WebSocket.Cluster.Enabled)
		log.Printf("-----------------------------------------")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDatabase читает только секцию database (для утилиты миграций, JWT не нужен)
func LoadDatabase(configPath string) (*DatabaseConfig, error) {
	vip := newViper(configPath)

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete")
	}
	return &cfg.Database, nil
}

func newViper(configPath string) *viper.Viper {
	vip := viper.New()

	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 10)
	vip.SetDefault("server.write_timeout", 10)
	vip.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("jwt.issuer", "rabbitctf")
	vip.SetDefault("scoreboard.cache_ttl_seconds", 10)
	vip.SetDefault("rate_limit.submit_per_minute", 30)
	vip.SetDefault("lock.backend", "redis")
	vip.SetDefault("lock.ttl_ms", 5000)
	vip.SetDefault("lock.wait_ms", 3000)
	vip.SetDefault("websocket.ping.interval", 25)
	vip.SetDefault("websocket.ping.timeout", 30)
	vip.SetDefault("websocket.cluster.broadcast_channel", "rabbitctf:feed")
	vip.SetDefault("websocket.limits.max_message_size", 512)
	vip.SetDefault("websocket.limits.write_wait", 10)
	vip.SetDefault("websocket.limits.client_send_buffer", 64)
	vip.SetDefault("websocket.limits.connections_per_ip_sec", 1)
	vip.SetDefault("websocket.limits.connections_burst", 5)

	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Привязка для секции JWT
	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.issuer", "JWT_ISSUER")

	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("scoreboard.cache_ttl_seconds", "SCOREBOARD_CACHE_TTL_SECONDS")
	vip.BindEnv("rate_limit.submit_per_minute", "RATE_LIMIT_SUBMIT_PER_MINUTE")
	vip.BindEnv("lock.backend", "LOCK_BACKEND")
	vip.BindEnv("websocket.cluster.enabled", "WEBSOCKET_CLUSTER_ENABLED")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	return vip
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	switch c.Lock.Backend {
	case "redis", "local":
	default:
		return fmt.Errorf("unknown lock backend %q (expected redis or local)", c.Lock.Backend)
	}
	if os.Getenv("GIN_MODE") == "release" && c.Database.Password == "" {
		return fmt.Errorf("database password is required in production mode (check DATABASE_PASSWORD env var)")
	}
	return nil
}
