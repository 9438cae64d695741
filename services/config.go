package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	AI        AIConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Storage   StorageConfig
	Scoring   ScoringConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	URL          string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type AIConfig struct {
	GeminiAPIKey      string
	Model             string
	RequestsPerSecond float64
	MaxRetries        int
}

type JWTConfig struct {
	Secret string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

// RedisConfig drives both the cache and the asynq task queue
type RedisConfig struct {
	URL      string
	CacheTTL time.Duration
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// StorageConfig points at an S3 compatible bucket (R2, MinIO, S3)
type StorageConfig struct {
	AccountID string
	AccessKey string
	SecretKey string
	Bucket    string
	Endpoint  string
}

type ScoringConfig struct {
	VerifiedBonus         float64
	InterviewMaxQuestions int
	InterviewIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.requests_per_second", "2")
	viper.SetDefault("gemini.max_retries", "3")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.cache_ttl", "2m")
	viper.SetDefault("rabbitmq.url", "")
	viper.SetDefault("rabbitmq.exchange", "destiny_events")
	viper.SetDefault("storage.account_id", "")
	viper.SetDefault("storage.access_key", "")
	viper.SetDefault("storage.secret_key", "")
	viper.SetDefault("storage.bucket", "")
	viper.SetDefault("storage.endpoint", "")
	viper.SetDefault("scoring.verified_bonus", "0")
	viper.SetDefault("interview.max_questions", "5")
	viper.SetDefault("interview.idle_timeout", "2h")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.environment", "ENVIRONMENT")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("gemini.requests_per_second", "GEMINI_REQUESTS_PER_SECOND")
	viper.BindEnv("gemini.max_retries", "GEMINI_MAX_RETRIES")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("redis.cache_ttl", "CACHE_TTL")
	viper.BindEnv("rabbitmq.url", "RABBITMQ_URL")
	viper.BindEnv("rabbitmq.exchange", "RABBITMQ_EXCHANGE")
	viper.BindEnv("storage.account_id", "STORAGE_ACCOUNT_ID")
	viper.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	viper.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	viper.BindEnv("storage.bucket", "STORAGE_BUCKET")
	viper.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	viper.BindEnv("scoring.verified_bonus", "READINESS_VERIFIED_BONUS")
	viper.BindEnv("interview.max_questions", "INTERVIEW_MAX_QUESTIONS")
	viper.BindEnv("interview.idle_timeout", "INTERVIEW_IDLE_TIMEOUT")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			Environment: viper.GetString("server.environment"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		AI: AIConfig{
			GeminiAPIKey:      viper.GetString("gemini.api_key"),
			Model:             viper.GetString("gemini.model"),
			RequestsPerSecond: viper.GetFloat64("gemini.requests_per_second"),
			MaxRetries:        viper.GetInt("gemini.max_retries"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
		Redis: RedisConfig{
			URL:      viper.GetString("redis.url"),
			CacheTTL: viper.GetDuration("redis.cache_ttl"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      viper.GetString("rabbitmq.url"),
			Exchange: viper.GetString("rabbitmq.exchange"),
		},
		Storage: StorageConfig{
			AccountID: viper.GetString("storage.account_id"),
			AccessKey: viper.GetString("storage.access_key"),
			SecretKey: viper.GetString("storage.secret_key"),
			Bucket:    viper.GetString("storage.bucket"),
			Endpoint:  viper.GetString("storage.endpoint"),
		},
		Scoring: ScoringConfig{
			VerifiedBonus:         viper.GetFloat64("scoring.verified_bonus"),
			InterviewMaxQuestions: viper.GetInt("interview.max_questions"),
			InterviewIdleTimeout:  viper.GetDuration("interview.idle_timeout"),
		},
	}
}

// IsProduction reports whether cookies should be marked Secure
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
