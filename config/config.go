package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Stream   StreamConfig
	Sessions SessionsConfig
	AWS      AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
	LogLevel           string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/community?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	Issuer      string // expected iss claim; empty accepts any issuer
	ExpireHours int
}

// StreamConfig holds the media edge endpoints stream keys resolve against.
type StreamConfig struct {
	IngestBaseURL   string // e.g. rtmp://ingest.example.com/live
	PlaybackBaseURL string // e.g. https://cdn.example.com/hls
}

// SessionsConfig holds live session defaults and limits.
type SessionsConfig struct {
	DefaultMaxParticipants int
	MaxParticipantsLimit   int
	DefaultDurationMinutes int
	MaxDurationMinutes     int
	SweepInterval          time.Duration
}

// AWSConfig holds AWS credentials and the recordings bucket.
type AWSConfig struct {
	Region               string
	Endpoint             string
	AccessKeyID          string
	SecretAccessKey      string
	RecordingsBucket     string
	PublicRecordings     bool
	PresignExpireMinutes int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			LogLevel:           getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "community"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 20)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			Issuer:      getEnv("JWT_ISSUER", ""),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Stream: StreamConfig{
			IngestBaseURL:   getEnv("STREAM_INGEST_BASE_URL", "rtmp://localhost:1935/live"),
			PlaybackBaseURL: getEnv("STREAM_PLAYBACK_BASE_URL", "http://localhost:8888/hls"),
		},
		Sessions: SessionsConfig{
			DefaultMaxParticipants: getEnvInt("SESSION_DEFAULT_MAX_PARTICIPANTS", 50),
			MaxParticipantsLimit:   getEnvInt("SESSION_MAX_PARTICIPANTS_LIMIT", 1000),
			DefaultDurationMinutes: getEnvInt("SESSION_DEFAULT_DURATION_MINUTES", 60),
			MaxDurationMinutes:     getEnvInt("SESSION_MAX_DURATION_MINUTES", 720),
			SweepInterval:          getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			Endpoint:             getEnv("AWS_S3_ENDPOINT", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			RecordingsBucket:     getEnv("AWS_S3_RECORDINGS_BUCKET", "community-recordings"),
			PublicRecordings:     getEnvBool("AWS_S3_RECORDINGS_PUBLIC", false),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Stream.IngestBaseURL == "" || c.Stream.PlaybackBaseURL == "" {
		return fmt.Errorf("STREAM_INGEST_BASE_URL and STREAM_PLAYBACK_BASE_URL are required")
	}
	s := c.Sessions
	if s.MaxParticipantsLimit < 1 || s.DefaultMaxParticipants < 1 || s.DefaultMaxParticipants > s.MaxParticipantsLimit {
		return fmt.Errorf("invalid session capacity limits: default %d, max %d", s.DefaultMaxParticipants, s.MaxParticipantsLimit)
	}
	if s.MaxDurationMinutes < 1 || s.DefaultDurationMinutes < 1 || s.DefaultDurationMinutes > s.MaxDurationMinutes {
		return fmt.Errorf("invalid session duration limits: default %d, max %d", s.DefaultDurationMinutes, s.MaxDurationMinutes)
	}
	if s.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
