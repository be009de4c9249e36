package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	CORSOrigins []string

	// Redis (asynq queue + rate limiting)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Admin API auth
	JWTSecret string

	// Rate limiting for the public recommendation endpoints
	RateLimitReqs   int
	RateLimitWindow int

	// Gemini embeddings
	GeminiAPIKey    string
	EmbeddingsModel string
	GeminiTier      string

	// Vector search
	VectorCollection string
	VectorIndexName  string
	VectorDimensions int

	// Recommendations
	DefaultTopK int

	// Ingestion pipeline tunables
	IngestChunkSize       int
	IngestRetryWait       time.Duration
	IngestMaxAttempts     int
	IngestBatchRetryDelay time.Duration
	IngestBatchSkipAfter  int
	IngestBatchPause      time.Duration

	// Nightly full re-ingest schedule (cron expression, empty disables)
	IngestCron string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/media_recommender"),
		DBName:   getEnv("DB_NAME", "media_recommender"),
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", ""),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),

		VectorCollection: getEnv("VECTOR_COLLECTION", "content_vectors"),
		VectorIndexName:  getEnv("MONGODB_VECTOR_INDEX", "content_vectors_index"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 1536),

		DefaultTopK: getEnvInt("DEFAULT_TOP_K", 5),

		IngestChunkSize:       getEnvInt("INGEST_CHUNK_SIZE", 50),
		IngestRetryWait:       getEnvDuration("INGEST_RETRY_WAIT_MS", 4400*time.Millisecond),
		IngestMaxAttempts:     getEnvInt("INGEST_MAX_ATTEMPTS", 5),
		IngestBatchRetryDelay: getEnvDuration("INGEST_BATCH_RETRY_DELAY_MS", 5*time.Second),
		IngestBatchSkipAfter:  getEnvInt("INGEST_BATCH_SKIP_AFTER", 5),
		IngestBatchPause:      getEnvDuration("INGEST_BATCH_PAUSE_MS", time.Second),

		IngestCron: getEnv("INGEST_CRON", "0 3 * * *"),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration reads a millisecond count from the environment.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
