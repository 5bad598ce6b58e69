package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	AI        AIConfig
	Quota     QuotaConfig
	RateLimit RateLimitConfig
}

// AIConfig configures the external generative-text provider.
type AIConfig struct {
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// QuotaConfig holds the fixed assist-quota policy shared by all users.
type QuotaConfig struct {
	PerMinuteLimit    int
	PerDayLimit       int
	MinInputLength    int
	MinItemsForDigest int
}

// RateLimitConfig configures the redis-backed ingress limiter for assist endpoints.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AssistRate  float64
	AssistBurst int

	InflightGuardEnabled   bool
	InflightLockTTLSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "beacon"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "beacon"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		AI: AIConfig{
			APIKey:         strings.TrimSpace(getenv("ANTHROPIC_API_KEY", "")),
			Model:          getenv("AI_MODEL", "claude-sonnet-4-5-20250929"),
			TimeoutSeconds: getenvInt("AI_TIMEOUT_SECONDS", 60),
		},
		Quota: QuotaConfig{
			PerMinuteLimit:    getenvInt("ASSIST_QUOTA_PER_MINUTE", 5),
			PerDayLimit:       getenvInt("ASSIST_QUOTA_PER_DAY", 100),
			MinInputLength:    getenvInt("ASSIST_MIN_INPUT_LENGTH", 20),
			MinItemsForDigest: getenvInt("ASSIST_MIN_ITEMS_FOR_DIGEST", 3),
		},
		RateLimit: RateLimitConfig{
			Enabled:                getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:              strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword:          getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:                getenvInt("RATE_LIMIT_REDIS_DB", 0),
			AssistRate:             getenvFloat("RATE_LIMIT_ASSIST_RATE", 1),
			AssistBurst:            getenvInt("RATE_LIMIT_ASSIST_BURST", 5),
			InflightGuardEnabled:   getenvBool("RATE_LIMIT_INFLIGHT_GUARD", false),
			InflightLockTTLSeconds: getenvInt("RATE_LIMIT_INFLIGHT_TTL_SECONDS", 120),
		},
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
