package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	Env    string
	Domain string

	JWTSecret string
	JWTTTL    time.Duration

	Storage       string
	MongoURI      string
	MongoDatabase string

	RedisAddress     string
	RedisPassword    string
	IssueLimitPrefix string
	IssueDailyLimit  int

	SimulatedLatency  time.Duration
	StrictTransitions bool
	SeedDemo          bool
	SnowflakeNode     int64

	LogLevel    string
	LogDev      bool
	CORSOrigins []string
}

// Load reads .env (if present) and the process environment. The returned
// bool reports whether a .env file was found.
func Load() (Config, bool) {
	found := godotenv.Load() == nil

	cfg := Config{
		Port:   getEnv("PORT", "8080"),
		Env:    getEnv("GO_ENV", "development"),
		Domain: getEnv("DOMAIN", ""),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    time.Duration(getEnvInt("JWT_TTL_HOURS", 72)) * time.Hour,

		Storage:       strings.ToLower(getEnv("STORAGE", "memory")),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "civicsync"),

		RedisAddress:     os.Getenv("REDIS_ADDRESS"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		IssueLimitPrefix: getEnv("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue_limit"),
		IssueDailyLimit:  getEnvInt("ISSUE_DAILY_LIMIT", 10),

		SimulatedLatency:  getEnvDuration("SIMULATED_LATENCY", 0),
		StrictTransitions: getEnvBool("STRICT_TRANSITIONS", false),
		SeedDemo:          getEnvBool("SEED_DEMO", false),
		SnowflakeNode:     int64(getEnvInt("SNOWFLAKE_NODE", 1)),

		LogLevel:    os.Getenv("LOG_LEVEL"),
		LogDev:      getEnvBool("LOG_DEV", false),
		CORSOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}
	return cfg, found
}

func (c Config) IsProduction() bool { return c.Env == "production" }

// CookieDomain is empty in production so the cookie works cross-origin.
func (c Config) CookieDomain() string {
	if c.IsProduction() {
		return ""
	}
	return c.Domain
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "1" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
