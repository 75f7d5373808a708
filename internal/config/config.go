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
	DatabaseURL        string
	RedisURL           string
	RedisSentinelAddrs []string // comma separated in env
	RedisMasterName    string
	KafkaBrokers       string
	KafkaUsername      string
	KafkaPassword      string
	KafkaCACert        string
	KafkaTopic         string
	JWTSecret          string
	TokenTTL           time.Duration
	ServerPort         string
	GRPCPort           string
	Environment        string
	AdminUsername      string
	AdminPassword      string
	S3Bucket           string
	S3Region           string
	RequestTimeout     time.Duration
	CORSOrigins        []string
	NodeID             int64 // snowflake node for event ids
}

// LoadDotEnv reads .env files when present; missing files are not an error
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

func Load() *Config {
	// Hosting platforms name the postgres variables differently; check in order
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		databaseURL = getEnv("POSTGRES_URL", "")
	}
	if databaseURL == "" {
		pgHost := getEnv("PGHOST", "")
		pgPort := getEnv("PGPORT", "5432")
		pgUser := getEnv("PGUSER", "postgres")
		pgPassword := getEnv("PGPASSWORD", "")
		pgDatabase := getEnv("PGDATABASE", "rechnung")

		if pgHost != "" {
			if pgPassword != "" {
				databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
					pgUser, pgPassword, pgHost, pgPort, pgDatabase)
			} else {
				databaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=disable",
					pgUser, pgHost, pgPort, pgDatabase)
			}
		}
	}
	if databaseURL == "" {
		databaseURL = "postgres://postgres@localhost:5432/rechnung?sslmode=disable"
	}

	// Empty REDIS_URL disables the cache and the save lock
	redisURL := getEnv("REDIS_URL", "")
	if redisURL == "" {
		redisHost := getEnv("REDISHOST", "")
		redisPort := getEnv("REDISPORT", "6379")
		redisPassword := getEnv("REDISPASSWORD", "")
		if redisHost != "" {
			if redisPassword != "" {
				redisURL = fmt.Sprintf("redis://:%s@%s:%s/0", redisPassword, redisHost, redisPort)
			} else {
				redisURL = fmt.Sprintf("redis://%s:%s/0", redisHost, redisPort)
			}
		}
	}

	return &Config{
		DatabaseURL:        databaseURL,
		RedisURL:           redisURL,
		RedisSentinelAddrs: getEnvList("REDIS_SENTINEL_ADDRS"),
		RedisMasterName:    getEnv("REDIS_MASTER_NAME", "mymaster"),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
		KafkaUsername:      getEnv("KAFKA_USERNAME", ""),
		KafkaPassword:      getEnv("KAFKA_PASSWORD", ""),
		KafkaCACert:        getEnv("KAFKA_CA_CERT", ""),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "invoice-events"),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		TokenTTL:           getEnvDuration("TOKEN_TTL", 24*time.Hour),
		ServerPort:         getEnv("PORT", "5000"),
		GRPCPort:           getEnv("GRPC_PORT", "50051"),
		Environment:        getEnv("ENV", "development"),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", "admin"),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Region:           getEnv("S3_REGION", "eu-central-1"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		CORSOrigins:        getEnvList("CORS_ORIGINS"),
		NodeID:             int64(getEnvInt("NODE_ID", 1)),
	}
}

// IsProduction reports ENV=production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
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

// getEnvDuration accepts Go durations ("15s") or plain seconds ("15")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
