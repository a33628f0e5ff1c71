package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort     string
	Env         string
	FrontendURL []string

	JWTKey []byte
	JWTExp time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LeaderboardCacheTTL time.Duration

	MaintenanceQueueName      string
	MaintenanceLockKey        string
	MaintenanceLockTTLSeconds int
	MaintenancePopTimeout     time.Duration

	PaymentWebhookSecret string
	PaymentCurrency      string

	// Social login. Tokens are RS256 signed by the external identity provider.
	FederatedIssuer    string
	FederatedAudience  string
	FederatedPublicKey string
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIPort:     getEnv("API_PORT", "8080"),
		Env:         getEnv("APP_ENV", getEnv("NODE_ENV", "development")),
		FrontendURL: splitList(getEnv("FRONTEND_URL", "http://localhost:3000")),

		JWTKey: []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp: time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "user"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "testseries"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		LeaderboardCacheTTL: time.Duration(getEnvAsInt("LEADERBOARD_CACHE_TTL_SECONDS", 30)) * time.Second,

		MaintenanceQueueName:      getEnv("MAINTENANCE_QUEUE_NAME", "maintenance_jobs_queue"),
		MaintenanceLockKey:        getEnv("MAINTENANCE_LOCK_KEY", "maintenance_job_lock"),
		MaintenanceLockTTLSeconds: getEnvAsInt("MAINTENANCE_LOCK_TTL_SECONDS", 300),
		MaintenancePopTimeout:     getEnvAsDuration("MAINTENANCE_POP_TIMEOUT", 5*time.Second),

		PaymentWebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		PaymentCurrency:      getEnv("PAYMENT_CURRENCY", "INR"),

		FederatedIssuer:    getEnv("FEDERATED_ISSUER", "https://accounts.google.com"),
		FederatedAudience:  getEnv("FEDERATED_AUDIENCE", ""),
		FederatedPublicKey: getEnv("FEDERATED_PUBLIC_KEY", ""),
	}

	// DATABASE_URL wins over the discrete DB_* settings.
	cfg.DBConnStr = getEnv("DATABASE_URL", "")
	if cfg.DBConnStr == "" {
		cfg.DBConnStr = "host=" + cfg.DBHost +
			" port=" + cfg.DBPort +
			" user=" + cfg.DBUser +
			" password=" + cfg.DBPassword +
			" dbname=" + cfg.DBName +
			" sslmode=" + cfg.DBSslMode
	}

	if cfg.IsProduction() && string(cfg.JWTKey) == "defaultsecret" {
		log.Println("WARN: JWT_SECRET is not set in production")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings such as "5s" or "1m30s".
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil && d > 0 {
		return d
	}
	return fallback
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
