package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBHost      string
	DBPort      string
	DBUser      string
	DBPass      string
	DBName      string
	ServerPort  string
	GatewayPort string
	RedisURL    string
	Env         string
	FrontendURL string
	JWTSecret   string

	// UserTable names the host application's user entity table; only id and created_at are read.
	// The table is required. When it cannot be read, a new user's broadcast cursor starts at zero
	// and every existing broadcast is materialized for them.
	UserTable       string
	TokenSecret     string
	Channel         string
	DefaultCategory string

	PurgeSchedule  string
	PurgeRetention time.Duration

	SendRatePerMinute int
	SendBurst         int

	WelcomeSubject  string
	WelcomeBody     string
	WelcomeSenderID uint64
}

func LoadConfig() Config {
	retention, err := time.ParseDuration(getEnv("PURGE_RETENTION", "720h"))
	if err != nil {
		retention = 30 * 24 * time.Hour
	}

	return Config{
		DBHost:      getEnv("DB_HOST", "postgres"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPass:      getEnv("DB_PASSWORD", "password"),
		DBName:      getEnv("DB_NAME", "messenger"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		GatewayPort: getEnv("GATEWAY_PORT", "3000"),
		RedisURL:    getEnv("REDIS_URL", "redis:6379"),
		Env:         getEnv("ENV", "dev"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", "change-me"),

		UserTable:       getEnv("MESSENGER_USER_TABLE", "users"),
		TokenSecret:     getEnv("MESSENGER_TOKEN", "SomeRandomString"),
		Channel:         getEnv("MESSENGER_CHANNEL", "notification"),
		DefaultCategory: getEnv("MESSENGER_DEFAULT_CATEGORY", "Msg"),

		PurgeSchedule:  getEnv("PURGE_SCHEDULE", "@daily"),
		PurgeRetention: retention,

		SendRatePerMinute: getEnvAsInt("SEND_RATE_PER_MINUTE", 30),
		SendBurst:         getEnvAsInt("SEND_BURST", 10),

		WelcomeSubject:  getEnv("WELCOME_SUBJECT", ""),
		WelcomeBody:     getEnv("WELCOME_BODY", ""),
		WelcomeSenderID: getEnvAsUint64("WELCOME_SENDER_ID", 0),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return fallback
}

func getEnvAsUint64(key string, fallback uint64) uint64 {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return fallback
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort,
	)
}

// AllowedOrigins splits FRONTEND_URL on commas, falling back to local dev origins.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	origins := strings.Split(c.FrontendURL, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}
