package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultMembershipCacheTTLDays is used when the configured expert-access
// cache expiry is missing or out of range.
const DefaultMembershipCacheTTLDays = 5

// Config aggregates runtime configuration for the assistant.
type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Logger        LoggerConfig
	Bot           BotConfig
	KnowledgeBase KnowledgeBaseConfig
	Translator    TranslatorConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// BotConfig describes the conversational surface: which tenant the bot
// serves, where the expert team lives, and how long SME membership checks
// may be cached.
type BotConfig struct {
	TenantID                string
	SmeTeamID               string
	AppBaseURI              string
	WelcomeText             string
	ProductName             string
	MembershipCacheTTLDays  int
	DisableTenantFilter     bool
	WebhookSecret           string
	BotID                   string
	BotName                 string
	DefaultServiceURL       string
	TransportAuthToken      string
	TransportTimeoutSeconds int
}

// KnowledgeBaseConfig points at the external knowledge-base service.
type KnowledgeBaseConfig struct {
	Endpoint        string
	KnowledgeBaseID string
	SubscriptionKey string
	TimeoutSeconds  int
	ScoreThreshold  float64
}

// TranslatorConfig points at the external translation service.
type TranslatorConfig struct {
	Endpoint         string
	SubscriptionKey  string
	Region           string
	PivotLanguage    string
	AllowedLanguages []string
	TimeoutSeconds   int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-assistant"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Bot: BotConfig{
			TenantID:                os.Getenv("BOT_TENANT_ID"),
			SmeTeamID:               os.Getenv("BOT_SME_TEAM_ID"),
			AppBaseURI:              getEnv("BOT_APP_BASE_URI", "http://localhost:8080"),
			WelcomeText:             getEnv("BOT_WELCOME_TEXT", "Hi! Ask me a question and I will look it up for you."),
			ProductName:             getEnv("BOT_PRODUCT_NAME", "support-assistant"),
			MembershipCacheTTLDays:  getEnvAsInt("BOT_ACCESS_CACHE_EXPIRY_DAYS", DefaultMembershipCacheTTLDays),
			DisableTenantFilter:     getEnvAsBool("BOT_DISABLE_TENANT_FILTER", false),
			WebhookSecret:           os.Getenv("BOT_WEBHOOK_SECRET"),
			BotID:                   getEnv("BOT_ID", "support-assistant"),
			BotName:                 getEnv("BOT_NAME", "Support Assistant"),
			DefaultServiceURL:       os.Getenv("BOT_SERVICE_URL"),
			TransportAuthToken:      os.Getenv("BOT_TRANSPORT_AUTH_TOKEN"),
			TransportTimeoutSeconds: getEnvAsInt("BOT_TRANSPORT_TIMEOUT_SECONDS", 15),
		},
		KnowledgeBase: KnowledgeBaseConfig{
			Endpoint:        getEnv("KB_ENDPOINT", "http://localhost:9090"),
			KnowledgeBaseID: os.Getenv("KB_ID"),
			SubscriptionKey: os.Getenv("KB_SUBSCRIPTION_KEY"),
			TimeoutSeconds:  getEnvAsInt("KB_TIMEOUT_SECONDS", 10),
			ScoreThreshold:  getEnvAsFloat("KB_SCORE_THRESHOLD", 50),
		},
		Translator: TranslatorConfig{
			Endpoint:         getEnv("TRANSLATOR_ENDPOINT", "http://localhost:9091"),
			SubscriptionKey:  os.Getenv("TRANSLATOR_SUBSCRIPTION_KEY"),
			Region:           os.Getenv("TRANSLATOR_REGION"),
			PivotLanguage:    getEnv("TRANSLATOR_PIVOT_LANGUAGE", "en"),
			AllowedLanguages: splitList(getEnv("TRANSLATOR_ALLOWED_LANGUAGES", "en,es")),
			TimeoutSeconds:   getEnvAsInt("TRANSLATOR_TIMEOUT_SECONDS", 20),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// IsProduction reports whether the process runs in the production environment.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
