package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Catalog    CatalogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Session    SessionConfig
	Generation GenerationConfig
	Artifacts  ArtifactConfig
	Analytics  AnalyticsConfig
	Metrics    MetricsConfig
	RateLimit  RateLimitConfig
	Order      OrderConfig
	Prompt     PromptConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	OpsKey         string
}

type CatalogConfig struct {
	Source      string // "file" or "postgres"
	Path        string
	ProductsDir string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type SessionConfig struct {
	Secret   string
	TTL      time.Duration
	TokenTTL time.Duration
}

type GenerationConfig struct {
	Provider               string // "azure-openai" or "gemini"
	Endpoint               string
	Deployment             string
	APIVersion             string
	Size                   string
	Quality                string
	BearerToken            string
	TenantID               string
	ClientID               string
	ClientSecret           string
	Scope                  string
	GeminiAPIKey           string
	GeminiModel            string
	Timeout                time.Duration
	MaxAttempts            uint
	InitialBackoff         time.Duration
	MaxBackoff             time.Duration
	BackoffMultiplier      float64
	RetryAmbiguousTimeouts bool
}

type ArtifactConfig struct {
	Backend       string // "file" or "s3"
	Dir           string
	URLPrefix     string
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	PresignExpiry time.Duration
}

type AnalyticsConfig struct {
	Backend      string // "" disables analytics, "redis" uses Redis Streams
	StreamPrefix string
	MaxLen       int64
	Timeout      time.Duration
	MaxAttempts  uint
	SyncAttempts uint
	QueueSize    int
}

type MetricsConfig struct {
	OTLPEndpoint   string
	OTLPHeaders    string
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
	Interval       time.Duration
}

type RateLimitConfig struct {
	GenerationsPerWindow int
	Window               time.Duration
}

type OrderConfig struct {
	DeliveryMinDays int
	DeliveryMaxDays int
}

type PromptConfig struct {
	ModelDescription string
}

// Enabled reports whether a database name was configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Database != ""
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5000")
	viper.SetDefault("CATALOG_SOURCE", "file")
	viper.SetDefault("CATALOG_PATH", "./data/catalog.json")
	viper.SetDefault("PRODUCTS_DIR", "./static/products")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SESSION_TTL_HOURS", 72)
	viper.SetDefault("SESSION_TOKEN_TTL_HOURS", 72)
	viper.SetDefault("GENERATION_PROVIDER", "azure-openai")
	viper.SetDefault("AOAI_DEPLOYMENT_NAME", "gpt-image-1")
	viper.SetDefault("AOAI_API_VERSION", "2025-04-01-preview")
	viper.SetDefault("AOAI_IMAGE_SIZE", "1024x1536")
	viper.SetDefault("AOAI_IMAGE_QUALITY", "high")
	viper.SetDefault("AOAI_SCOPE", "https://cognitiveservices.azure.com/.default")
	viper.SetDefault("GEMINI_MODEL", "gemini-2.5-flash-image")
	viper.SetDefault("GENERATION_TIMEOUT_SECONDS", 120)
	viper.SetDefault("GENERATION_MAX_ATTEMPTS", 3)
	viper.SetDefault("GENERATION_INITIAL_BACKOFF_MS", 1000)
	viper.SetDefault("GENERATION_MAX_BACKOFF_MS", 15000)
	viper.SetDefault("GENERATION_BACKOFF_MULTIPLIER", 2.0)
	viper.SetDefault("GENERATION_RETRY_AMBIGUOUS_TIMEOUTS", false)
	viper.SetDefault("ARTIFACT_BACKEND", "file")
	viper.SetDefault("ARTIFACT_DIR", "./static/generated")
	viper.SetDefault("ARTIFACT_URL_PREFIX", "/generated")
	viper.SetDefault("ARTIFACT_S3_PREFIX", "generated/")
	viper.SetDefault("ARTIFACT_PRESIGN_EXPIRY_MINUTES", 60)
	viper.SetDefault("ANALYTICS_STREAM_PREFIX", "outfit-studio:")
	viper.SetDefault("ANALYTICS_STREAM_MAXLEN", 100000)
	viper.SetDefault("ANALYTICS_TIMEOUT_MS", 2000)
	viper.SetDefault("ANALYTICS_MAX_ATTEMPTS", 5)
	viper.SetDefault("ANALYTICS_SYNC_ATTEMPTS", 2)
	viper.SetDefault("ANALYTICS_QUEUE_SIZE", 256)
	viper.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	viper.SetDefault("OTEL_SERVICE_NAME", "outfit-studio")
	viper.SetDefault("OTEL_SERVICE_VERSION", "1.0.0")
	viper.SetDefault("OTEL_METRIC_INTERVAL_SECONDS", 30)
	viper.SetDefault("RATE_LIMIT_GENERATIONS", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("ORDER_DELIVERY_MIN_DAYS", 3)
	viper.SetDefault("ORDER_DELIVERY_MAX_DAYS", 5)
	viper.SetDefault("PROMPT_MODEL_DESCRIPTION", "female model")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(viper.GetString("ALLOWED_ORIGINS")),
			OpsKey:         viper.GetString("OPS_API_KEY"),
		},
		Catalog: CatalogConfig{
			Source:      viper.GetString("CATALOG_SOURCE"),
			Path:        viper.GetString("CATALOG_PATH"),
			ProductsDir: viper.GetString("PRODUCTS_DIR"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Session: SessionConfig{
			Secret:   viper.GetString("SESSION_SECRET"),
			TTL:      time.Duration(viper.GetInt("SESSION_TTL_HOURS")) * time.Hour,
			TokenTTL: time.Duration(viper.GetInt("SESSION_TOKEN_TTL_HOURS")) * time.Hour,
		},
		Generation: GenerationConfig{
			Provider:               viper.GetString("GENERATION_PROVIDER"),
			Endpoint:               strings.TrimRight(viper.GetString("AOAI_API_BASE"), "/"),
			Deployment:             viper.GetString("AOAI_DEPLOYMENT_NAME"),
			APIVersion:             viper.GetString("AOAI_API_VERSION"),
			Size:                   viper.GetString("AOAI_IMAGE_SIZE"),
			Quality:                viper.GetString("AOAI_IMAGE_QUALITY"),
			BearerToken:            viper.GetString("AOAI_BEARER_TOKEN"),
			TenantID:               viper.GetString("AZURE_TENANT_ID"),
			ClientID:               viper.GetString("AZURE_CLIENT_ID"),
			ClientSecret:           viper.GetString("AZURE_CLIENT_SECRET"),
			Scope:                  viper.GetString("AOAI_SCOPE"),
			GeminiAPIKey:           viper.GetString("GEMINI_API_KEY"),
			GeminiModel:            viper.GetString("GEMINI_MODEL"),
			Timeout:                time.Duration(viper.GetInt("GENERATION_TIMEOUT_SECONDS")) * time.Second,
			MaxAttempts:            viper.GetUint("GENERATION_MAX_ATTEMPTS"),
			InitialBackoff:         time.Duration(viper.GetInt("GENERATION_INITIAL_BACKOFF_MS")) * time.Millisecond,
			MaxBackoff:             time.Duration(viper.GetInt("GENERATION_MAX_BACKOFF_MS")) * time.Millisecond,
			BackoffMultiplier:      viper.GetFloat64("GENERATION_BACKOFF_MULTIPLIER"),
			RetryAmbiguousTimeouts: viper.GetBool("GENERATION_RETRY_AMBIGUOUS_TIMEOUTS"),
		},
		Artifacts: ArtifactConfig{
			Backend:       viper.GetString("ARTIFACT_BACKEND"),
			Dir:           viper.GetString("ARTIFACT_DIR"),
			URLPrefix:     strings.TrimRight(viper.GetString("ARTIFACT_URL_PREFIX"), "/"),
			S3Bucket:      viper.GetString("ARTIFACT_S3_BUCKET"),
			S3Region:      viper.GetString("ARTIFACT_S3_REGION"),
			S3Prefix:      viper.GetString("ARTIFACT_S3_PREFIX"),
			PresignExpiry: time.Duration(viper.GetInt("ARTIFACT_PRESIGN_EXPIRY_MINUTES")) * time.Minute,
		},
		Analytics: AnalyticsConfig{
			Backend:      viper.GetString("ANALYTICS_BACKEND"),
			StreamPrefix: viper.GetString("ANALYTICS_STREAM_PREFIX"),
			MaxLen:       viper.GetInt64("ANALYTICS_STREAM_MAXLEN"),
			Timeout:      time.Duration(viper.GetInt("ANALYTICS_TIMEOUT_MS")) * time.Millisecond,
			MaxAttempts:  viper.GetUint("ANALYTICS_MAX_ATTEMPTS"),
			SyncAttempts: viper.GetUint("ANALYTICS_SYNC_ATTEMPTS"),
			QueueSize:    viper.GetInt("ANALYTICS_QUEUE_SIZE"),
		},
		Metrics: MetricsConfig{
			OTLPEndpoint:   viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			OTLPHeaders:    viper.GetString("OTEL_EXPORTER_OTLP_HEADERS"),
			OTLPInsecure:   viper.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
			ServiceName:    viper.GetString("OTEL_SERVICE_NAME"),
			ServiceVersion: viper.GetString("OTEL_SERVICE_VERSION"),
			Interval:       time.Duration(viper.GetInt("OTEL_METRIC_INTERVAL_SECONDS")) * time.Second,
		},
		RateLimit: RateLimitConfig{
			GenerationsPerWindow: viper.GetInt("RATE_LIMIT_GENERATIONS"),
			Window:               time.Duration(viper.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
		Order: OrderConfig{
			DeliveryMinDays: viper.GetInt("ORDER_DELIVERY_MIN_DAYS"),
			DeliveryMaxDays: viper.GetInt("ORDER_DELIVERY_MAX_DAYS"),
		},
		Prompt: PromptConfig{
			ModelDescription: viper.GetString("PROMPT_MODEL_DESCRIPTION"),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
