package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Assist modes.
const (
	AssistRules     = "rules"
	AssistInference = "inference"
)

type Config struct {
	Port      string        `env:"PORT,      default=8080"`
	Env       string        `env:"ENV,       default=development"`
	LogLevel  string        `env:"LOG_LEVEL, default=info"`
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=24h"`
	SeedDemo  bool          `env:"SEED_DEMO, default=false"`

	Store     StoreConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Assist    AssistConfig
	Inference InferenceConfig
	Blob      BlobConfig
}

type StoreConfig struct {
	Driver      string        `env:"STORE_DRIVER, default=mongo"`
	LoadTimeout time.Duration `env:"LOAD_TIMEOUT, default=3s"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017/?replicaSet=rs0"`
	Database string `env:"MONGO_DB,  default=travel_portal"`
}

type RedisConfig struct {
	Enabled   bool   `env:"REDIS_ENABLED,    default=true"`
	Addr      string `env:"REDIS_ADDR,       default=localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB,         default=0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX, default=travel:"`
}

type AssistConfig struct {
	Mode       string        `env:"ASSIST_MODE,        default=rules"`
	MinLatency time.Duration `env:"ASSIST_MIN_LATENCY, default=1500ms"`
	Workers    int           `env:"ASSIST_WORKERS,     default=4"`
}

type InferenceConfig struct {
	BaseURL           string        `env:"INFERENCE_BASE_URL,        default=https://generativelanguage.googleapis.com"`
	APIKey            string        `env:"INFERENCE_API_KEY"`
	TextModel         string        `env:"INFERENCE_TEXT_MODEL,      default=gemini-2.5-flash"`
	ImageModel        string        `env:"INFERENCE_IMAGE_MODEL,     default=imagen-3.0-generate-002"`
	Timeout           time.Duration `env:"INFERENCE_TIMEOUT,         default=60s"`
	RequestsPerMinute int           `env:"INFERENCE_RPM,             default=30"`
	MaxImageWidth     int           `env:"INFERENCE_MAX_IMAGE_WIDTH, default=1024"`
}

type BlobConfig struct {
	PublicBaseURL  string `env:"BLOB_PUBLIC_BASE_URL, default=http://localhost:8080"`
	UploadMaxBytes int64  `env:"UPLOAD_MAX_BYTES,     default=10485760"`
}

// Load reads configuration from environment variables using go-envconfig.
// Variables in a local .env file are applied first without overriding ones
// already set in the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom is Load with an explicit variable source.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Store.Driver {
	case DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Assist.Mode {
	case AssistRules:
	case AssistInference:
		if c.Inference.APIKey == "" {
			return errors.New("INFERENCE_API_KEY is required in inference mode")
		}
	default:
		return fmt.Errorf("unknown ASSIST_MODE %q", c.Assist.Mode)
	}
	return nil
}

// Development reports whether ENV selects local development output.
func (c *Config) Development() bool {
	return c.Env == "development"
}
