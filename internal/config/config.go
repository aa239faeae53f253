// Package config предоставялет структуры и функции для парсинга и загрузки конфига.
//
// Значения читаются из YAML-файла (CONFIG_PATH) и переопределяются переменными
// окружения. Перед чтением подгружается необязательный .env.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Провайдеры идентификации.
const (
	ProviderLocal    = "local"
	ProviderSupabase = "supabase"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string `yaml:"env" env:"APP_ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"DATABASE_URL" env-required:"true"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	Identity                `yaml:"identity"`
	Replicate               `yaml:"replicate"`
	Razorpay                `yaml:"razorpay"`
	ObjectStore             `yaml:"s3"`
	RabbitMQ                `yaml:"rabbitmq"`
	Reconciler              `yaml:"reconciler"`
	RateLimit               `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"30s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
	CatalogTTL   time.Duration `yaml:"catalog_ttl" env-default:"10m"`
}

// Identity настройки провайдера идентификации.
//
// Для local токены подписываются JWTSecretKey, для supabase проверяются
// секретом проекта SupabaseJWTSecret.
type Identity struct {
	Provider          string        `yaml:"provider" env:"IDENTITY_PROVIDER" env-default:"local"`
	JWTSecretKey      string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL          time.Duration `yaml:"token_ttl" env-default:"24h"`
	SupabaseURL       string        `yaml:"supabase_url" env:"SUPABASE_URL"`
	SupabaseAnonKey   string        `yaml:"supabase_anon_key" env:"SUPABASE_ANON_KEY"`
	SupabaseJWTSecret string        `yaml:"supabase_jwt_secret" env:"SUPABASE_JWT_SECRET"`
}

// Replicate настройки сервиса трансформации изображений.
type Replicate struct {
	APIToken     string        `yaml:"api_token" env:"REPLICATE_API_TOKEN" env-required:"true"`
	BaseURL      string        `yaml:"base_url" env:"REPLICATE_BASE_URL" env-default:"https://api.replicate.com"`
	ModelVersion string        `yaml:"model_version" env-default:"c09d3648fd62c9fc1bbb70a928d8fe56ef3dcd844c9ab9c2eefbf3df8dbbd2bb"`
	Prompt       string        `yaml:"prompt" env-default:"Studio Ghibli style, hand-painted anime illustration"`
	Timeout      time.Duration `yaml:"timeout" env-default:"30s"`
}

// Razorpay настройки платежного шлюза.
type Razorpay struct {
	KeyID     string `yaml:"key_id" env:"RAZORPAY_KEY_ID" env-required:"true"`
	KeySecret string `yaml:"key_secret" env:"RAZORPAY_KEY_SECRET" env-required:"true"`
	BaseURL   string `yaml:"base_url" env:"RAZORPAY_BASE_URL" env-default:"https://api.razorpay.com"`
}

// ObjectStore настройки S3-совместимого хранилища оригиналов.
type ObjectStore struct {
	S3BaseEndpoint string `yaml:"endpoint" env:"S3_ENDPOINT"`
	S3Region       string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	S3Bucket       string `yaml:"bucket" env:"S3_BUCKET" env-required:"true"`
	S3AccessKey    string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	S3SecretKey    string `yaml:"secret_key" env:"S3_SECRET_KEY"`
}

// RabbitMQ настройки публикации событий. Пустой URL отключает публикацию.
type RabbitMQ struct {
	URL      string `yaml:"url" env:"RABBITMQ_URL"`
	Exchange string `yaml:"exchange" env-default:"mirage.events"`
}

// Reconciler настройки фоновой сверки зависших трансформаций.
type Reconciler struct {
	Schedule   string        `yaml:"schedule" env-default:"@every 1m"`
	StaleAfter time.Duration `yaml:"stale_after" env-default:"2m"`
}

// RateLimit ограничение частоты запросов на трансформацию для одного пользователя.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"0.5"`
	Burst int     `yaml:"burst" env-default:"3"`
}

// Load читает конфиг из файла path и проверяет обязательные значения.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при любой ошибке.
func MustLoad() *Config {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.JWTSecretKey == "" {
			return errors.New("identity.jwt_secret_key is required for local provider")
		}
	case ProviderSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" || c.SupabaseJWTSecret == "" {
			return errors.New("identity.supabase_url, supabase_anon_key and supabase_jwt_secret are required for supabase provider")
		}
	default:
		return fmt.Errorf("unknown identity provider %q", c.Provider)
	}
	return nil
}
