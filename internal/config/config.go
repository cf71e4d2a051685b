package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type HTTPServer struct {
	Addr string `yaml:"address" env:"HTTP_ADDR" env-default:":8080"`
}

// Upstream points at the remote commerce API that owns cart truth.
type Upstream struct {
	BaseURL string        `yaml:"COMMERCE_API_URL" env:"COMMERCE_API_URL" env-required:"true"`
	Timeout time.Duration `yaml:"COMMERCE_API_TIMEOUT" env:"COMMERCE_API_TIMEOUT" env-default:"10s"`
}

type RedisConnect struct {
	Host     string `yaml:"REDIS_HOST" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"REDIS_PORT" env:"REDIS_PORT" env-default:"6379"`
	Username string `yaml:"REDIS_USER" env:"REDIS_USER" env-default:"default"`
	Password string `yaml:"REDIS_PASSWORD" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"REDIS_DB" env:"REDIS_DB" env-default:"0"`
}

type CacheConfig struct {
	DefaultTTL time.Duration `yaml:"DEFAULT_TTL" env:"CACHE_DEFAULT_TTL" env-default:"5m"`
	ProductTTL time.Duration `yaml:"PRODUCT_TTL" env:"CACHE_PRODUCT_TTL" env-default:"2m"`
	VoucherTTL time.Duration `yaml:"VOUCHER_TTL" env:"CACHE_VOUCHER_TTL" env-default:"1m"`
}

// RateConfig bounds the stepper-click mutation storm a single line may emit
// inside one sliding window.
type RateConfig struct {
	MaxMutations int64         `yaml:"MAX_MUTATIONS" env:"MAX_MUTATIONS" env-default:"20"`
	WindowSize   time.Duration `yaml:"WINDOW_SIZE" env:"WINDOW_SIZE" env-default:"10s"`
}

type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"IDLE_TTL" env:"SESSION_IDLE_TTL" env-default:"30m"`
	MaxConcurrent int           `yaml:"STOCK_FANOUT" env:"STOCK_FANOUT" env-default:"8"`
}

type Telemetry struct {
	Enabled      bool   `yaml:"enabled" env:"OTEL_ENABLED" env-default:"false"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4318"`
}

type Security struct {
	JWTKey string `yaml:"JWT_KEY" env:"JWT_KEY" env-required:"true"`
}

type Config struct {
	Env          string `yaml:"env" env:"ENV" env-required:"true"`
	HTTPServer   `yaml:"http_server"`
	Upstream     Upstream      `yaml:"upstream"`
	RedisConnect RedisConnect  `yaml:"redis"`
	CacheConfig  CacheConfig   `yaml:"cache"`
	RateConfig   RateConfig    `yaml:"rateConfig"`
	Session      SessionConfig `yaml:"session"`
	Telemetry    Telemetry     `yaml:"telemetry"`
	Security     Security      `yaml:"security"`
}

func MustLoad() *Config {

	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {

		flags := flag.String("config", "", "gets the config flag value")

		flag.Parse()

		configPath = *flags

		if configPath == "" {
			log.Fatal("Config path is not set")
		}

	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can not read config file: %s", err.Error())
	}

	return &cfg
}

func (r *RedisConnect) GetDSN() string {
	return fmt.Sprintf("redis://%s:%s@%s:%s", r.Username, r.Password, r.Host, r.Port)
}
