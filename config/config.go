package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	EndpointPrefix string        `env:"SERVICE_ENDPOINT_PREFIX" envDefault:"/api"`
	GinMode        string        `env:"GIN_MODE" envDefault:"debug"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	DatabaseURL string        `env:"DATABASE_URL,required"`
	JWTSecret   string        `env:"JWT_SECRET,required"`
	TokenTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
	StripeTestMode      bool   `env:"STRIPE_TEST_MODE" envDefault:"true"`

	RedisAddr    string   `env:"REDIS_ADDR"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	ConsulAddr   string   `env:"CONSUL_ADDR"`
	ServiceHost  string   `env:"SERVICE_HOST" envDefault:"localhost"`
	GRPCPort     string   `env:"GRPC_PORT" envDefault:"50051"`

	// removing the last item of an order deletes the order unless this is set
	KeepEmptyOrders bool `env:"KEEP_EMPTY_ORDERS" envDefault:"false"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	err := godotenv.Load(envFiles...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}
