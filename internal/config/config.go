package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

var ErrStorage = errors.New("unsupported storage")

type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP
	HTTPHost          string `envconfig:"HTTP_HOST" default:"localhost"`
	HTTPPort          string `envconfig:"HTTP_PORT" default:"8092"`
	ReadHeaderTimeout int    `envconfig:"HTTP_READ_HEADER_TIMEOUT" default:"20"`
	LivenessEndpoint  string `envconfig:"LIVENESS_ENDPOINT" default:"/liveness"`

	// Storage
	Storage     string `envconfig:"STORAGE" default:"memory"`
	PostgresDSN string `envconfig:"PG_DSN"`
	SeedDemo    bool   `envconfig:"SEED_DEMO" default:"true"`

	// Events
	RabbitURL       string `envconfig:"RABBIT_URL"`
	PaymentExchange string `envconfig:"PAYMENT_EXCHANGE" default:"payment.exchange"`

	// Identity
	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	JWTExpireMin int    `envconfig:"JWT_EXPIRE_MIN" default:"30"`
	BcryptCost   int    `envconfig:"BCRYPT_COST" default:"10"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env files %v: %w", envFiles, err)
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}

	if err := c.validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

func (c Config) validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("PG_DSN is required for %s storage: %w", c.Storage, ErrStorage)
		}
	default:
		return fmt.Errorf("%q: %w", c.Storage, ErrStorage)
	}

	return nil
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpireMin) * time.Minute
}
