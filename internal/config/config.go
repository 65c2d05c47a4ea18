package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultEnvFile is read before the environment is processed, if it exists.
const DefaultEnvFile = "config/config.env"

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"BabyResell"`
		Port int    `envconfig:"PORT" default:"5000"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"babyresell"`
		SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	}

	Server struct {
		Timeout     time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		CORSOrigins []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
	}

	Auth struct {
		JWTSecret string `envconfig:"JWT_SECRET"`
	}

	Payment struct {
		Provider string `envconfig:"PAYMENT_PROVIDER" default:"stripe"`
		Currency string `envconfig:"PAYMENT_CURRENCY" default:"usd"`
	}

	Stripe struct {
		SecretKey string `envconfig:"STRIPE_SECRET_KEY"`
	}

	PayPal struct {
		ClientID     string `envconfig:"PAYPAL_CLIENT_ID"`
		ClientSecret string `envconfig:"PAYPAL_CLIENT_SECRET"`
		BaseURL      string `envconfig:"PAYPAL_BASE_URL" default:"https://api-m.sandbox.paypal.com"`
	}

	Escrow struct {
		Schedule string `envconfig:"ESCROW_SCHEDULE" default:"0 * * * *"`
		Workers  int    `envconfig:"ESCROW_WORKERS" default:"4"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"json"`
		File   string `envconfig:"LOG_FILE"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

// Validate reports settings that have no usable default.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	switch c.Payment.Provider {
	case "stripe":
		if c.Stripe.SecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required for the stripe provider"))
		}
	case "paypal":
		if c.PayPal.ClientID == "" || c.PayPal.ClientSecret == "" {
			errs = append(errs, errors.New("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET are required for the paypal provider"))
		}
	case "manual":
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.Payment.Provider))
	}

	if c.Escrow.Workers < 1 {
		errs = append(errs, errors.New("ESCROW_WORKERS must be at least 1"))
	}

	return errors.Join(errs...)
}

// Load reads envFile (if present) into the process environment and then
// processes the environment. Variables already set take precedence.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
