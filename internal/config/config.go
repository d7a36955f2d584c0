package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type RedisConfig struct {
	Address  string
	Password string
	DB       int `validate:"gte=0"`
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

type Config struct {
	Port           string `validate:"required,numeric"`
	DBPath         string `validate:"required"`
	LogLevel       string `validate:"oneof=debug info warn error"`
	LogFormat      string `validate:"oneof=text json"`
	JWTSecret      string `validate:"required,min=16"`
	JWTIssuer      string
	InviteTTLHours int    `validate:"gte=1,lte=8760"`
	BaseURL        string `validate:"omitempty,url"`
	PostmarkToken  string
	FromEmail      string `validate:"omitempty,email"`
	Redis          RedisConfig
}

func (c Config) InviteTTL() time.Duration {
	return time.Duration(c.InviteTTLHours) * time.Hour
}

// Load reads a .env file when present, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	ttl, err := envInt("KITCHENTORY_INVITE_TTL_HOURS", 168)
	if err != nil {
		return Config{}, err
	}
	redisDB, err := envInt("KITCHENTORY_REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Port:           env("KITCHENTORY_PORT", "8080"),
		DBPath:         env("KITCHENTORY_DB_PATH", "kitchentory.db"),
		LogLevel:       strings.ToLower(env("KITCHENTORY_LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(env("KITCHENTORY_LOG_FORMAT", "text")),
		JWTSecret:      os.Getenv("KITCHENTORY_JWT_SECRET"),
		JWTIssuer:      os.Getenv("KITCHENTORY_JWT_ISSUER"),
		InviteTTLHours: ttl,
		BaseURL:        env("KITCHENTORY_BASE_URL", "http://localhost:8080"),
		PostmarkToken:  os.Getenv("KITCHENTORY_POSTMARK_TOKEN"),
		FromEmail:      os.Getenv("KITCHENTORY_FROM_EMAIL"),
		Redis: RedisConfig{
			Address:  os.Getenv("KITCHENTORY_REDIS_ADDR"),
			Password: os.Getenv("KITCHENTORY_REDIS_PASSWORD"),
			DB:       redisDB,
		},
	}, nil
}

var validate = validator.New()

// Validate checks everything the server needs. Commands that only touch the
// database call ValidateDB instead.
func (c Config) Validate() error {
	if err := formatErrors(validate.Struct(c)); err != nil {
		return err
	}
	if c.PostmarkToken != "" && c.FromEmail == "" {
		return errors.New("invalid config: FromEmail is required")
	}
	return nil
}

func (c Config) ValidateDB() error {
	return formatErrors(validate.StructPartial(c, "DBPath"))
}

func formatErrors(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min", "gte":
			msgs = append(msgs, field+" must be at least "+fe.Param())
		case "lte":
			msgs = append(msgs, field+" must be at most "+fe.Param())
		case "oneof":
			msgs = append(msgs, field+" must be one of "+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
