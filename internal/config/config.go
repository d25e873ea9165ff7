package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderStripe = "stripe"
	ProviderMemory = "memory"

	defaultGuestEmail = "guest@kisanmarketplace.in"
)

// MissingError reports a required setting that is not present.
// Callers treat it as fatal at startup.
type MissingError struct {
	Key string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Key)
}

// Config holds every setting the API server reads from the environment.
type Config struct {
	Port            string
	DatabaseDSN     string
	PaymentProvider string
	StripeSecretKey string
	JWTSecret       string
	GuestEmail      string
	Currency        string
	FrontendOrigin  string
	CORSAllowOrigin string

	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string

	ProviderTimeout time.Duration
	DBTimeout       time.Duration
}

// Load reads a .env file (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can inject values.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Port:            get("PORT", "8080"),
		DatabaseDSN:     get("DB_DSN_PRIMARY", ""),
		PaymentProvider: strings.ToLower(get("PAYMENT_PROVIDER", ProviderStripe)),
		StripeSecretKey: get("STRIPE_SECRET_KEY", ""),
		JWTSecret:       get("JWT_SECRET", ""),
		GuestEmail:      get("GUEST_EMAIL", defaultGuestEmail),
		Currency:        strings.ToLower(get("CURRENCY", "inr")),
		FrontendOrigin:  strings.TrimRight(get("FRONTEND_ORIGIN", "http://localhost:5173"), "/"),
		CORSAllowOrigin: get("CORS_ALLOW_ORIGIN", "*"),
		RedisAddr:       get("REDIS_ADDR", ""),
		KafkaBrokers:    splitCSV(get("KAFKA_BROKERS", "")),
		KafkaTopic:      get("KAFKA_TOPIC", "orders.settled"),
	}

	var err error
	if cfg.ProviderTimeout, err = time.ParseDuration(get("PROVIDER_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_TIMEOUT: %w", err)
	}
	if cfg.DBTimeout, err = time.ParseDuration(get("DB_TIMEOUT", "5s")); err != nil {
		return nil, fmt.Errorf("invalid DB_TIMEOUT: %w", err)
	}

	if cfg.DatabaseDSN == "" {
		return nil, &MissingError{Key: "DB_DSN_PRIMARY"}
	}
	if cfg.JWTSecret == "" {
		return nil, &MissingError{Key: "JWT_SECRET"}
	}
	switch cfg.PaymentProvider {
	case ProviderStripe:
		if cfg.StripeSecretKey == "" {
			return nil, &MissingError{Key: "STRIPE_SECRET_KEY"}
		}
	case ProviderMemory:
	default:
		return nil, fmt.Errorf("unknown PAYMENT_PROVIDER %q", cfg.PaymentProvider)
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
