package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	Environment string

	FirebaseProject            string
	FirebaseServiceAccountJSON string
	FirebaseServiceAccountPath string

	// StoreBackend selects the document store: "firestore" or "memory".
	StoreBackend string
	// ListingBackend selects where crop stock lives: "store" (same as
	// StoreBackend), "postgres" or "http".
	ListingBackend string
	DatabaseURL    string
	ListingAPIURL  string
	ListingAPIRPS  float64

	EmailAPIURL       string
	HTTPClientTimeout time.Duration

	AuthMode  string
	JWTSecret string

	SagaLease time.Duration
	// SagaSweepInterval is how often deferred accepts are retried.
	SagaSweepInterval time.Duration

	// AllowedOrigins restricts CORS and websocket handshakes; empty allows all.
	AllowedOrigins []string
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		FirebaseProject:            getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", "./firebase-service-account.json"),

		StoreBackend:   getEnv("STORE_BACKEND", "firestore"),
		ListingBackend: getEnv("LISTING_BACKEND", "store"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ListingAPIURL:  getEnv("LISTING_API_URL", ""),
		ListingAPIRPS:  getEnvAsFloat("LISTING_API_RPS", 20),

		EmailAPIURL:       getEnv("EMAIL_API_URL", ""),
		HTTPClientTimeout: getEnvAsDuration("HTTP_CLIENT_TIMEOUT", 10*time.Second),

		AuthMode:  getEnv("AUTH_MODE", "firebase"),
		JWTSecret: getEnv("JWT_SECRET", "your-secret-key"),

		SagaLease:         getEnvAsDuration("SAGA_LEASE", 30*time.Second),
		SagaSweepInterval: getEnvAsDuration("SAGA_SWEEP_INTERVAL", time.Minute),

		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("15s") or plain seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs := getEnvAsInt64(key, -1); secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
