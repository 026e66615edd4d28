// Package config loads application configuration from environment variables.
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the core runtime configuration. Optional subsystems (AI,
// broker, mail, cache, rate limit) have their own loaders so that each can
// be disabled independently.
type Config struct {
	Env      string // application environment (dev, test, prod)
	Port     string // HTTP port to listen on
	LogLevel string // debug | info | warn | error
	LogFile  string // optional file that receives a copy of the log stream

	DBUser string
	DBPass string // may be empty
	DBHost string
	DBPort string
	DBName string

	MigrateOnStart bool // run goose migrations before serving

	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int

	RequestTimeout time.Duration // budget for DB work inside a handler
}

// Load reads configuration values from the environment. Missing required
// variables terminate the process with a fatal log message.
func Load() Config {
	// .env is optional; a missing file is not an error worth reporting.
	_ = godotenv.Load()

	return Config{
		Env:      getenv("APP_ENV", "dev"),
		Port:     must("APP_PORT"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: getenv("DB_PORT", "3306"),
		DBName: must("DB_NAME"),

		MigrateOnStart: envBool("DB_MIGRATE_ON_START", true),

		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     envInt("BCRYPT_COST", 10),

		RequestTimeout: envDur("REQUEST_TIMEOUT", 5*time.Second),
	}
}

// must retrieves the value of a required environment variable.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must but converts the value to an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
