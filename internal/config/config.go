// Package config handles loading runtime configuration for the tournament server.
// Configuration values (the database URL, the JWT signing secret, the HTTP port)
// are read from environment variables rather than being hardcoded, so the same
// binary runs in dev, staging, and production with only the environment changing.
package config

import (
	"os"

	// godotenv reads a .env file and loads its key=value pairs into the process
	// environment. Convenient in development; in production real env vars are
	// set by the deployment platform and no .env file exists.
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values for the application.
type Config struct {
	Port        string // TCP port the HTTP server listens on (e.g. "8080")
	DatabaseURL string // PostgreSQL connection string
	JWTSecret   string // HMAC secret used to sign and verify login tokens
	Env         string // "development", "staging", or "production"
}

// Load reads configuration from environment variables and returns a populated
// Config. A missing .env file is fine — real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	return &Config{
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"), // Required — the server fails to start without it
		JWTSecret:   os.Getenv("JWT_SECRET"),   // Required — login tokens cannot be issued or verified without it
		Env:         env,
	}
}
