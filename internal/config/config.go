// Package config provides environment configuration helpers for
// callkit commands.
package config

import (
	"fmt"
	"os"
)

// Env returns the value of an environment variable, falling back to
// the provided default when unset.
func Env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Required returns the value of an environment variable, exiting with
// a usage hint when unset.
func Required(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "Error: %s environment variable is required\n", key)
		fmt.Fprintf(os.Stderr, "Usage: %s=... go run ./cmd/...\n", key)
		os.Exit(1)
	}
	return v
}

// ElevenLabsAPIKey returns the transport API key, exiting when unset.
func ElevenLabsAPIKey() string {
	return Required("ELEVENLABS_API_KEY")
}

// SupabaseURL returns the Supabase project URL, or "" when not
// configured.
func SupabaseURL() string {
	return os.Getenv("SUPABASE_URL")
}

// SupabaseKey returns the Supabase anon key.
func SupabaseKey() string {
	return os.Getenv("SUPABASE_ANON_KEY")
}

// RedisAddr returns the Redis address, or "" when not configured.
func RedisAddr() string {
	return os.Getenv("REDIS_ADDR")
}

// CatalogURL returns the REST character catalog base URL, or "".
func CatalogURL() string {
	return os.Getenv("CATALOG_URL")
}

// CatalogAPIKey returns the REST catalog bearer token.
func CatalogAPIKey() string {
	return os.Getenv("CATALOG_API_KEY")
}
