// Package config provides environment-based configuration.
package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Firebase FirebaseConfig
	Store    StoreConfig
	JWT      JWTConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsPath string
	StorageBucket   string
	// Emulator support for integration testing
	UseEmulator           bool
	EmulatorAuthHost      string
	EmulatorFirestoreHost string
}

type StoreConfig struct {
	// Backend selects the persistence backend: "firestore" (default) or
	// "memory" (local development, nothing survives a restart).
	Backend string
}

type JWTConfig struct {
	SigningKey string
	Issuer     string
	TTLMinutes int
}

// Load returns application configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Firebase: FirebaseConfig{
			ProjectID:             getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsPath:       getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			StorageBucket:         getEnv("FIREBASE_STORAGE_BUCKET", ""),
			UseEmulator:           getEnvBool("USE_FIREBASE_EMULATOR", false),
			EmulatorAuthHost:      getEnv("FIREBASE_AUTH_EMULATOR_HOST", "localhost:9099"),
			EmulatorFirestoreHost: getEnv("FIRESTORE_EMULATOR_HOST", "localhost:8081"),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", "firestore"),
		},
		JWT: JWTConfig{
			SigningKey: getEnv("JWT_SIGNING_KEY", ""),
			Issuer:     getEnv("JWT_ISSUER", "servicedesk"),
			TTLMinutes: getEnvInt("JWT_TTL_MINUTES", 60),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(value)
		if err == nil {
			return boolVal
		}
	}
	return defaultValue
}
