// Package config loads server settings from the environment, with a .env
// file for local development.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                string
	AllowedOrigins      []string
	LogLevel            string
	MaxRooms            int
	MaxConnectionsPerIP int
	Debug               bool
}

// Load reads the environment, after best-effort loading a local .env file.
// Missing keys fall back to development defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:                getString("PORT", "8080"),
		AllowedOrigins:      getList("ALLOWED_ORIGINS", []string{"localhost:*", "127.0.0.1:*"}),
		LogLevel:            getString("LOG_LEVEL", "info"),
		MaxRooms:            getInt("MAX_ROOMS", 100),
		MaxConnectionsPerIP: getInt("MAX_CONNECTIONS_PER_IP", 20),
		Debug:               getBool("DEBUG", false),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
