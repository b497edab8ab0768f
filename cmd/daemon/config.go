package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/carloswaibl/algotrader/internal/config"
)

// loadConfig reads .env, then the YAML named by DAEMON_CONFIG_PATH (or the
// usual search path when unset).
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.Load(getEnvOrDefault("DAEMON_CONFIG_PATH", ""))
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
