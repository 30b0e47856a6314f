// Package config handles runtime configuration for the file-sharing service,
// including development defaults and environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds runtime settings for the service.
//
// Fields:
//   - ServicePort: port for the public HTTP endpoint.
//   - StoragePath: base directory holding users.csv, uploads/ and zips/.
//   - UsersCSVPath: path to the credential flat file.
//   - Secret: HMAC secret for signing tokens (HS256). Do not use the
//     default in production.
//   - TokenTTL: lifetime of issued tokens.
//   - AllowedOrigins: CORS allow-list; "*" matches any origin.
type Config struct {
	ServicePort    string
	StoragePath    string
	UsersCSVPath   string
	Secret         string
	TokenTTL       time.Duration
	AllowedOrigins []string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret is insecure and must be overridden via APP_SECRET.
func (c *Config) LoadDefaults() {
	c.ServicePort = "8080"
	c.StoragePath = ".data"
	c.UsersCSVPath = ""
	c.Secret = "dev-secret-change-me"
	c.TokenTTL = 24 * time.Hour
	c.AllowedOrigins = []string{"*"}
}

// LoadConfig builds a Config by applying defaults and then overlaying
// environment variables. Derived paths (users.csv) are resolved last so an
// explicit USERS_CSV_PATH wins over the storage-relative default.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	if cfg.UsersCSVPath == "" {
		cfg.UsersCSVPath = filepath.Join(cfg.StoragePath, "users.csv")
	}
	return cfg
}

// UploadsDir returns the uploads directory under the base storage path.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.StoragePath, "uploads")
}

// ZipsDir returns the directory zip exports are written to.
func (c *Config) ZipsDir() string {
	return filepath.Join(c.StoragePath, "zips")
}

func parseEnv(c *Config) {
	c.ServicePort = getEnv("SERVICE_PORT", c.ServicePort)
	c.StoragePath = getEnv("STORAGE_PATH", c.StoragePath)
	c.UsersCSVPath = getEnv("USERS_CSV_PATH", c.UsersCSVPath)
	c.Secret = getEnv("APP_SECRET", c.Secret)
	c.TokenTTL = time.Duration(getEnvAsInt("TOKEN_TTL_SECONDS", int(c.TokenTTL/time.Second))) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
