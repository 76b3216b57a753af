package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the process configuration read from the environment
type Config struct {
	Port         string
	DBPath       string
	JWTSecret    string // empty disables bearer auth
	SettingsPath string // empty uses the default tracking settings
	LogLevel     string
	LogFormat    string
	RateLimit    int   // requests per minute per client IP, 0 disables
	MaxUploadMB  int64 // largest accepted track upload

	// AllowedOrigins are the browser origins admitted by CORS and websocket
	// upgrades; "*" admits all
	AllowedOrigins []string
}

// LoadDotEnv loads a .env file into the environment when one exists
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logrus.Debug("No .env file found, using system environment")
			return nil
		}
		return err
	}
	return nil
}

// Load reads the configuration from the environment
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", ":8080"),
		DBPath:       getEnv("DB_PATH", "./data/forensics.db"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		SettingsPath: os.Getenv("SETTINGS_PATH"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		RateLimit:    getEnvInt("RATE_LIMIT", 120),
		MaxUploadMB:  int64(getEnvInt("MAX_UPLOAD_MB", 64)),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
	}
}

// MaxUploadBytes returns MaxUploadMB in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.Warnf("Ignoring invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
