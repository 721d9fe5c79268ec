// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/pkordes/goat-attendance/internal/domain"
)

// Config holds all configuration values for the attendance job and its server.
// Values are populated by Load from environment variables.
type Config struct {
	// DatabaseURL is the Postgres connection string. Taken from DATABASE_URL
	// when set, otherwise assembled from DB_HOST, DB_PORT, DB_NAME, DB_USER,
	// DB_PASSWORD and DB_SSLMODE.
	DatabaseURL string

	// WindowHours is the default length of the inspected window. Defaults to 2.
	WindowHours int

	// Schedule is the cron spec used by "serve". Defaults to "@every 2h".
	Schedule string

	// RunOnStart makes "serve" run once immediately. Defaults to false.
	RunOnStart bool

	// Location is the time zone used to render window bounds and evaluate the
	// schedule. Defaults to Asia/Kolkata.
	Location *time.Location

	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Empty (the default) disables CORS handling entirely.
	CORSOrigins []string
}

// LoadDotEnv loads variables from path into the process environment without
// overriding ones that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config.LoadDotEnv: %w", err)
	}
	return nil
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set and any
// values that cannot be parsed.
func Load() (Config, error) {
	cfg := Config{
		Schedule:    getEnv("SCHEDULE", "@every 2h"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(os.Getenv("CORS_ORIGINS")),
	}

	var missing, invalid []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		for _, key := range []string{"DB_HOST", "DB_NAME", "DB_USER", "DB_PASSWORD"} {
			if os.Getenv(key) == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) == 0 {
			cfg.DatabaseURL = buildDSN(
				os.Getenv("DB_HOST"),
				getEnv("DB_PORT", "5432"),
				os.Getenv("DB_NAME"),
				os.Getenv("DB_USER"),
				os.Getenv("DB_PASSWORD"),
				getEnv("DB_SSLMODE", "prefer"),
			)
		}
	}

	hours, err := strconv.Atoi(getEnv("WINDOW_HOURS", "2"))
	if err != nil || domain.ValidateWindowHours(hours) != nil {
		invalid = append(invalid, fmt.Sprintf("WINDOW_HOURS (integer between 1 and %d)", domain.MaxWindowHours))
	}
	cfg.WindowHours = hours

	runOnStart, err := strconv.ParseBool(getEnv("RUN_ON_START", "false"))
	if err != nil {
		invalid = append(invalid, "RUN_ON_START (boolean)")
	}
	cfg.RunOnStart = runOnStart

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Asia/Kolkata"))
	if err != nil {
		invalid = append(invalid, "TIMEZONE (IANA zone name)")
	}
	cfg.Location = loc

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		invalid = append(invalid, "LOG_LEVEL (debug, info, warn, error)")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// SlogLevel returns LogLevel as a slog.Level, falling back to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// buildDSN assembles a postgres:// URL. User and password are escaped so
// credentials containing reserved characters survive.
func buildDSN(host, port, name, user, password, sslmode string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + name,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
