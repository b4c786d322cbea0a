package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server Configuration
	Server ServerConfig

	// Database Configuration
	Database DatabaseConfig

	// Session Configuration
	Session SessionConfig

	// Authorization Configuration
	Authz AuthzConfig

	// Logging Configuration
	Logging LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	ListenAddr  string
	JWTSecret   string   // empty means generate an ephemeral secret at startup
	CORSOrigins []string // allowed browser origins for the dashboard front end
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// SessionConfig holds provider session configuration
type SessionConfig struct {
	TTL             time.Duration
	CleanupSchedule string // cron expression for the expired-session purge
}

// AuthzConfig holds role/permission configuration
type AuthzConfig struct {
	PermissionsFile string // optional YAML override for the role table
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	// Database URL - default to a local sqlite file, allow override for dev
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "employd.sqlite"
	}

	sessionTTL := 24 * time.Hour
	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			sessionTTL = parsed
		}
	}

	cleanupSchedule := os.Getenv("SESSION_CLEANUP_SCHEDULE")
	if cleanupSchedule == "" {
		cleanupSchedule = "0 * * * *" // hourly
	}

	var corsOrigins []string
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				corsOrigins = append(corsOrigins, origin)
			}
		}
	}

	// Logging configuration - defaults suitable for production
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}

	return &Config{
		Server: ServerConfig{
			ListenAddr:  listenAddr,
			JWTSecret:   os.Getenv("JWT_SECRET"),
			CORSOrigins: corsOrigins,
		},
		Database: DatabaseConfig{
			URL: dbURL,
		},
		Session: SessionConfig{
			TTL:             sessionTTL,
			CleanupSchedule: cleanupSchedule,
		},
		Authz: AuthzConfig{
			PermissionsFile: os.Getenv("PERMISSIONS_FILE"),
		},
		Logging: LoggingConfig{
			Level:  logLevel,
			Format: logFormat,
		},
	}, nil
}
