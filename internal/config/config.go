package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mileage/internal/log"
)

const (
	DefaultUsername = "HM"
	DefaultPIN      = "1985"
)

// Submit backends
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
)

var validBackends = []string{BackendNone, BackendMemory, BackendSQLite, BackendSheets}

type Config struct {
	// HTTP Server
	Port         string
	SecureCookie bool

	// Rates and business document
	SettingsFile string

	// Access gate
	AccessUsername string
	AccessPIN      string

	// Sessions
	SessionTTL  time.Duration
	MaxSessions int
	MaxMiles    decimal.Decimal

	LogLevel string

	// Finance hand-off
	SubmitBackend string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		SecureCookie: getEnvBool("SECURE_COOKIE", false),
		SettingsFile: getEnv("SETTINGS_FILE", "config.json"),

		AccessUsername: getEnv("ACCESS_USERNAME", DefaultUsername),
		AccessPIN:      getEnv("ACCESS_PIN", DefaultPIN),

		SessionTTL:  getEnvDuration("SESSION_TTL", 12*time.Hour),
		MaxSessions: getEnvInt("MAX_SESSIONS", 1000),
		MaxMiles:    getEnvDecimal("MAX_MILES", decimal.NewFromInt(500)),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		SubmitBackend: strings.ToLower(getEnv("SUBMIT_BACKEND", BackendNone)),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/claims.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "mileage"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "claims_submitted"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Claims"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),
	}
}

// UsesDefaultCredentials reports whether the access gate still has the
// built-in username and PIN.
func (c *Config) UsesDefaultCredentials() bool {
	return c.AccessUsername == DefaultUsername && c.AccessPIN == DefaultPIN
}

// HasSheetsCredentials reports whether a service account is configured.
func (c *Config) HasSheetsCredentials() bool {
	return c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.SettingsFile) == "" {
		errors = append(errors, "settings file path cannot be empty")
	}

	if strings.TrimSpace(c.AccessUsername) == "" {
		errors = append(errors, "access username cannot be empty")
	}
	if c.AccessPIN == "" {
		errors = append(errors, "access PIN cannot be empty")
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.MaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("invalid max sessions %d: must be at least 1", c.MaxSessions))
	}
	if !c.MaxMiles.IsPositive() {
		errors = append(errors, fmt.Sprintf("invalid max miles %s: must be greater than 0", c.MaxMiles))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if !slices.Contains(validBackends, c.SubmitBackend) {
		errors = append(errors, fmt.Sprintf("invalid submit backend '%s': must be one of %v", c.SubmitBackend, validBackends))
	}

	if c.SubmitBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SubmitBackend == BackendSheets {
		errors = append(errors, c.sheetsErrors()...)
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks the settings the claims worker needs on top of
// Validate: an archive, a broker and a spreadsheet.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path is required by the worker")
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required by the worker")
	}
	errors = append(errors, c.sheetsErrors()...)
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) sheetsErrors() []string {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using sheets")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when using sheets")
	}
	if !c.HasSheetsCredentials() {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return errors
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
