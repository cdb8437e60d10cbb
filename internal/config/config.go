package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Storage    StorageConfig
	MongoDB    MongoDBConfig
	Catalog    CatalogConfig
	Sheets     SheetsConfig
	Fumigation FumigationConfig
	Scheduler  SchedulerConfig
	WhatsApp   WhatsAppConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// LogConfig selects the zap level.
type LogConfig struct {
	Level string
}

// StorageConfig selects the ledger backend.
type StorageConfig struct {
	Driver string // sqlite | postgres | mongodb
	DSN    string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// CatalogConfig controls where grain costs come from and how long they are cached.
type CatalogConfig struct {
	Source   string // store | sheets
	CacheTTL time.Duration
}

// SheetsConfig contains configuration required to read the variety catalog sheet.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	Range           string
}

// FumigationConfig holds the recommendation thresholds.
type FumigationConfig struct {
	GasificationServiceType string
	IntervalDays            int
	LossThreshold           float64
	UricAcidThreshold       float64
}

// SchedulerConfig holds cron expressions for background jobs.
type SchedulerConfig struct {
	FumigationCron string
	DigestCron     string
	Timezone       string
}

// WhatsAppConfig contains credentials for the alert channel. Alerts are disabled
// when AccessToken is empty.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
	Recipients    []string
}

// Enabled reports whether alerts can be sent.
func (w WhatsAppConfig) Enabled() bool { return w.AccessToken != "" }

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	cacheTTL, err := time.ParseDuration(getenvWithDefault("CATALOG_CACHE_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("CATALOG_CACHE_TTL: %w", err)
	}
	intervalDays, err := strconv.Atoi(getenvWithDefault("FUMIGATION_INTERVAL_DAYS", "45"))
	if err != nil {
		return nil, fmt.Errorf("FUMIGATION_INTERVAL_DAYS: %w", err)
	}
	lossThreshold, err := strconv.ParseFloat(getenvWithDefault("FUMIGATION_LOSS_THRESHOLD", "5000"), 64)
	if err != nil {
		return nil, fmt.Errorf("FUMIGATION_LOSS_THRESHOLD: %w", err)
	}
	uricThreshold, err := strconv.ParseFloat(getenvWithDefault("FUMIGATION_URIC_THRESHOLD", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("FUMIGATION_URIC_THRESHOLD: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			Driver: getenvWithDefault("LEDGER_DRIVER", "sqlite"),
			DSN:    getenvWithDefault("SQL_DSN", "file:grainloss.db?_pragma=journal_mode(WAL)"),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "grainloss"),
		},
		Catalog: CatalogConfig{
			Source:   getenvWithDefault("CATALOG_SOURCE", "store"),
			CacheTTL: cacheTTL,
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_CATALOG_ID"),
			Range:           getenvWithDefault("CATALOG_SHEET_RANGE", "Variedades!A:D"),
		},
		Fumigation: FumigationConfig{
			GasificationServiceType: getenvWithDefault("GASIFICATION_SERVICE_TYPE", "gasificacion_encarpado"),
			IntervalDays:            intervalDays,
			LossThreshold:           lossThreshold,
			UricAcidThreshold:       uricThreshold,
		},
		Scheduler: SchedulerConfig{
			FumigationCron: getenvWithDefault("FUMIGATION_CRON_SCHEDULE", "0 6 * * *"),
			DigestCron:     getenvWithDefault("DIGEST_CRON_SCHEDULE", "0 20 * * 5"),
			Timezone:       getenvWithDefault("TIMEZONE", "America/Guayaquil"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			Recipients:    splitList(os.Getenv("ALERT_RECIPIENTS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Storage.Driver {
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return errors.New("SQL_DSN must be provided")
		}
	case "mongodb":
		if c.MongoDB.URI == "" || c.MongoDB.DBName == "" {
			return errors.New("MONGODB_URI and MONGODB_DB_NAME must be provided")
		}
	default:
		return fmt.Errorf("LEDGER_DRIVER %q is not supported", c.Storage.Driver)
	}

	switch c.Catalog.Source {
	case "store":
	case "sheets":
		if c.Sheets.CredentialsPath == "" {
			return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided")
		}
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("GOOGLE_SHEET_CATALOG_ID must be provided")
		}
	default:
		return fmt.Errorf("CATALOG_SOURCE %q is not supported", c.Catalog.Source)
	}

	if c.Fumigation.GasificationServiceType == "" {
		return errors.New("GASIFICATION_SERVICE_TYPE must not be empty")
	}
	if c.Fumigation.IntervalDays <= 0 {
		return errors.New("FUMIGATION_INTERVAL_DAYS must be positive")
	}

	if c.Scheduler.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}

	if c.WhatsApp.Enabled() {
		if c.WhatsApp.PhoneNumberID == "" {
			return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided")
		}
		if len(c.WhatsApp.Recipients) == 0 {
			return errors.New("ALERT_RECIPIENTS must be provided when WhatsApp alerts are enabled")
		}
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
