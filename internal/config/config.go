package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port             string
	DBConn           string
	LogLevel         string
	CORSOrigins      []string
	BinListURL       string
	BinLookupTimeout time.Duration
	StoreTimeout     time.Duration
	DedupSchedule    string
	DedupTimeout     time.Duration

	// Sweep report mail, disabled unless SMTPHost and ReportEmail are set
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
	ReportEmail  string
}

// NewConfig loads configuration from environment variables.
// Values from a .env file in the working directory are used when present.
func NewConfig() (*Config, error) {
	// a missing .env is fine; real environment variables take precedence
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8000"),
		DBConn:        getEnv("DB_CONN", "host=localhost port=5432 user=cards password=cards dbname=cards sslmode=disable"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CORSOrigins:   splitOrigins(getEnv("CORS_ORIGINS", "*")),
		BinListURL:    strings.TrimRight(getEnv("BINLIST_URL", "https://lookup.binlist.net"), "/"),
		DedupSchedule: getEnv("DEDUP_SCHEDULE", ""),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SenderEmail:   getEnv("SENDER_EMAIL", "cards@localhost"),
		ReportEmail:   getEnv("REPORT_EMAIL", ""),
	}

	var err error
	if cfg.BinLookupTimeout, err = getDuration("BIN_LOOKUP_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.StoreTimeout, err = getDuration("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.DedupTimeout, err = getDuration("DEDUP_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.BinListURL == "" {
		return nil, fmt.Errorf("BINLIST_URL is required")
	}

	return cfg, nil
}

// ReportsEnabled reports whether sweep report mail is configured
func (c *Config) ReportsEnabled() bool {
	return c.SMTPHost != "" && c.ReportEmail != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return d, nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
