package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"remanejo/internal/realloc"
)

type Config struct {
	// HTTP Server
	Port string

	// Run history; empty disables it
	SQLiteDBPath string

	// AMQP; empty URL disables events and the worker
	AMQPURL         string
	AMQPExchange    string
	AMQPQueue       string
	AMQPEventsQueue string

	// Google Sheets
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Reallocation rules
	RulesFile          string
	ProhibitedFund     string
	ProhibitedNatures  string
	ReservePct         string
	MaxPerOperationPct string
	PreferSingleDonor  string

	// Result cache
	CacheSize int
	CacheTTL  time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnvAllowEmpty("SQLITE_DB_PATH", "./data/remanejo.db"),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "remanejo"),
		AMQPQueue:       getEnv("AMQP_QUEUE", "runs"),
		AMQPEventsQueue: getEnv("AMQP_EVENTS_QUEUE", "run_events"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", ""),

		RulesFile:          getEnv("RULES_FILE", ""),
		ProhibitedFund:     getEnv("PROHIBITED_FUND", ""),
		ProhibitedNatures:  getEnv("PROHIBITED_NATURES", ""),
		ReservePct:         getEnv("RESERVE_PCT", ""),
		MaxPerOperationPct: getEnv("MAX_PER_OPERATION_PCT", ""),
		PreferSingleDonor:  getEnv("PREFER_SINGLE_DONOR", ""),

		CacheSize: getEnvInt("CACHE_SIZE", 64),
		CacheTTL:  getEnvDuration("CACHE_TTL", time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
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

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if _, err := c.Rules(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// HistoryEnabled reports whether runs are recorded in SQLite.
func (c *Config) HistoryEnabled() bool {
	return c.SQLiteDBPath != ""
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Rules builds the reallocation rules: defaults, then the rules file, then
// the environment.
func (c *Config) Rules() (realloc.Config, error) {
	rules := realloc.DefaultConfig()
	if c.RulesFile != "" {
		file, err := LoadRulesFile(c.RulesFile)
		if err != nil {
			return rules, err
		}
		file.Apply(&rules)
	}

	var problems []string
	if c.ProhibitedFund != "" {
		fund, err := realloc.ParseProhibitedFund(c.ProhibitedFund)
		if err != nil {
			problems = append(problems, "PROHIBITED_FUND: "+err.Error())
		}
		rules.ProhibitedFund = fund
	}
	if c.ProhibitedNatures != "" {
		rules.ProhibitedNatures = realloc.ParseCodeList(c.ProhibitedNatures)
	}
	if c.ReservePct != "" {
		if d, err := decimal.NewFromString(c.ReservePct); err != nil {
			problems = append(problems, fmt.Sprintf("RESERVE_PCT '%s' is not a number", c.ReservePct))
		} else {
			rules.ReservePct = d
		}
	}
	if c.MaxPerOperationPct != "" {
		if d, err := decimal.NewFromString(c.MaxPerOperationPct); err != nil {
			problems = append(problems, fmt.Sprintf("MAX_PER_OPERATION_PCT '%s' is not a number", c.MaxPerOperationPct))
		} else {
			rules.MaxPerOperationPct = d
		}
	}
	if c.PreferSingleDonor != "" {
		if b, err := strconv.ParseBool(c.PreferSingleDonor); err != nil {
			problems = append(problems, fmt.Sprintf("PREFER_SINGLE_DONOR '%s' is not a boolean", c.PreferSingleDonor))
		} else {
			rules.PreferSingleDonor = b
		}
	}
	if len(problems) > 0 {
		return rules, fmt.Errorf("invalid reallocation rules:\n- %s", strings.Join(problems, "\n- "))
	}
	if err := rules.Validate(); err != nil {
		return rules, err
	}
	return rules, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty returns the value when the variable is set, even if empty.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
