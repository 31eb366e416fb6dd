// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	settings, err := cfg.Matching.Settings()
//	dbPath := cfg.Storage.DatabasePath
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/eshaffer321/ledgermatch/internal/domain/matcher"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Matching      MatchingConfig      `yaml:"matching"`
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// MatchingConfig holds default engine settings. Requests may override them.
type MatchingConfig struct {
	DateToleranceDays   int     `yaml:"date_tolerance_days"`
	AmountTolerance     float64 `yaml:"amount_tolerance"`
	ReferenceMatching   bool    `yaml:"enable_reference_matching"`
	NameMatching        bool    `yaml:"enable_name_matching"`
	PartialPayments     bool    `yaml:"enable_partial_payment_matching"`
	BulkPayments        bool    `yaml:"enable_bulk_payment_matching"`
	AutoMatchBankCharge bool    `yaml:"auto_match_bank_charges"`
	AutoApprovalLevel   string  `yaml:"auto_approval_level"`

	MaxGroupSize         int     `yaml:"max_group_size"`
	MaxGroupSearch       int     `yaml:"max_group_search"`
	BankChargeThreshold  float64 `yaml:"bank_charge_threshold"`
	ExactAmountGraceDays int     `yaml:"exact_amount_grace_days"`
	AutoThreshold        float64 `yaml:"auto_threshold"`
	SuggestThreshold     float64 `yaml:"suggest_threshold"`
	MinConfidence        float64 `yaml:"min_confidence"`
	NameSimilarity       float64 `yaml:"name_similarity"`
	MaxTransactions      int     `yaml:"max_transactions"`
	MaxLedgerEntries     int     `yaml:"max_ledger_entries"`
	Workers              int     `yaml:"workers"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RunTimeout     time.Duration `yaml:"run_timeout"` // Upper bound for one reconciliation
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Matching: DefaultMatching(),
		Storage: StorageConfig{
			DatabasePath: "ledgermatch.db",
		},
		Server: ServerConfig{
			Port:           8085,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RunTimeout:     60 * time.Second,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// DefaultMatching mirrors matcher.DefaultSettings.
func DefaultMatching() MatchingConfig {
	return FromSettings(matcher.DefaultSettings())
}

// FromSettings converts engine settings into their config form.
func FromSettings(s matcher.Settings) MatchingConfig {
	return MatchingConfig{
		DateToleranceDays:    s.DateToleranceDays,
		AmountTolerance:      s.AmountTolerance.InexactFloat64(),
		ReferenceMatching:    s.EnableReferenceMatching,
		NameMatching:         s.EnableNameMatching,
		PartialPayments:      s.EnablePartialPaymentMatching,
		BulkPayments:         s.EnableBulkPaymentMatching,
		AutoMatchBankCharge:  s.AutoMatchBankCharges,
		AutoApprovalLevel:    string(s.AutoApprovalLevel),
		MaxGroupSize:         s.MaxGroupSize,
		MaxGroupSearch:       s.MaxGroupSearch,
		BankChargeThreshold:  s.BankChargeThreshold.InexactFloat64(),
		ExactAmountGraceDays: s.ExactAmountGraceDays,
		AutoThreshold:        s.AutoThreshold,
		SuggestThreshold:     s.SuggestThreshold,
		MinConfidence:        s.MinConfidence,
		NameSimilarity:       s.NameSimilarity,
		MaxTransactions:      s.MaxTransactions,
		MaxLedgerEntries:     s.MaxLedgerEntries,
		Workers:              s.Workers,
	}
}

// Settings builds validated engine settings. Invalid values come back as a
// *matcher.ConfigurationError.
func (m MatchingConfig) Settings() (matcher.Settings, error) {
	level, err := matcher.ParseApprovalLevel(m.AutoApprovalLevel)
	if err != nil {
		return matcher.Settings{}, err
	}

	s := matcher.Settings{
		DateToleranceDays:            m.DateToleranceDays,
		AmountTolerance:              decimal.NewFromFloat(m.AmountTolerance).Round(2),
		EnableReferenceMatching:      m.ReferenceMatching,
		EnableNameMatching:           m.NameMatching,
		EnablePartialPaymentMatching: m.PartialPayments,
		EnableBulkPaymentMatching:    m.BulkPayments,
		AutoMatchBankCharges:         m.AutoMatchBankCharge,
		AutoApprovalLevel:            level,
		MaxGroupSize:                 m.MaxGroupSize,
		MaxGroupSearch:               m.MaxGroupSearch,
		BankChargeThreshold:          decimal.NewFromFloat(m.BankChargeThreshold).Round(2),
		ExactAmountGraceDays:         m.ExactAmountGraceDays,
		AutoThreshold:                m.AutoThreshold,
		SuggestThreshold:             m.SuggestThreshold,
		MinConfidence:                m.MinConfidence,
		NameSimilarity:               m.NameSimilarity,
		MaxTransactions:              m.MaxTransactions,
		MaxLedgerEntries:             m.MaxLedgerEntries,
		Workers:                      m.Workers,
	}
	if err := s.Validate(); err != nil {
		return matcher.Settings{}, err
	}
	return s, nil
}

// Load reads and parses the config file. Keys missing from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${LEDGERMATCH_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := Default()

	cfg.Storage.DatabasePath = getEnv("LEDGERMATCH_DB_PATH", cfg.Storage.DatabasePath)
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Server.RunTimeout = getEnvDuration("RUN_TIMEOUT", cfg.Server.RunTimeout)
	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", cfg.Observability.Logging.Format)

	m := &cfg.Matching
	m.DateToleranceDays = getEnvInt("MATCH_DATE_TOLERANCE_DAYS", m.DateToleranceDays)
	m.AmountTolerance = getEnvFloat("MATCH_AMOUNT_TOLERANCE", m.AmountTolerance)
	m.AutoApprovalLevel = getEnv("MATCH_AUTO_APPROVAL_LEVEL", m.AutoApprovalLevel)
	m.MaxGroupSize = getEnvInt("MATCH_MAX_GROUP_SIZE", m.MaxGroupSize)
	m.MaxTransactions = getEnvInt("MATCH_MAX_TRANSACTIONS", m.MaxTransactions)
	m.MaxLedgerEntries = getEnvInt("MATCH_MAX_LEDGER_ENTRIES", m.MaxLedgerEntries)
	m.Workers = getEnvInt("MATCH_WORKERS", m.Workers)

	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnv_WithPath("config.yaml")
}

// LoadOrEnv_WithPath tries to load from specified path, falls back to environment variables
func LoadOrEnv_WithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		var result float64
		if _, err := fmt.Sscanf(val, "%g", &result); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
