package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Session state
	SessionTTL      time.Duration `yaml:"session_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// Anchoring
	IDAttribute  string `yaml:"id_attribute"`
	ForeignClass string `yaml:"foreign_class"`
	QuoteContext int    `yaml:"quote_context"`

	// Annotation storage: "badger" or "pathstore"
	AnnotationStore string `yaml:"annotation_store"`
	BadgerPath      string `yaml:"badger_path"`
	BadgerInMemory  bool   `yaml:"badger_in_memory"`

	// Pathstore connection
	PathstoreURL    string `yaml:"pathstore_url"`
	PathstoreAPIKey string `yaml:"pathstore_api_key"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                 "8090",
		LogLevel:             "info",
		MaxUploadBytes:       52428800, // 50MB
		SessionTTL:           1 * time.Hour,
		CleanupInterval:      5 * time.Minute,
		IDAttribute:          "eId",
		ForeignClass:         "ig",
		QuoteContext:         32,
		AnnotationStore:      "badger",
		BadgerPath:           "data/annotations",
		PathstoreURL:         "http://localhost:8080",
		PDFFallbackPdftotext: true,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// DOCANCHOR_CONFIG (if set), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("DOCANCHOR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.APIKey = envOr("DOCANCHOR_API_KEY", cfg.APIKey)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.SessionTTL = envDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.CleanupInterval = envDuration("CLEANUP_INTERVAL", cfg.CleanupInterval)
	cfg.IDAttribute = envOr("ID_ATTRIBUTE", cfg.IDAttribute)
	cfg.ForeignClass = envOr("FOREIGN_CLASS", cfg.ForeignClass)
	cfg.QuoteContext = envInt("QUOTE_CONTEXT", cfg.QuoteContext)
	cfg.AnnotationStore = envOr("ANNOTATION_STORE", cfg.AnnotationStore)
	cfg.BadgerPath = envOr("BADGER_PATH", cfg.BadgerPath)
	cfg.BadgerInMemory = envBool("BADGER_IN_MEMORY", cfg.BadgerInMemory)
	cfg.PathstoreURL = envOr("PATHSTORE_URL", cfg.PathstoreURL)
	cfg.PathstoreAPIKey = envOr("PATHSTORE_API_KEY", cfg.PathstoreAPIKey)
	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	def := Defaults()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.QuoteContext < 0 {
		cfg.QuoteContext = def.QuoteContext
	}
	if cfg.IDAttribute == "" {
		cfg.IDAttribute = def.IDAttribute
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCANCHOR_API_KEY is required")
	}
	switch c.AnnotationStore {
	case "badger":
		if !c.BadgerInMemory && c.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required unless BADGER_IN_MEMORY is set")
		}
	case "pathstore":
		if c.PathstoreURL == "" {
			return fmt.Errorf("PATHSTORE_URL is required for the pathstore annotation store")
		}
		if c.PathstoreAPIKey == "" {
			return fmt.Errorf("PATHSTORE_API_KEY is required for the pathstore annotation store")
		}
	default:
		return fmt.Errorf("unknown ANNOTATION_STORE %q (want badger or pathstore)", c.AnnotationStore)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
