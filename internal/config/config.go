// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gekyxme/relnodes/internal/validate"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// JWT Authentication. The previous secret is set only during a secret
	// rotation window so tokens signed with the old key keep validating.
	JWTSecret         string `koanf:"jwt_secret"`
	JWTSecretPrevious string `koanf:"jwt_secret_previous"`

	// Redis (rate limiting, progress pub/sub)
	RedisURL string `koanf:"redis_url"`

	// Geocoding
	GeocodeEndpoint   string `koanf:"geocode_endpoint"`
	GeocodeIntervalMS int    `koanf:"geocode_interval_ms"` // Minimum spacing between external lookups
	GeocodeBatchSize  int    `koanf:"geocode_batch_size"`

	// CSV uploads
	MaxUploadSizeMB int `koanf:"max_upload_size_mb"` // Default: 5MB

	// S3-compatible archive storage for uploaded CSVs
	ArchiveBucketName      string `koanf:"archive_bucket_name"`
	ArchiveAccessKeyID     string `koanf:"archive_access_key_id"`
	ArchiveSecretAccessKey string `koanf:"archive_secret_access_key"`
	ArchiveEndpoint        string `koanf:"archive_endpoint"`
	ArchiveRegion          string `koanf:"archive_region"`

	// OpenTelemetry
	OTLPEndpoint string `koanf:"otlp_endpoint"`

	// CORS: comma-separated list of allowed browser origins. Empty disables
	// cross-origin access entirely.
	AllowedOrigins string `koanf:"allowed_origins"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL            = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret              = errors.New("JWT_SECRET is required")
	ErrMissingArchiveBucketName      = errors.New("ARCHIVE_BUCKET_NAME is required")
	ErrMissingArchiveAccessKeyID     = errors.New("ARCHIVE_ACCESS_KEY_ID is required")
	ErrMissingArchiveSecretAccessKey = errors.New("ARCHIVE_SECRET_ACCESS_KEY is required")
	ErrMissingArchiveEndpoint        = errors.New("ARCHIVE_ENDPOINT is required")
	ErrInvalidPort                   = errors.New("PORT must be a valid integer")
	ErrInvalidGeocodeBatchSize       = errors.New("GEOCODE_BATCH_SIZE must be between 1 and 50")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultGeocodeEndpoint   = "https://nominatim.openstreetmap.org/search"
	DefaultGeocodeIntervalMS = 1100
	DefaultGeocodeBatchSize  = 50
	DefaultMaxUploadSizeMB   = 5
	DefaultArchiveRegion     = "auto"
)

// MaxGeocodeBatchSize caps how many pending rows one batch call may examine.
const MaxGeocodeBatchSize = 50

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Parse port from env, collecting error if invalid
	// Try RELNODES_PORT first, then PORT for backward compatibility
	port, portErr := getEnvIntOrDefaultMulti([]string{"RELNODES_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	geocodeInterval, intervalErr := getEnvIntOrDefault("GEOCODE_INTERVAL_MS", k.Int("geocode_interval_ms"), DefaultGeocodeIntervalMS)
	if intervalErr != nil {
		loadErrs = append(loadErrs, intervalErr)
	}

	geocodeBatchSize, batchSizeErr := getEnvIntOrDefault("GEOCODE_BATCH_SIZE", k.Int("geocode_batch_size"), DefaultGeocodeBatchSize)
	if batchSizeErr != nil {
		loadErrs = append(loadErrs, batchSizeErr)
	}

	maxUploadSize, uploadSizeErr := getEnvIntOrDefault("MAX_UPLOAD_SIZE_MB", k.Int("max_upload_size_mb"), DefaultMaxUploadSizeMB)
	if uploadSizeErr != nil {
		loadErrs = append(loadErrs, uploadSizeErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefaultMulti([]string{"RELNODES_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		JWTSecret:              getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTSecretPrevious:      getEnvOrKoanf("JWT_SECRET_PREVIOUS", k, "jwt_secret_previous"),
		RedisURL:               getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		GeocodeEndpoint:        getEnvOrDefault("GEOCODE_ENDPOINT", k.String("geocode_endpoint"), DefaultGeocodeEndpoint),
		GeocodeIntervalMS:      geocodeInterval,
		GeocodeBatchSize:       geocodeBatchSize,
		MaxUploadSizeMB:        maxUploadSize,
		ArchiveBucketName:      getEnvOrKoanf("ARCHIVE_BUCKET_NAME", k, "archive_bucket_name"),
		ArchiveAccessKeyID:     getEnvOrKoanf("ARCHIVE_ACCESS_KEY_ID", k, "archive_access_key_id"),
		ArchiveSecretAccessKey: getEnvOrKoanf("ARCHIVE_SECRET_ACCESS_KEY", k, "archive_secret_access_key"),
		ArchiveEndpoint:        getEnvOrKoanf("ARCHIVE_ENDPOINT", k, "archive_endpoint"),
		ArchiveRegion:          getEnvOrDefault("ARCHIVE_REGION", k.String("archive_region"), DefaultArchiveRegion),
		OTLPEndpoint:           getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
		AllowedOrigins:         getEnvOrKoanf("ALLOWED_ORIGINS", k, "allowed_origins"),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
// Note: A value of 0 from a YAML file falls back to the default; 0 is not supported in YAML files.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.GeocodeBatchSize < 1 || c.GeocodeBatchSize > MaxGeocodeBatchSize {
		errs = append(errs, ErrInvalidGeocodeBatchSize)
	}
	if c.GeocodeEndpoint != "" {
		if _, err := validate.EndpointURL(c.GeocodeEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("GEOCODE_ENDPOINT: %w", err))
		}
	}

	// Archive storage is optional. Only validate fields if any archive value is set.
	if c.ArchiveBucketName != "" || c.ArchiveAccessKeyID != "" || c.ArchiveSecretAccessKey != "" || c.ArchiveEndpoint != "" {
		if c.ArchiveBucketName == "" {
			errs = append(errs, ErrMissingArchiveBucketName)
		}
		if c.ArchiveAccessKeyID == "" {
			errs = append(errs, ErrMissingArchiveAccessKeyID)
		}
		if c.ArchiveSecretAccessKey == "" {
			errs = append(errs, ErrMissingArchiveSecretAccessKey)
		}
		if c.ArchiveEndpoint == "" {
			errs = append(errs, ErrMissingArchiveEndpoint)
		} else if _, err := validate.EndpointURL(c.ArchiveEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("ARCHIVE_ENDPOINT: %w", err))
		}
	}

	return errs
}

// AllowedOriginList splits the comma-separated origin list, dropping empty
// entries.
func (c *Config) AllowedOriginList() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// GetJWTSecrets returns the current signing secret and, when a rotation is
// in progress, the previous one.
func (c *Config) GetJWTSecrets() (current, previous string) {
	return c.JWTSecret, c.JWTSecretPrevious
}

// ArchiveEnabled reports whether CSV archive storage is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucketName != "" && c.ArchiveAccessKeyID != "" &&
		c.ArchiveSecretAccessKey != "" && c.ArchiveEndpoint != ""
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) << 20
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                strconv.Itoa(c.Port),
		"env":                 c.Env,
		"database_url":        maskDatabaseURL(c.DatabaseURL),
		"jwt_secret":          maskSecret(c.JWTSecret),
		"jwt_secret_previous": maskSecret(c.JWTSecretPrevious),
		"redis_url":           maskDatabaseURL(c.RedisURL),
		"geocode_endpoint":    c.GeocodeEndpoint,
		"geocode_interval_ms": strconv.Itoa(c.GeocodeIntervalMS),
		"geocode_batch_size":  strconv.Itoa(c.GeocodeBatchSize),
		"max_upload_size_mb":  strconv.Itoa(c.MaxUploadSizeMB),
		"archive_bucket_name": c.ArchiveBucketName,
		"archive_access_key":  maskSecret(c.ArchiveAccessKeyID),
		"archive_secret_key":  maskSecret(c.ArchiveSecretAccessKey),
		"archive_endpoint":    c.ArchiveEndpoint,
		"archive_region":      c.ArchiveRegion,
		"otlp_endpoint":       c.OTLPEndpoint,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
// Supports postgres://, postgresql:// and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
