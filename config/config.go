// Package config has the configuration for the regimen tool
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment is the deployment environment the tool runs in
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

// String returns the short name of the environment
func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment accepts both the short and the long environment names
func ParseEnvironment(value string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", value)
}

// Config holds all application configuration
type Config struct {
	Port             string
	Address          string
	Env              Environment
	LogLevel         string
	LogDir           string
	LogRetentionDays int   // Number of days to keep log files
	MaxLogFileSize   int64 // Maximum log file size in bytes
	MaxRequestBody   int64 // Maximum request body size in bytes
	MaxHeaderSize    int64 // Maximum header size in bytes

	SynapseEndpoint    string
	SynapseCacheDir    string
	SynapseRate        float64 // Outbound requests per second
	SynapseTimeout     time.Duration
	PrissmmTableID     string
	GlobalResponseID   string
	RegimenFileID      string
	DataDictionaryName string

	Cohorts     []string
	TopRegimens int
	RefreshAt   string
}

var synapseIDRegex = regexp.MustCompile(`^syn\d+$`)

// Load reads the .env file when present, then loads and validates
// configuration from environment variables
func Load() (*Config, error) {
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:             getEnvWithDefault("PORT", "8000"),
		Address:          getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:              env,
		LogLevel:         getEnvWithDefault("LOG_LEVEL", "info"),
		LogDir:           getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionDays: getIntEnvWithDefault("LOG_RETENTION_DAYS", 28),
		MaxLogFileSize:   getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:   getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:    getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		SynapseEndpoint:    getEnvWithDefault("SYNAPSE_ENDPOINT", "https://repo-prod.prod.sagebase.org"),
		SynapseCacheDir:    getEnvWithDefault("SYNAPSE_CACHE_DIR", "files"),
		SynapseRate:        getFloatEnvWithDefault("SYNAPSE_REQUESTS_PER_SECOND", 5),
		SynapseTimeout:     getDurationEnvWithDefault("SYNAPSE_TIMEOUT", 5*time.Minute),
		PrissmmTableID:     getEnvWithDefault("PRISSMM_TABLE_ID", "syn22684834"),
		GlobalResponseID:   getEnvWithDefault("GRS_FILE_ID", "syn24184523"),
		RegimenFileID:      getEnvWithDefault("REGIMEN_FILE_ID", "syn22296818"),
		DataDictionaryName: getEnvWithDefault("DATA_DICTIONARY_NAME", "Data Dictionary non-PHI"),

		Cohorts:     splitList(getEnvWithDefault("COHORTS", "BrCa,CRC,NSCLC,Prostate,PANC")),
		TopRegimens: getIntEnvWithDefault("TOP_REGIMENS", 20),
		RefreshAt:   getEnvWithDefault("REFRESH_AT", "06:00;18:00"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateLogRetentionDays(cfg.LogRetentionDays); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_DAYS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateEndpoint(cfg.SynapseEndpoint); err != nil {
		return fmt.Errorf("invalid SYNAPSE_ENDPOINT: %w", err)
	}

	if cfg.SynapseRate <= 0 {
		return fmt.Errorf("invalid SYNAPSE_REQUESTS_PER_SECOND: must be positive, got: %v", cfg.SynapseRate)
	}

	if cfg.SynapseTimeout <= 0 {
		return fmt.Errorf("invalid SYNAPSE_TIMEOUT: must be positive, got: %s", cfg.SynapseTimeout)
	}

	for name, id := range map[string]string{
		"PRISSMM_TABLE_ID": cfg.PrissmmTableID,
		"GRS_FILE_ID":      cfg.GlobalResponseID,
		"REGIMEN_FILE_ID":  cfg.RegimenFileID,
	} {
		if !synapseIDRegex.MatchString(id) {
			return fmt.Errorf("invalid %s: must look like syn123, got: %s", name, id)
		}
	}

	if len(cfg.Cohorts) == 0 {
		return fmt.Errorf("invalid COHORTS: at least one cohort is required")
	}

	if cfg.TopRegimens <= 0 {
		return fmt.Errorf("invalid TOP_REGIMENS: must be positive, got: %d", cfg.TopRegimens)
	}

	if _, err := ParseRefreshTimes(cfg.RefreshAt); err != nil {
		return fmt.Errorf("invalid REFRESH_AT: %w", err)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 {
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionDays validates the LOG_RETENTION_DAYS environment variable
func validateLogRetentionDays(days int) error {
	if days <= 0 {
		return fmt.Errorf("LOG_RETENTION_DAYS must be positive, got: %d", days)
	}

	if days > 366 {
		return fmt.Errorf("LOG_RETENTION_DAYS is too large (max 366 days), got: %d", days)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateEndpoint checks SYNAPSE_ENDPOINT is an absolute http(s) URL
func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("SYNAPSE_ENDPOINT must be a valid URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("SYNAPSE_ENDPOINT must use http or https, got: %s", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("SYNAPSE_ENDPOINT must include a host, got: %s", endpoint)
	}
	return nil
}

// ParseRefreshTimes parses "HH:MM;HH:MM" into offsets from midnight, sorted
func ParseRefreshTimes(value string) ([]time.Duration, error) {
	var offsets []time.Duration
	for _, item := range strings.Split(value, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		t, err := time.Parse("15:04", item)
		if err != nil {
			return nil, fmt.Errorf("REFRESH_AT times must be HH:MM, got: %s", item)
		}
		offsets = append(offsets, time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute)
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("REFRESH_AT needs at least one time")
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets, nil
}

// splitList splits a comma separated value, dropping empty items
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_DAYS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"SYNAPSE_ENDPOINT",
		"SYNAPSE_CACHE_DIR",
		"SYNAPSE_REQUESTS_PER_SECOND",
		"SYNAPSE_TIMEOUT",
		"SYNAPSE_AUTH_TOKEN",
		"PRISSMM_TABLE_ID",
		"GRS_FILE_ID",
		"REGIMEN_FILE_ID",
		"DATA_DICTIONARY_NAME",
		"COHORTS",
		"TOP_REGIMENS",
		"REFRESH_AT",
	}
}
