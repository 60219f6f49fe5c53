package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/fx"
)

type Config struct {
	WorkspaceID           string `validate:"required"`
	SharedKey             string `validate:"required,base64"`
	DataCollectorDomain   string
	DataCollectorEndpoint string `validate:"omitempty,url"`
	HTTPProxyURL          string `validate:"omitempty,url"`
	HTTPSProxyURL         string `validate:"omitempty,url"`
	RequestTimeoutSeconds int    `validate:"gte=0"`
	AccessToken           string
	Port                  string `validate:"required"`
	TLSEnabled            bool
	TLSCertDir            string
	LogLevel              string
	AuditLogEnabled       bool
	AuditLogFilePath      string
	AuditLogSizeLimitMB   int `validate:"gte=0"`
	SpoolEnabled          bool
	SpoolDir              string `validate:"required_if=SpoolEnabled true"`
}

func NewConfig() *Config {
	return &Config{
		WorkspaceID:           getEnv("WORKSPACE_ID", ""),
		SharedKey:             getEnv("SHARED_KEY", ""),
		DataCollectorDomain:   getEnv("DATA_COLLECTOR_DOMAIN", "ods.opinsights.azure.com"),
		DataCollectorEndpoint: getEnv("DATA_COLLECTOR_ENDPOINT", ""),
		HTTPProxyURL:          getEnv("HTTP_PROXY_URL", ""),
		HTTPSProxyURL:         getEnv("HTTPS_PROXY_URL", ""),
		RequestTimeoutSeconds: getEnvInt("REQUEST_TIMEOUT_SECONDS", 30),
		AccessToken:           getEnv("ACCESS_TOKEN", ""),
		Port:                  getEnv("PORT", "8080"),
		TLSEnabled:            getEnvBool("TLS_ENABLED", false),
		TLSCertDir:            getEnv("TLS_CERT_DIR", "./ssl"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		AuditLogEnabled:       getEnvBool("AUDIT_LOG_ENABLED", false),
		AuditLogFilePath:      getEnv("AUDIT_LOG_FILE_PATH", "/var/log/datacollector-agent/ingest.jsonl"),
		AuditLogSizeLimitMB:   getEnvInt("AUDIT_LOG_SIZE_LIMIT_MB", 100),
		SpoolEnabled:          getEnvBool("SPOOL_ENABLED", false),
		SpoolDir:              getEnv("SPOOL_DIR", "/var/spool/datacollector-agent"),
	}
}

// Validate checks the fields the agent cannot run without.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Proxies returns the scheme to proxy URL mapping; unset schemes are omitted.
func (c *Config) Proxies() map[string]string {
	proxies := make(map[string]string)
	if c.HTTPProxyURL != "" {
		proxies["http"] = c.HTTPProxyURL
	}
	if c.HTTPSProxyURL != "" {
		proxies["https"] = c.HTTPSProxyURL
	}
	return proxies
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

var Module = fx.Options(
	fx.Provide(NewValidatedConfig),
)

func NewValidatedConfig() (*Config, error) {
	cfg := NewConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
