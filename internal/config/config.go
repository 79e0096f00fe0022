package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"invoiceapi/internal/logger"
)

const (
	ProviderOpenAI = "openai"
	ProviderVertex = "vertex"

	StorageGCS   = "gcs"
	StorageLocal = "local"
)

// ConfigFileEnv names the environment variable that points at an optional
// YAML config file.
const ConfigFileEnv = "INVOICE_API_CONFIG"

type Config struct {
	// LLM Configuration
	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	OpenAIJSONMode  bool
	Temperature     float32
	VertexProject   string
	VertexLocation  string
	VertexModel     string
	LLMTimeout      time.Duration
	LLMMaxAttempts  int
	LLMRetryDelay   time.Duration
	MergeDuplicates bool

	// Document Storage Configuration
	StorageBackend        string
	BucketName            string
	LocalStorageDir       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
	PresignTTL            time.Duration
	MaxDocumentBytes      int64

	// Text Extraction Configuration
	MinPrimaryTextChars int

	// HTTP Configuration
	ServerAddr      string
	RequestTimeout  time.Duration
	CORSAllowOrigin string

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads configuration from the environment and, when INVOICE_API_CONFIG
// is set, from that file.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile reads configuration from the environment and an optional YAML
// file. Environment variables take precedence over the file.
func LoadFile(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
		}
	}

	config := &Config{
		LLMProvider:           strings.ToLower(v.GetString("llm_provider")),
		OpenAIAPIKey:          v.GetString("openai_api_key"),
		OpenAIModel:           v.GetString("openai_model"),
		OpenAIBaseURL:         v.GetString("openai_base_url"),
		OpenAIJSONMode:        v.GetBool("openai_json_mode"),
		Temperature:           float32(v.GetFloat64("openai_temperature")),
		VertexProject:         v.GetString("vertex_project"),
		VertexLocation:        v.GetString("vertex_location"),
		VertexModel:           v.GetString("vertex_model"),
		LLMTimeout:            v.GetDuration("llm_timeout"),
		LLMMaxAttempts:        v.GetInt("llm_max_attempts"),
		LLMRetryDelay:         v.GetDuration("llm_retry_delay"),
		MergeDuplicates:       v.GetBool("merge_duplicate_invoices"),
		StorageBackend:        strings.ToLower(v.GetString("storage_backend")),
		BucketName:            v.GetString("bucket_name"),
		LocalStorageDir:       v.GetString("local_storage_dir"),
		GoogleCredentialsFile: v.GetString("google_application_credentials"),
		GoogleCredentialsJSON: v.GetString("google_credentials"),
		PresignTTL:            v.GetDuration("presign_ttl"),
		MaxDocumentBytes:      v.GetInt64("max_document_bytes"),
		MinPrimaryTextChars:   v.GetInt("min_primary_text_chars"),
		ServerAddr:            v.GetString("server_addr"),
		RequestTimeout:        v.GetDuration("request_timeout"),
		CORSAllowOrigin:       v.GetString("cors_allow_origin"),
		GoogleSheetURL:        v.GetString("google_sheet_url"),
		GoogleSheetWorksheet:  v.GetString("google_sheet_worksheet"),
		LogLevel:              v.GetString("log_level"),
		LogFormat:             v.GetString("log_format"),
		LogTimeFormat:         v.GetString("log_time_format"),
		LogOutput:             v.GetString("log_output"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("llm_provider", ProviderOpenAI)
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_model", "gpt-3.5-turbo")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("openai_json_mode", true)
	v.SetDefault("openai_temperature", 0.1)
	v.SetDefault("vertex_project", "")
	v.SetDefault("vertex_location", "us-central1")
	v.SetDefault("vertex_model", "gemini-1.5-pro")
	v.SetDefault("llm_timeout", 60*time.Second)
	v.SetDefault("llm_max_attempts", 1)
	v.SetDefault("llm_retry_delay", 2*time.Second)
	v.SetDefault("merge_duplicate_invoices", true)
	v.SetDefault("storage_backend", StorageGCS)
	v.SetDefault("bucket_name", "")
	v.SetDefault("local_storage_dir", "./documents")
	v.SetDefault("google_application_credentials", "")
	v.SetDefault("google_credentials", "")
	v.SetDefault("presign_ttl", 5*time.Minute)
	v.SetDefault("max_document_bytes", int64(20*1024*1024))
	v.SetDefault("min_primary_text_chars", 100)
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("request_timeout", 120*time.Second)
	v.SetDefault("cors_allow_origin", "*")
	v.SetDefault("google_sheet_url", "")
	v.SetDefault("google_sheet_worksheet", "Invoices")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("log_time_format", "2006-01-02T15:04:05Z07:00")
	v.SetDefault("log_output", "stdout")

	// Every key above maps to its upper-case environment variable.
	v.AutomaticEnv()

	return v
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderVertex:
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderVertex, c.LLMProvider)
	}
	switch c.StorageBackend {
	case StorageGCS, StorageLocal:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageGCS, StorageLocal, c.StorageBackend)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("OPENAI_TEMPERATURE must be between 0 and 2")
	}
	if c.LLMMaxAttempts < 1 {
		return fmt.Errorf("LLM_MAX_ATTEMPTS must be at least 1")
	}
	if c.MaxDocumentBytes <= 0 {
		return fmt.Errorf("MAX_DOCUMENT_BYTES must be positive")
	}
	if c.MinPrimaryTextChars < 0 {
		return fmt.Errorf("MIN_PRIMARY_TEXT_CHARS must not be negative")
	}
	if c.PresignTTL <= 0 {
		return fmt.Errorf("PRESIGN_TTL must be positive")
	}
	return nil
}

// HasLLMCredentials reports whether the selected provider can be called.
// A missing credential is reported per request rather than at startup.
func (c *Config) HasLLMCredentials() bool {
	switch c.LLMProvider {
	case ProviderVertex:
		return c.VertexProject != ""
	default:
		return c.OpenAIAPIKey != ""
	}
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}
