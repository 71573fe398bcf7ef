// Package config implements the layered configuration loader (defaults ->
// file -> environment -> explicit overrides) with per-field provenance,
// grounded on the teacher's internal/config/{load,types,overrides,env_expand}.go.
package config

import "time"

// ValueSource describes where a configuration value originated from.
type ValueSource string

const (
	SourceDefault  ValueSource = "default"
	SourceFile     ValueSource = "file"
	SourceEnv      ValueSource = "environment"
	SourceOverride ValueSource = "override"
)

const (
	DefaultHTTPAddr             = ":8080"
	DefaultEnvironment          = "development"
	DefaultDBMaxConns           = 20
	DefaultDBMinConns           = 2
	DefaultDBAcquireTimeout     = 10 * time.Second
	DefaultDBConnectMaxAttempts = 5
	DefaultDBConnectBaseDelay   = 1 * time.Second
	DefaultDBConnectMaxDelay    = 30 * time.Second
	DefaultDBConnectJitter      = 0.10
	DefaultEmbeddingDimension   = 1024
	DefaultObjectStoreRoot      = "./data/artifacts"
)

// RuntimeConfig captures every user-configurable setting for the memory
// core process.
type RuntimeConfig struct {
	Environment string `json:"environment" yaml:"environment"`
	HTTPAddr    string `json:"http_addr" yaml:"http_addr"`

	// DatabaseURL, when set, is used verbatim (the "local_environment"
	// single-DSN variant from spec §6). Otherwise the discrete fields below
	// are composed into a DSN.
	DatabaseURL      string `json:"database_url" yaml:"database_url"`
	DBHost           string `json:"db_host" yaml:"db_host"`
	DBPort           int    `json:"db_port" yaml:"db_port"`
	DBUser           string `json:"db_user" yaml:"db_user"`
	DBPassword       string `json:"db_password" yaml:"db_password"`
	DBName           string `json:"db_name" yaml:"db_name"`
	DBMaxConns       int32  `json:"db_max_conns" yaml:"db_max_conns"`
	DBMinConns       int32  `json:"db_min_conns" yaml:"db_min_conns"`
	DBAcquireTimeout time.Duration `json:"db_acquire_timeout" yaml:"db_acquire_timeout"`

	EmbeddingProvider string `json:"embedding_provider" yaml:"embedding_provider"`
	EmbeddingModel    string `json:"embedding_model" yaml:"embedding_model"`
	EmbeddingBaseURL  string `json:"embedding_base_url" yaml:"embedding_base_url"`
	EmbeddingAPIKey   string `json:"embedding_api_key" yaml:"embedding_api_key"`

	ExtractorProvider string `json:"extractor_provider" yaml:"extractor_provider"`
	ExtractorModel    string `json:"extractor_model" yaml:"extractor_model"`
	ExtractorAPIKey   string `json:"extractor_api_key" yaml:"extractor_api_key"`

	ChatProvider string `json:"chat_provider" yaml:"chat_provider"`
	ChatModel    string `json:"chat_model" yaml:"chat_model"`
	ChatAPIKey   string `json:"chat_api_key" yaml:"chat_api_key"`

	ObjectStoreRoot   string `json:"object_store_root" yaml:"object_store_root"`
	ObjectStoreBucket string `json:"object_store_bucket" yaml:"object_store_bucket"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`

	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
	TracingEnabled bool `json:"tracing_enabled" yaml:"tracing_enabled"`
}

// Metadata records where a resolved value came from for the keys that
// markChangedFields tracks; SourceOf reports SourceDefault for the rest.
type Metadata struct {
	Sources  map[string]ValueSource
	LoadedAt time.Time
}

func (m Metadata) SourceOf(field string) ValueSource {
	if m.Sources == nil {
		return SourceDefault
	}
	if src, ok := m.Sources[field]; ok {
		return src
	}
	return SourceDefault
}
