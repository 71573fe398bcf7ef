package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvLookup abstracts os.LookupEnv for testability, matching the teacher's
// DefaultEnvLookup/options.envLookup pattern in internal/config/load.go.
type EnvLookup func(key string) (string, bool)

func DefaultEnvLookup(key string) (string, bool) { return os.LookupEnv(key) }

type loadOptions struct {
	envLookup  EnvLookup
	configFile string
	overrides  []Option
}

// Option mutates a RuntimeConfig during the final "caller overrides" layer.
type Option func(*RuntimeConfig, *Metadata)

func WithConfigFile(path string) func(*loadOptions) {
	return func(o *loadOptions) { o.configFile = path }
}

func WithEnvLookup(fn EnvLookup) func(*loadOptions) {
	return func(o *loadOptions) { o.envLookup = fn }
}

func WithOverride(opt Option) func(*loadOptions) {
	return func(o *loadOptions) { o.overrides = append(o.overrides, opt) }
}

// defaults returns the baseline RuntimeConfig before any file/env/override
// layer is applied.
func defaults() RuntimeConfig {
	return RuntimeConfig{
		Environment:       DefaultEnvironment,
		HTTPAddr:          DefaultHTTPAddr,
		DBHost:            "localhost",
		DBPort:            5432,
		DBUser:            "postgres",
		DBName:            "memory_core",
		DBMaxConns:        DefaultDBMaxConns,
		DBMinConns:        DefaultDBMinConns,
		DBAcquireTimeout:  DefaultDBAcquireTimeout,
		EmbeddingProvider: "external",
		ExtractorProvider: "external",
		ChatProvider:      "external",
		ObjectStoreRoot:   DefaultObjectStoreRoot,
		LogLevel:          "info",
		LogFormat:         "text",
		MetricsEnabled:    true,
	}
}

// Load resolves the RuntimeConfig through defaults -> file -> environment ->
// overrides, returning per-field provenance in Metadata.
func Load(opts ...func(*loadOptions)) (RuntimeConfig, Metadata, error) {
	options := loadOptions{envLookup: DefaultEnvLookup}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := defaults()
	meta := Metadata{Sources: map[string]ValueSource{}, LoadedAt: time.Now()}

	if options.configFile != "" {
		if err := applyFile(&cfg, &meta, options.configFile); err != nil {
			return RuntimeConfig{}, Metadata{}, err
		}
	}

	applyEnv(&cfg, &meta, options.envLookup)

	for _, opt := range options.overrides {
		opt(&cfg, &meta)
		for field := range meta.Sources {
			_ = field // overrides mark their own fields; see WithOverride callers
		}
	}

	return cfg, meta, nil
}

func applyFile(cfg *RuntimeConfig, meta *Metadata, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	file := defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	merged := *cfg
	before := merged
	mergeNonZero(&merged, file)
	*cfg = merged
	markChangedFields(meta, before, merged, SourceFile)
	return nil
}

func applyEnv(cfg *RuntimeConfig, meta *Metadata, lookup EnvLookup) {
	before := *cfg
	setStr := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	setStr(&cfg.Environment, "MEMCORE_ENVIRONMENT")
	setStr(&cfg.HTTPAddr, "MEMCORE_HTTP_ADDR")
	setStr(&cfg.DatabaseURL, "MEMCORE_DATABASE_URL")
	setStr(&cfg.DBHost, "MEMCORE_DB_HOST")
	setStr(&cfg.DBUser, "MEMCORE_DB_USER")
	setStr(&cfg.DBPassword, "MEMCORE_DB_PASSWORD")
	setStr(&cfg.DBName, "MEMCORE_DB_NAME")
	setStr(&cfg.EmbeddingProvider, "MEMCORE_EMBEDDING_PROVIDER")
	setStr(&cfg.EmbeddingModel, "MEMCORE_EMBEDDING_MODEL")
	setStr(&cfg.EmbeddingBaseURL, "MEMCORE_EMBEDDING_BASE_URL")
	setStr(&cfg.EmbeddingAPIKey, "MEMCORE_EMBEDDING_API_KEY")
	setStr(&cfg.ExtractorProvider, "MEMCORE_EXTRACTOR_PROVIDER")
	setStr(&cfg.ExtractorModel, "MEMCORE_EXTRACTOR_MODEL")
	setStr(&cfg.ExtractorAPIKey, "MEMCORE_EXTRACTOR_API_KEY")
	setStr(&cfg.ChatProvider, "MEMCORE_CHAT_PROVIDER")
	setStr(&cfg.ChatModel, "MEMCORE_CHAT_MODEL")
	setStr(&cfg.ChatAPIKey, "MEMCORE_CHAT_API_KEY")
	setStr(&cfg.ObjectStoreRoot, "MEMCORE_OBJECT_STORE_ROOT")
	setStr(&cfg.ObjectStoreBucket, "MEMCORE_OBJECT_STORE_BUCKET")
	setStr(&cfg.LogLevel, "MEMCORE_LOG_LEVEL")
	setStr(&cfg.LogFormat, "MEMCORE_LOG_FORMAT")

	if v, ok := lookup("MEMCORE_DB_PORT"); ok {
		fmt.Sscanf(v, "%d", &cfg.DBPort)
	}

	// environment=local_environment selects the single-DSN form explicitly.
	if strings.EqualFold(cfg.Environment, "local_environment") {
		if v, ok := lookup("MEMCORE_DSN"); ok && v != "" {
			cfg.DatabaseURL = v
		}
	}

	markChangedFields(meta, before, *cfg, SourceEnv)
}

// mergeNonZero copies every non-zero-value field of src over dst, used for
// the file layer so an absent key in the file never clobbers a default.
func mergeNonZero(dst *RuntimeConfig, src RuntimeConfig) {
	d := defaults()
	if src.Environment != d.Environment {
		dst.Environment = src.Environment
	}
	if src.HTTPAddr != d.HTTPAddr {
		dst.HTTPAddr = src.HTTPAddr
	}
	if src.DatabaseURL != "" {
		dst.DatabaseURL = src.DatabaseURL
	}
	if src.DBHost != d.DBHost {
		dst.DBHost = src.DBHost
	}
	if src.DBPort != 0 {
		dst.DBPort = src.DBPort
	}
	if src.DBUser != d.DBUser {
		dst.DBUser = src.DBUser
	}
	if src.DBPassword != "" {
		dst.DBPassword = src.DBPassword
	}
	if src.DBName != d.DBName {
		dst.DBName = src.DBName
	}
	if src.DBMaxConns != 0 {
		dst.DBMaxConns = src.DBMaxConns
	}
	if src.DBMinConns != 0 {
		dst.DBMinConns = src.DBMinConns
	}
	if src.DBAcquireTimeout != 0 {
		dst.DBAcquireTimeout = src.DBAcquireTimeout
	}
	if src.EmbeddingProvider != d.EmbeddingProvider {
		dst.EmbeddingProvider = src.EmbeddingProvider
	}
	if src.EmbeddingModel != "" {
		dst.EmbeddingModel = src.EmbeddingModel
	}
	if src.EmbeddingBaseURL != "" {
		dst.EmbeddingBaseURL = src.EmbeddingBaseURL
	}
	if src.EmbeddingAPIKey != "" {
		dst.EmbeddingAPIKey = src.EmbeddingAPIKey
	}
	if src.ExtractorProvider != d.ExtractorProvider {
		dst.ExtractorProvider = src.ExtractorProvider
	}
	if src.ExtractorModel != "" {
		dst.ExtractorModel = src.ExtractorModel
	}
	if src.ExtractorAPIKey != "" {
		dst.ExtractorAPIKey = src.ExtractorAPIKey
	}
	if src.ChatProvider != d.ChatProvider {
		dst.ChatProvider = src.ChatProvider
	}
	if src.ChatModel != "" {
		dst.ChatModel = src.ChatModel
	}
	if src.ChatAPIKey != "" {
		dst.ChatAPIKey = src.ChatAPIKey
	}
	if src.ObjectStoreRoot != d.ObjectStoreRoot {
		dst.ObjectStoreRoot = src.ObjectStoreRoot
	}
	if src.ObjectStoreBucket != "" {
		dst.ObjectStoreBucket = src.ObjectStoreBucket
	}
	if src.LogLevel != d.LogLevel {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFormat != d.LogFormat {
		dst.LogFormat = src.LogFormat
	}
	if src.MetricsEnabled != d.MetricsEnabled {
		dst.MetricsEnabled = src.MetricsEnabled
	}
	if src.TracingEnabled != d.TracingEnabled {
		dst.TracingEnabled = src.TracingEnabled
	}
}

func markChangedFields(meta *Metadata, before, after RuntimeConfig, source ValueSource) {
	if before == after {
		return
	}
	// Only four keys are recorded: database_url, db_host (host or port),
	// embedding_provider and log_level. SourceOf reports SourceDefault for
	// every other field, whichever layer set it.
	if before.DatabaseURL != after.DatabaseURL {
		meta.Sources["database_url"] = source
	}
	if before.DBHost != after.DBHost || before.DBPort != after.DBPort {
		meta.Sources["db_host"] = source
	}
	if before.EmbeddingProvider != after.EmbeddingProvider {
		meta.Sources["embedding_provider"] = source
	}
	if before.LogLevel != after.LogLevel {
		meta.Sources["log_level"] = source
	}
}

// DSN composes a Postgres connection string from discrete fields when
// DatabaseURL is not set directly.
func (c RuntimeConfig) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
