// Package config loads tasktree settings from tasktree.yaml and TASKTREE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abatilo/tasktree/internal/task"
)

const (
	fileName  = "tasktree"
	envPrefix = "TASKTREE"
)

// Backend kinds.
const (
	BackendMemory   = "memory"
	BackendMarkdown = "markdown"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config is the complete runtime configuration.
type Config struct {
	Task    task.Limits
	Deps    DepsConfig
	Cache   CacheConfig
	Store   StoreConfig
	Batch   BatchConfig
	Backend BackendConfig
	Log     LogConfig
}

// DepsConfig configures the dependency validator.
type DepsConfig struct {
	MaxTraversalDepth int
	ValidationTTL     time.Duration
	MemoSize          int
}

// CacheConfig configures the task cache.
type CacheConfig struct {
	MaxEntries int
	BaseTTL    time.Duration
	MaxTTL     time.Duration
}

// StoreConfig configures the task store.
type StoreConfig struct {
	ChunkSize  int
	WarmOnOpen bool
}

// BatchConfig configures the batch processor.
type BatchConfig struct {
	GroupSize            int
	MaxRetries           int
	RetryDelay           time.Duration
	OperationTimeout     time.Duration
	MaxConcurrentBatches int
}

// BackendConfig selects and locates the backing store.
type BackendConfig struct {
	Kind string
	Path string // markdown directory or sqlite file
	DSN  string // postgres connection string
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Task: task.DefaultLimits(),
		Deps: DepsConfig{
			MaxTraversalDepth: 10,
			ValidationTTL:     5 * time.Second,
			MemoSize:          1024,
		},
		Cache: CacheConfig{
			MaxEntries: 1000,
			BaseTTL:    time.Minute,
			MaxTTL:     10 * time.Minute,
		},
		Store: StoreConfig{
			ChunkSize:  50,
			WarmOnOpen: true,
		},
		Batch: BatchConfig{
			GroupSize:            50,
			MaxRetries:           3,
			RetryDelay:           time.Second,
			OperationTimeout:     30 * time.Second,
			MaxConcurrentBatches: 4,
		},
		Backend: BackendConfig{
			Kind: BackendMemory,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Option adjusts the defaults Load starts from.
type Option func(*Config)

// WithBackendKind sets the default backend kind.
func WithBackendKind(kind string) Option {
	return func(c *Config) {
		c.Backend.Kind = kind
	}
}

// WithBackendPath sets the default backend path used when neither the file nor the environment sets one.
func WithBackendPath(path string) Option {
	return func(c *Config) {
		c.Backend.Path = path
	}
}

// Load reads tasktree.yaml from dir (if present) and TASKTREE_* environment
// overrides, e.g. TASKTREE_BACKEND_KIND=sqlite. Missing keys keep their defaults.
func Load(dir string, opts ...Option) (*Config, error) {
	cfg := Default()
	for _, opt := range opts {
		opt(cfg)
	}

	v := viper.New()
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s.yaml: %w", fileName, err)
		}
	}

	cfg.Task = task.Limits{
		MaxPathDepth:         v.GetInt("task.max_path_depth"),
		MaxNameLength:        v.GetInt("task.max_name_length"),
		MaxDescriptionLength: v.GetInt("task.max_description_length"),
		MaxDependencies:      v.GetInt("task.max_dependencies"),
		MaxNotes:             v.GetInt("task.max_notes"),
		MaxNoteLength:        v.GetInt("task.max_note_length"),
		AllowCancelled:       v.GetBool("task.allow_cancelled"),
	}
	cfg.Deps = DepsConfig{
		MaxTraversalDepth: v.GetInt("deps.max_traversal_depth"),
		ValidationTTL:     v.GetDuration("deps.validation_ttl"),
		MemoSize:          v.GetInt("deps.memo_size"),
	}
	cfg.Cache = CacheConfig{
		MaxEntries: v.GetInt("cache.max_entries"),
		BaseTTL:    v.GetDuration("cache.base_ttl"),
		MaxTTL:     v.GetDuration("cache.max_ttl"),
	}
	cfg.Store = StoreConfig{
		ChunkSize:  v.GetInt("store.chunk_size"),
		WarmOnOpen: v.GetBool("store.warm_on_open"),
	}
	cfg.Batch = BatchConfig{
		GroupSize:            v.GetInt("batch.group_size"),
		MaxRetries:           v.GetInt("batch.max_retries"),
		RetryDelay:           v.GetDuration("batch.retry_delay"),
		OperationTimeout:     v.GetDuration("batch.operation_timeout"),
		MaxConcurrentBatches: v.GetInt("batch.max_concurrent_batches"),
	}
	cfg.Backend = BackendConfig{
		Kind: v.GetString("backend.kind"),
		Path: v.GetString("backend.path"),
		DSN:  v.GetString("backend.dsn"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("task.max_path_depth", cfg.Task.MaxPathDepth)
	v.SetDefault("task.max_name_length", cfg.Task.MaxNameLength)
	v.SetDefault("task.max_description_length", cfg.Task.MaxDescriptionLength)
	v.SetDefault("task.max_dependencies", cfg.Task.MaxDependencies)
	v.SetDefault("task.max_notes", cfg.Task.MaxNotes)
	v.SetDefault("task.max_note_length", cfg.Task.MaxNoteLength)
	v.SetDefault("task.allow_cancelled", cfg.Task.AllowCancelled)
	v.SetDefault("deps.max_traversal_depth", cfg.Deps.MaxTraversalDepth)
	v.SetDefault("deps.validation_ttl", cfg.Deps.ValidationTTL)
	v.SetDefault("deps.memo_size", cfg.Deps.MemoSize)
	v.SetDefault("cache.max_entries", cfg.Cache.MaxEntries)
	v.SetDefault("cache.base_ttl", cfg.Cache.BaseTTL)
	v.SetDefault("cache.max_ttl", cfg.Cache.MaxTTL)
	v.SetDefault("store.chunk_size", cfg.Store.ChunkSize)
	v.SetDefault("store.warm_on_open", cfg.Store.WarmOnOpen)
	v.SetDefault("batch.group_size", cfg.Batch.GroupSize)
	v.SetDefault("batch.max_retries", cfg.Batch.MaxRetries)
	v.SetDefault("batch.retry_delay", cfg.Batch.RetryDelay)
	v.SetDefault("batch.operation_timeout", cfg.Batch.OperationTimeout)
	v.SetDefault("batch.max_concurrent_batches", cfg.Batch.MaxConcurrentBatches)
	v.SetDefault("backend.kind", cfg.Backend.Kind)
	v.SetDefault("backend.path", cfg.Backend.Path)
	v.SetDefault("backend.dsn", cfg.Backend.DSN)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// Validate checks that every value is in range.
func (c *Config) Validate() error {
	positives := []struct {
		key string
		val int
	}{
		{"task.max_path_depth", c.Task.MaxPathDepth},
		{"task.max_name_length", c.Task.MaxNameLength},
		{"task.max_description_length", c.Task.MaxDescriptionLength},
		{"task.max_dependencies", c.Task.MaxDependencies},
		{"task.max_notes", c.Task.MaxNotes},
		{"task.max_note_length", c.Task.MaxNoteLength},
		{"deps.max_traversal_depth", c.Deps.MaxTraversalDepth},
		{"deps.memo_size", c.Deps.MemoSize},
		{"cache.max_entries", c.Cache.MaxEntries},
		{"store.chunk_size", c.Store.ChunkSize},
		{"batch.group_size", c.Batch.GroupSize},
		{"batch.max_concurrent_batches", c.Batch.MaxConcurrentBatches},
	}
	for _, p := range positives {
		if p.val <= 0 {
			return fmt.Errorf("config %s must be positive, got %d", p.key, p.val)
		}
	}
	if c.Batch.MaxRetries < 0 {
		return fmt.Errorf("config batch.max_retries must not be negative, got %d", c.Batch.MaxRetries)
	}
	if c.Cache.BaseTTL <= 0 || c.Cache.MaxTTL < c.Cache.BaseTTL {
		return fmt.Errorf("config cache ttl must satisfy 0 < base_ttl <= max_ttl, got %s/%s", c.Cache.BaseTTL, c.Cache.MaxTTL)
	}
	switch c.Backend.Kind {
	case BackendMemory:
	case BackendMarkdown, BackendSQLite:
		if c.Backend.Path == "" {
			return fmt.Errorf("config backend.path is required for %s backend", c.Backend.Kind)
		}
	case BackendPostgres:
		if c.Backend.DSN == "" {
			return errors.New("config backend.dsn is required for postgres backend")
		}
	default:
		return fmt.Errorf("config backend.kind %q is not one of memory, markdown, sqlite, postgres", c.Backend.Kind)
	}
	return nil
}
