//nolint:testpackage // Tests require internal access for thorough testing
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Default()
	if cfg.Task != want.Task {
		t.Errorf("Task = %+v, want %+v", cfg.Task, want.Task)
	}
	if cfg.Deps != want.Deps {
		t.Errorf("Deps = %+v, want %+v", cfg.Deps, want.Deps)
	}
	if cfg.Batch != want.Batch {
		t.Errorf("Batch = %+v, want %+v", cfg.Batch, want.Batch)
	}
	if cfg.Backend.Kind != BackendMemory {
		t.Errorf("Backend.Kind = %q, want memory", cfg.Backend.Kind)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`task:
  max_path_depth: 5
  allow_cancelled: true
deps:
  max_traversal_depth: 4
  validation_ttl: 250ms
cache:
  max_entries: 10
  base_ttl: 2s
  max_ttl: 20s
batch:
  max_retries: 1
  retry_delay: 10ms
backend:
  kind: sqlite
  path: /tmp/tasks.db
log:
  level: debug
`)
	if err := os.WriteFile(filepath.Join(dir, "tasktree.yaml"), content, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Task.MaxPathDepth != 5 || !cfg.Task.AllowCancelled {
		t.Errorf("Task = %+v, want depth 5 and cancelled allowed", cfg.Task)
	}
	if cfg.Task.MaxDependencies != 50 {
		t.Errorf("Task.MaxDependencies = %d, want default 50", cfg.Task.MaxDependencies)
	}
	if cfg.Deps.MaxTraversalDepth != 4 || cfg.Deps.ValidationTTL != 250*time.Millisecond {
		t.Errorf("Deps = %+v", cfg.Deps)
	}
	if cfg.Cache.MaxEntries != 10 || cfg.Cache.BaseTTL != 2*time.Second || cfg.Cache.MaxTTL != 20*time.Second {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Batch.MaxRetries != 1 || cfg.Batch.RetryDelay != 10*time.Millisecond {
		t.Errorf("Batch = %+v", cfg.Batch)
	}
	if cfg.Backend.Kind != BackendSQLite || cfg.Backend.Path != "/tmp/tasks.db" {
		t.Errorf("Backend = %+v", cfg.Backend)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TASKTREE_BATCH_GROUP_SIZE", "7")
	t.Setenv("TASKTREE_BACKEND_KIND", "markdown")

	cfg, err := Load(t.TempDir(), WithBackendPath("/tmp/tasks"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Batch.GroupSize != 7 {
		t.Errorf("Batch.GroupSize = %d, want 7", cfg.Batch.GroupSize)
	}
	if cfg.Backend.Kind != BackendMarkdown || cfg.Backend.Path != "/tmp/tasks" {
		t.Errorf("Backend = %+v, want markdown at /tmp/tasks", cfg.Backend)
	}
}

func TestLoadOptionDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir, WithBackendKind(BackendMarkdown), WithBackendPath("/srv/tasks"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.Kind != BackendMarkdown || cfg.Backend.Path != "/srv/tasks" {
		t.Errorf("Backend = %+v, want markdown at /srv/tasks", cfg.Backend)
	}

	if err := os.WriteFile(filepath.Join(dir, "tasktree.yaml"), []byte("backend:\n  kind: memory\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	cfg, err = Load(dir, WithBackendKind(BackendMarkdown), WithBackendPath("/srv/tasks"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.Kind != BackendMemory {
		t.Errorf("Backend.Kind = %q, want file to override option default", cfg.Backend.Kind)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero chunk size", func(c *Config) { c.Store.ChunkSize = 0 }, true},
		{"negative retries", func(c *Config) { c.Batch.MaxRetries = -1 }, true},
		{"max ttl below base", func(c *Config) { c.Cache.MaxTTL = c.Cache.BaseTTL / 2 }, true},
		{"sqlite without path", func(c *Config) { c.Backend.Kind = BackendSQLite }, true},
		{"postgres without dsn", func(c *Config) { c.Backend.Kind = BackendPostgres }, true},
		{"unknown backend", func(c *Config) { c.Backend.Kind = "etcd" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
