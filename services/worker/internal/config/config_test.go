package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(`
databaseURL: "sqlite:///tmp/fm.db"
redisAddr: "localhost:6379"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "5001" || cfg.QueueGroup != "thumbnail-workers" || cfg.QueueConcurrency != 2 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.QueueStream != "files_manager:thumbnails" {
		t.Fatalf("queueStream = %q", cfg.QueueStream)
	}
	if cfg.RetryDelay() != 2*time.Second {
		t.Fatalf("retry delay = %v", cfg.RetryDelay())
	}
}

func TestLoadFromEnvOnly(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://fm@db/fm")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("THUMBNAIL_QUEUE_CONCURRENCY", "8")
	t.Setenv("THUMBNAIL_QUEUE_MAX_RETRIES", "5")
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_BUCKET", "files")
	t.Setenv("MINIO_ACCESS_KEY", "fm")
	t.Setenv("MINIO_SECRET_KEY", "fm-secret")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.QueueConcurrency != 8 || cfg.QueueMaxRetries != 5 {
		t.Fatalf("queue overrides not applied: %+v", cfg)
	}
	st := cfg.Storage()
	if st.Backend != "minio" || st.MinioEndpoint != "minio:9000" || !st.MinioUseSSL {
		t.Fatalf("storage overrides not applied: %+v", st)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "no database", env: map[string]string{"DATABASE_URL": "", "REDIS_ADDR": "r:6379"}},
		{name: "no redis", env: map[string]string{"DATABASE_URL": "sqlite:///tmp/x.db", "REDIS_ADDR": ""}},
		{name: "unknown backend", env: map[string]string{"DATABASE_URL": "sqlite:///tmp/x.db", "REDIS_ADDR": "r:6379", "STORAGE_BACKEND": "tape"}},
		{name: "minio without bucket", env: map[string]string{"DATABASE_URL": "sqlite:///tmp/x.db", "REDIS_ADDR": "r:6379", "STORAGE_BACKEND": "minio", "MINIO_ENDPOINT": "m:9000"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
