package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, "files", cfg.Storage.BucketName)
	assert.Equal(t, "none", cfg.Inline.Compression)
	assert.Equal(t, "redis", cfg.Lock.Backend)
	assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 10, cfg.RateLimit.Max)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Seed.Dir)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: "8080"
storage:
  backend: "s3"
  bucket_name: "blobs"
inline:
  compression: "zstd"
lock:
  backend: "memory"
  ttl: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("RIFT_DATABASE_MYSQL_DSN", "user:pass@tcp(db:3306)/rift")
	t.Setenv("RIFT_STORAGE_BUCKET_NAME", "override")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "override", cfg.Storage.BucketName, "环境变量应覆盖配置文件")
	assert.Equal(t, "zstd", cfg.Inline.Compression)
	assert.Equal(t, "memory", cfg.Lock.Backend)
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
	assert.Equal(t, "user:pass@tcp(db:3306)/rift", cfg.Database.MySQL.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
