package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "server:\n  port: \"9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 1, cfg.Engine.MaxReaderVersion)
	assert.Equal(t, 8, cfg.Engine.FetchConcurrency)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFileStorage(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
storage:
  backend: s3
  s3:
    region: eu-west-1
    bucket: lake
    prefix: warehouse
    force_path_style: true
engine:
  max_reader_version: 3
  reader_features: [timestampNtz]
`))
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "lake", cfg.Storage.S3.Bucket)
	assert.True(t, cfg.Storage.S3.ForcePathStyle)
	assert.Equal(t, []string{"timestampNtz"}, cfg.Engine.ReaderFeatures)
}

func TestLoadFileEnvOverride(t *testing.T) {
	t.Setenv("DELTA_GATEWAY_STORAGE_BACKEND", "memory")
	t.Setenv("DELTA_GATEWAY_ENGINE_FETCH_CONCURRENCY", "2")
	cfg, err := LoadFile(writeConfig(t, "storage:\n  backend: local\n"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 2, cfg.Engine.FetchConcurrency)
}

func TestLoadFileInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"unknown backend": "storage:\n  backend: ftp\n",
		"reader version":  "engine:\n  max_reader_version: 9\n",
		"log level":       "logging:\n  level: loud\n",
		"reader feature":  "engine:\n  max_reader_version: 3\n  reader_features: [deletionVectors]\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
