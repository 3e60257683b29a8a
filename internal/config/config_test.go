package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommand(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "miniogate-test"}
	RegisterFlags(cmd)
	return cmd
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegisterFlagsVisibleWithoutExecute(t *testing.T) {
	// Load reads through cmd.Flags(); every registered flag must be
	// resolvable there before the command is ever executed.
	cmd := testCommand(t)

	for _, name := range []string{
		"config", "listen", "log-level", "upstream-host",
		"upstream-port", "access-key", "secret-key", "bucket-name",
	} {
		assert.NotNilf(t, cmd.Flags().Lookup(name), "flag %q not registered on Flags()", name)
	}

	require.NoError(t, cmd.Flags().Set("access-key", "ak"))
	value, err := cmd.Flags().GetString("access-key")
	require.NoError(t, err)
	assert.Equal(t, "ak", value)
}

func TestLoadRequiresCredentials(t *testing.T) {
	cmd := testCommand(t)

	_, err := Load(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minio.access_key")

	require.NoError(t, cmd.Flags().Set("access-key", "minioadmin"))
	_, err = Load(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minio.secret_key")
}

func TestLoadFromFlags(t *testing.T) {
	cmd := testCommand(t)
	require.NoError(t, cmd.Flags().Set("access-key", "minioadmin"))
	require.NoError(t, cmd.Flags().Set("secret-key", "minioadmin-secret"))
	require.NoError(t, cmd.Flags().Set("upstream-host", "minio.internal"))
	require.NoError(t, cmd.Flags().Set("bucket-name", "backups"))

	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "minioadmin", cfg.Minio.AccessKey)
	assert.Equal(t, "minio.internal", cfg.Upstream.Host)
	assert.Equal(t, "backups", cfg.BucketName)

	// Defaults
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "us-east-1", cfg.Minio.Region)
	assert.Equal(t, "http", cfg.Upstream.Protocol)
	assert.Equal(t, 9000, cfg.Upstream.Port)
	assert.Equal(t, 30000, cfg.Timeout)
	assert.True(t, cfg.Metrics.Enable)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
listen: ":9090"
log_level: debug
upstream:
  protocol: https
  host: minio.example.com
  port: 9443
minio:
  access_key: minioadmin
  secret_key: minioadmin-secret
  region: eu-west-1
bucket_name: media
strip_path_pattern: "/files"
timeout: 5000
routes:
  - paths: ["/minio"]
    strip_path: true
  - paths: ["/archive", "/cold"]
    strip_path: false
metrics:
  enable: false
`)

	cmd := testCommand(t)
	require.NoError(t, cmd.Flags().Set("config", path))

	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https", cfg.Upstream.Protocol)
	assert.Equal(t, "minio.example.com", cfg.Upstream.Host)
	assert.Equal(t, 9443, cfg.Upstream.Port)
	assert.Equal(t, "eu-west-1", cfg.Minio.Region)
	assert.Equal(t, "media", cfg.BucketName)
	assert.Equal(t, "/files", cfg.StripPathPattern)
	assert.Equal(t, 5000, cfg.Timeout)
	assert.False(t, cfg.Metrics.Enable)

	require.Len(t, cfg.Routes, 2)
	assert.Equal(t, []string{"/minio"}, cfg.Routes[0].Paths)
	assert.True(t, cfg.Routes[0].StripPath)
	assert.Equal(t, []string{"/archive", "/cold"}, cfg.Routes[1].Paths)
	assert.False(t, cfg.Routes[1].StripPath)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MINIOGATE_MINIO_ACCESS_KEY", "env-access")
	t.Setenv("MINIOGATE_MINIO_SECRET_KEY", "env-secret")

	cfg, err := Load(testCommand(t))
	require.NoError(t, err)

	assert.Equal(t, "env-access", cfg.Minio.AccessKey)
	assert.Equal(t, "env-secret", cfg.Minio.SecretKey)
}

func TestLoadRejectsInvalidStripPattern(t *testing.T) {
	path := writeConfigFile(t, `
minio:
  access_key: ak
  secret_key: sk
strip_path_pattern: "[unclosed"
`)

	cmd := testCommand(t)
	require.NoError(t, cmd.Flags().Set("config", path))

	_, err := Load(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strip_path_pattern")
}

func TestLoadRejectsInvalidProtocol(t *testing.T) {
	path := writeConfigFile(t, `
upstream:
  protocol: ftp
minio:
  access_key: ak
  secret_key: sk
`)

	cmd := testCommand(t)
	require.NoError(t, cmd.Flags().Set("config", path))

	_, err := Load(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream.protocol")
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	path := writeConfigFile(t, `
minio:
  access_key: ak
  secret_key: sk
timeout: -1
`)

	cmd := testCommand(t)
	require.NoError(t, cmd.Flags().Set("config", path))

	_, err := Load(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}
