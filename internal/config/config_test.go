package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/s3conform/internal/config"
	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
client_config:
  endpoint_url: http://127.0.0.1:9000
  region_name: us-east-1
  use_ssl: false
  connect_timeout: 5s
  signature_version: s3v4
identities:
  admin:
    aws_access_key_id: AK
    aws_secret_access_key: SK
  anonymous:
xmind_buckets: [failed, pass]
concurrency: 0
suite_filters:
  includes: ["CreateBucket"]
report_store:
  kind: redis
  addr: 127.0.0.1:6379
  ttl: 1h
teardown:
  operation: DeleteObjects
  clientName: admin
  parameters:
    Bucket: ${Bucket}
`

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "s3", cfg.ClientConfig.Driver, "driver keeps its default")
	assert.Equal(t, 5*time.Second, cfg.ClientConfig.ConnectTimeout)
	assert.False(t, cfg.ClientConfig.UseSSL)
	assert.Equal(t, "s3v4", cfg.ClientConfig.Extra["signature_version"])
	assert.Equal(t, "AK", cfg.Identities["admin"]["aws_access_key_id"])
	assert.NotNil(t, cfg.Identities[domain.AnonymousIdentity])
	assert.Equal(t, []string{domain.BucketFailed, domain.BucketPass}, cfg.XMindBuckets)
	assert.Equal(t, 5, cfg.Concurrency, "non-positive concurrency falls back")
	assert.Equal(t, []string{"CreateBucket"}, cfg.SuiteFilters.Includes)
	assert.Equal(t, time.Hour, cfg.ReportStore.TTL)
	assert.Equal(t, "suites", cfg.SuitesDir)
	assert.True(t, cfg.HideEnabled)
	assert.True(t, cfg.LoadYAMLSuites)

	tc, err := cfg.TeardownCase()
	require.NoError(t, err)
	assert.Equal(t, "DeleteObjects", tc.Operation)
	assert.Equal(t, domain.AdminIdentity, tc.ClientIdentity)
	assert.Equal(t, "${Bucket}", tc.Parameters["Bucket"])
}

func TestParse_RequiredKeys(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"missing client_config", "identities: {admin: {}}", "client_config"},
		{"missing identities", "client_config: {}", "identities"},
		{"empty identities", "client_config: {}\nidentities: {}", "identities"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.doc))
			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestParse_InvalidValues(t *testing.T) {
	doc := `
client_config: {driver: s3}
identities: {admin: {}}
xmind_buckets: [MAYBE]
report_store: {kind: file}
`
	_, err := config.Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown bucket MAYBE")
	assert.Contains(t, err.Error(), "report_store.path")
}

func TestClientConfig_Properties(t *testing.T) {
	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)

	props := cfg.ClientConfig.Properties()
	assert.Equal(t, "http://127.0.0.1:9000", props["endpoint_url"])
	assert.Equal(t, "5s", props["connect_timeout"])
	assert.Equal(t, "s3v4", props["signature_version"])
	assert.NotContains(t, props, "read_timeout")
}

func TestResolvePath(t *testing.T) {
	t.Setenv(config.EnvPath, "")
	assert.Equal(t, config.DefaultPath, config.ResolvePath(""))

	t.Setenv(config.EnvPath, "/etc/s3conform.yaml")
	assert.Equal(t, "/etc/s3conform.yaml", config.ResolvePath(""))
	assert.Equal(t, "flag.yaml", config.ResolvePath("flag.yaml"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.ReportStore.Kind)

	_, err = config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
