package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

const validConfigYAML = `
log:
  level: debug
  format: console
confgen:
  sampling_mode: systematic
  energy_window: 8.5
  max_output_conformers: 25
  timeout: 90s
  enumerate_rings: false
  random_seed: 7
torsion:
  library_files: ["rules/extra.yaml"]
redis:
  enabled: true
  addr: "redis:6379"
  cache_ttl: 2h
kafka:
  consumer:
    brokers: ["kafka-1:9092", "kafka-2:9092"]
    group_id: "confgen"
minio:
  enabled: true
  endpoint: "minio:9000"
  bucket: "ensembles"
metrics:
  enabled: true
  namespace: "cg"
worker:
  concurrency: 4
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "systematic", cfg.ConfGen.SamplingMode)
	assert.Equal(t, 8.5, cfg.ConfGen.EnergyWindow)
	assert.Equal(t, 90*time.Second, cfg.ConfGen.Timeout)
	require.NotNil(t, cfg.ConfGen.EnumerateRings)
	assert.False(t, *cfg.ConfGen.EnumerateRings)
	assert.Equal(t, int64(7), *cfg.ConfGen.RandomSeed)
	assert.Equal(t, []string{"rules/extra.yaml"}, cfg.Torsion.LibraryFiles)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Redis.CacheTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Producer.Brokers)
	assert.Equal(t, "ensembles", cfg.MinIO.Bucket)
	assert.Equal(t, "cg", cfg.Metrics.Namespace)
	assert.Equal(t, 4, cfg.Worker.Concurrency)

	s, err := cfg.ConfGen.ToSettings()
	require.NoError(t, err)
	assert.Equal(t, 25, s.MaxNumOutputConformers)
	assert.False(t, s.EnumerateRings)
	assert.NoError(t, cfg.ValidateWorker())
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfGenSettingsInvalid))
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "confgen: ["))
	assert.Error(t, err)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "confgen:\n  energy_window: -2\n"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfGenSettingsInvalid))
}

func TestLoad_EnvOverride(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	t.Setenv("CONFGEN_CONFGEN_ENERGY_WINDOW", "3.25")
	t.Setenv("CONFGEN_REDIS_ADDR", "cache:6380")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3.25, cfg.ConfGen.EnergyWindow)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFGEN_CONFGEN_MIN_RMSD", "0.75")
	t.Setenv("CONFGEN_KAFKA_CONSUMER_GROUP_ID", "env-group")
	t.Setenv("CONFGEN_WORKER_CONCURRENCY", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.75, cfg.ConfGen.MinRMSD)
	assert.Equal(t, "env-group", cfg.Kafka.Consumer.GroupID)
	assert.Equal(t, 3, cfg.Worker.Concurrency)
	assert.Nil(t, cfg.Torsion.LibraryFiles)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
}

func TestWatch(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	changed := make(chan *Config, 4)
	require.NoError(t, Watch(path, func(c *Config) { changed <- c }, nil))

	updated := []byte("confgen:\n  energy_window: 2.5\n")
	require.NoError(t, os.WriteFile(path, updated, 0o644))

	select {
	case c := <-changed:
		assert.Equal(t, 2.5, c.ConfGen.EnergyWindow)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), func(*Config) {}, nil)
	assert.Error(t, err)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yaml")) })
}

//Personal.AI order the ending
