package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/config"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

func TestConfig_Validate_Defaults(t *testing.T) {
	t.Parallel()
	cfg := config.DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateWorker())
}

func TestConfig_Validate_Invalid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		mutate func(*config.Config)
		worker bool
		want   string
	}{
		{"log level", func(c *config.Config) { c.Log.Level = "loud" }, false, "log.level"},
		{"log format", func(c *config.Config) { c.Log.Format = "text" }, false, "log.format"},
		{"sampling mode", func(c *config.Config) { c.ConfGen.SamplingMode = "random" }, false, "sampling"},
		{"energy window", func(c *config.Config) { c.ConfGen.EnergyWindow = -1 }, false, "energy window"},
		{"empty library", func(c *config.Config) { c.Torsion.LibraryFiles = []string{" "} }, false, "library_files[0]"},
		{"replace without files", func(c *config.Config) { c.Torsion.ReplaceDefault = true }, false, "replace_default"},
		{"no brokers", func(c *config.Config) { c.Kafka.Consumer.Brokers = nil }, true, "brokers"},
		{"no producer brokers", func(c *config.Config) { c.Kafka.Producer.Brokers = nil }, true, "kafka.producer"},
		{"redis without addr", func(c *config.Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, true, "redis.addr"},
		{"minio without endpoint", func(c *config.Config) { c.MinIO.Enabled = true; c.MinIO.Endpoint = "" }, true, "minio.endpoint"},
		{"metrics without addr", func(c *config.Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, true, "metrics.addr"},
		{"concurrency", func(c *config.Config) { c.Worker.Concurrency = 0 }, true, "worker.concurrency"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.DefaultConfig()
			tc.mutate(cfg)
			var err error
			if tc.worker {
				assert.NoError(t, cfg.Validate())
				err = cfg.ValidateWorker()
			} else {
				err = cfg.Validate()
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeConfGenSettingsInvalid))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestConfGenConfig_ToSettings_Defaults(t *testing.T) {
	t.Parallel()
	s, err := config.DefaultConfig().ConfGen.ToSettings()
	require.NoError(t, err)
	assert.Equal(t, conformer.DefaultSettings(), s)
}

func TestConfGenConfig_ToSettings_Overrides(t *testing.T) {
	t.Parallel()
	cfg := config.DefaultConfig()
	off := false
	seed := int64(0)
	cfg.ConfGen.SamplingMode = "Stochastic"
	cfg.ConfGen.EnergyWindow = 4.5
	cfg.ConfGen.MaxNumOutputConformers = 7
	cfg.ConfGen.Timeout = time.Minute
	cfg.ConfGen.EnumerateRings = &off
	cfg.ConfGen.SampleHeteroAtomHydrogens = true
	cfg.ConfGen.RandomSeed = &seed

	s, err := cfg.ConfGen.ToSettings()
	require.NoError(t, err)
	assert.Equal(t, conformer.ModeStochastic, s.SamplingMode)
	assert.Equal(t, 4.5, s.EnergyWindow)
	assert.Equal(t, 7, s.MaxNumOutputConformers)
	assert.Equal(t, time.Minute, s.Timeout)
	assert.False(t, s.EnumerateRings)
	assert.True(t, s.SampleHeteroAtomHydrogens)
	assert.Zero(t, s.RandomSeed)
}

//Personal.AI order the ending
