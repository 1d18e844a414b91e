// Package config defines the configuration structures of the conformer
// generation CLI and worker. Parsing lives in loader.go and defaults in
// defaults.go; this file holds plain data types and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/database/redis"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/messaging/kafka"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/prometheus"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/storage/minio"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ConfGenConfig mirrors conformer.Settings with file-friendly names.
// Pointer fields distinguish "unset" from an explicit zero.
type ConfGenConfig struct {
	SamplingMode           string        `mapstructure:"sampling_mode"` // "auto" | "systematic" | "stochastic"
	EnergyWindow           float64       `mapstructure:"energy_window"`
	MaxPoolSize            int           `mapstructure:"max_pool_size"`
	MaxFragmentPoolSize    int           `mapstructure:"max_fragment_pool_size"`
	MinRMSD                float64       `mapstructure:"min_rmsd"`
	MaxNumOutputConformers int           `mapstructure:"max_output_conformers"`
	Timeout                time.Duration `mapstructure:"timeout"`

	ForceFieldType         string  `mapstructure:"force_field"`
	StrictParameterization bool    `mapstructure:"strict_parameterization"`
	DielectricConstant     float64 `mapstructure:"dielectric_constant"`
	DistanceExponent       float64 `mapstructure:"distance_exponent"`

	EnumerateRings               *bool `mapstructure:"enumerate_rings"`
	SampleHeteroAtomHydrogens    bool  `mapstructure:"sample_hetero_atom_hydrogens"`
	EnumerateNitrogenInvertomers bool  `mapstructure:"enumerate_nitrogen_invertomers"`
	MacrocycleRotorBondThreshold int   `mapstructure:"macrocycle_rotor_bond_threshold"`

	SampleAngleToleranceRanges bool    `mapstructure:"sample_angle_tolerance_ranges"`
	AngleIncrement             float64 `mapstructure:"angle_increment"`
	MaxFragmentCombinations    int     `mapstructure:"max_fragment_combinations"`

	MaxNumSampledConformers   int     `mapstructure:"max_sampled_conformers"`
	ConvergenceCheckCycleSize int     `mapstructure:"convergence_check_cycle_size"`
	ConvergenceRatio          float64 `mapstructure:"convergence_ratio"`

	RefinementIterations int     `mapstructure:"refinement_iterations"`
	RefinementTolerance  float64 `mapstructure:"refinement_tolerance"`

	IncludeInputCoordinates        bool `mapstructure:"include_input_coordinates"`
	GenerateCoordinatesFromScratch bool `mapstructure:"generate_from_scratch"`

	// RandomSeed 0 seeds from the clock.
	RandomSeed *int64 `mapstructure:"random_seed"`
}

// TorsionConfig lists YAML torsion rule libraries consulted before the
// built-in rules.
type TorsionConfig struct {
	LibraryFiles []string `mapstructure:"library_files"`
	// ReplaceDefault drops the built-in library when files are given.
	ReplaceDefault bool `mapstructure:"replace_default"`
}

// RedisConfig configures the result cache and the per-molecule job locks.
type RedisConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	redis.RedisConfig `mapstructure:",squash"`
	KeyPrefix         string        `mapstructure:"key_prefix"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	NullCacheTTL      time.Duration `mapstructure:"null_cache_ttl"`
}

// KafkaConfig configures the job consumer and the result producer.
type KafkaConfig struct {
	Producer          kafka.ProducerConfig `mapstructure:"producer"`
	Consumer          kafka.ConsumerConfig `mapstructure:"consumer"`
	EnsureTopics      bool                 `mapstructure:"ensure_topics"`
	NumPartitions     int                  `mapstructure:"num_partitions"`
	ReplicationFactor int                  `mapstructure:"replication_factor"`
}

// StorageConfig configures the SD file result store.
type StorageConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	minio.MinIOConfig `mapstructure:",squash"`
}

// MetricsConfig configures the Prometheus endpoint of the worker.
type MetricsConfig struct {
	Enabled                    bool   `mapstructure:"enabled"`
	Addr                       string `mapstructure:"addr"`
	Path                       string `mapstructure:"path"`
	prometheus.CollectorConfig `mapstructure:",squash"`
}

// WorkerConfig holds job-worker execution parameters.
type WorkerConfig struct {
	// Concurrency is the number of consumer loops sharing the group.
	Concurrency     int           `mapstructure:"concurrency"`
	EventSource     string        `mapstructure:"event_source"`
	LockWait        time.Duration `mapstructure:"lock_wait"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure. The CLI reads Log, ConfGen and
// Torsion; the worker reads everything.
type Config struct {
	Log     logging.LogConfig `mapstructure:"log"`
	ConfGen ConfGenConfig     `mapstructure:"confgen"`
	Torsion TorsionConfig     `mapstructure:"torsion"`
	Redis   RedisConfig       `mapstructure:"redis"`
	Kafka   KafkaConfig       `mapstructure:"kafka"`
	MinIO   StorageConfig     `mapstructure:"minio"`
	Metrics MetricsConfig     `mapstructure:"metrics"`
	Worker  WorkerConfig      `mapstructure:"worker"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Conversion
// ─────────────────────────────────────────────────────────────────────────────

// ToSettings converts the generator section into validated settings.
func (c ConfGenConfig) ToSettings() (conformer.Settings, error) {
	mode, err := conformer.ParseSamplingMode(c.SamplingMode)
	if err != nil {
		return conformer.Settings{}, errors.Wrap(err, errors.ErrCodeConfGenSettingsInvalid, "confgen.sampling_mode")
	}
	s := conformer.DefaultSettings()
	s.SamplingMode = mode
	s.EnergyWindow = c.EnergyWindow
	s.MaxPoolSize = c.MaxPoolSize
	s.MaxFragmentPoolSize = c.MaxFragmentPoolSize
	s.MinRMSD = c.MinRMSD
	s.MaxNumOutputConformers = c.MaxNumOutputConformers
	s.Timeout = c.Timeout
	s.ForceFieldType = c.ForceFieldType
	s.StrictForceFieldParameterization = c.StrictParameterization
	s.DielectricConstant = c.DielectricConstant
	s.DistanceExponent = c.DistanceExponent
	if c.EnumerateRings != nil {
		s.EnumerateRings = *c.EnumerateRings
	}
	s.SampleHeteroAtomHydrogens = c.SampleHeteroAtomHydrogens
	s.EnumerateNitrogenInvertomers = c.EnumerateNitrogenInvertomers
	s.MacrocycleRotorBondCountThreshold = c.MacrocycleRotorBondThreshold
	s.SampleAngleToleranceRanges = c.SampleAngleToleranceRanges
	s.DefaultAngleIncrement = c.AngleIncrement
	s.MaxFragmentCombinations = c.MaxFragmentCombinations
	s.MaxNumSampledConformers = c.MaxNumSampledConformers
	s.ConvergenceCheckCycleSize = c.ConvergenceCheckCycleSize
	s.ConvergenceRatio = c.ConvergenceRatio
	s.MaxNumRefinementIterations = c.RefinementIterations
	s.RefinementTolerance = c.RefinementTolerance
	s.IncludeInputCoordinates = c.IncludeInputCoordinates
	s.GenerateCoordinatesFromScratch = c.GenerateCoordinatesFromScratch
	if c.RandomSeed != nil {
		s.RandomSeed = *c.RandomSeed
	}
	if err := s.Validate(); err != nil {
		return conformer.Settings{}, err
	}
	return s, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate checks the sections needed by the CLI.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format %q is invalid; expected json|console", c.Log.Format)
	}
	if _, err := c.ConfGen.ToSettings(); err != nil {
		return err
	}
	for i, f := range c.Torsion.LibraryFiles {
		if strings.TrimSpace(f) == "" {
			return invalid("torsion.library_files[%d] is empty", i)
		}
	}
	if c.Torsion.ReplaceDefault && len(c.Torsion.LibraryFiles) == 0 {
		return invalid("torsion.replace_default requires at least one library file")
	}
	return nil
}

// ValidateWorker additionally checks the infrastructure sections.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := kafka.ValidateConsumerConfig(c.Kafka.Consumer); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfGenSettingsInvalid, "kafka.consumer")
	}
	if err := kafka.ValidateProducerConfig(c.Kafka.Producer); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfGenSettingsInvalid, "kafka.producer")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" && len(c.Redis.SentinelAddrs) == 0 && len(c.Redis.ClusterAddrs) == 0 {
		return invalid("redis.addr is required when redis is enabled")
	}
	if c.Redis.DB < 0 {
		return invalid("redis.db must be >= 0, got %d", c.Redis.DB)
	}
	if c.MinIO.Enabled && c.MinIO.Endpoint == "" {
		return invalid("minio.endpoint is required when minio is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return invalid("metrics.addr is required when metrics are enabled")
	}
	if c.Worker.Concurrency < 1 {
		return invalid("worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.New(errors.ErrCodeConfGenSettingsInvalid, "invalid configuration").
		WithDetail(fmt.Sprintf(format, args...))
}

//Personal.AI order the ending
