package config

import (
	"time"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/messaging/kafka"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "confgen:"
	DefaultCacheTTL       = 24 * time.Hour
	DefaultNullCacheTTL   = time.Hour

	DefaultKafkaBroker        = "localhost:9092"
	DefaultKafkaGroupID       = "confgen-workers"
	DefaultKafkaPartitions    = 6
	DefaultKafkaReplication   = 1
	DefaultMinIOEndpoint      = "localhost:9000"
	DefaultMetricsAddr        = ":9091"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "confgen"
	DefaultWorkerConcurrency  = 1
	DefaultWorkerEventSource  = "confgen-worker"
	DefaultWorkerLockWait     = 10 * time.Minute
	DefaultWorkerShutdownWait = 30 * time.Second
)

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-value field in cfg. Values set by the caller
// are left unchanged so explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	applyConfGenDefaults(&cfg.ConfGen)

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" && len(cfg.Redis.SentinelAddrs) == 0 && len(cfg.Redis.ClusterAddrs) == 0 {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.CacheTTL == 0 {
		cfg.Redis.CacheTTL = DefaultCacheTTL
	}
	if cfg.Redis.NullCacheTTL == 0 {
		cfg.Redis.NullCacheTTL = DefaultNullCacheTTL
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Consumer.Brokers) == 0 {
		cfg.Kafka.Consumer.Brokers = []string{DefaultKafkaBroker}
	}
	if len(cfg.Kafka.Producer.Brokers) == 0 {
		cfg.Kafka.Producer.Brokers = cfg.Kafka.Consumer.Brokers
	}
	if cfg.Kafka.Consumer.GroupID == "" {
		cfg.Kafka.Consumer.GroupID = DefaultKafkaGroupID
	}
	if len(cfg.Kafka.Consumer.Topics) == 0 {
		cfg.Kafka.Consumer.Topics = []string{kafka.TopicConformerJobs}
	}
	if cfg.Kafka.Consumer.Retry.DeadLetterTopic == "" {
		cfg.Kafka.Consumer.Retry.DeadLetterTopic = kafka.TopicConformerDeadLetter
	}
	if cfg.Kafka.NumPartitions == 0 {
		cfg.Kafka.NumPartitions = DefaultKafkaPartitions
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = DefaultKafkaReplication
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.EventSource == "" {
		cfg.Worker.EventSource = DefaultWorkerEventSource
	}
	if cfg.Worker.LockWait == 0 {
		cfg.Worker.LockWait = DefaultWorkerLockWait
	}
	if cfg.Worker.ShutdownTimeout == 0 {
		cfg.Worker.ShutdownTimeout = DefaultWorkerShutdownWait
	}
}

func applyConfGenDefaults(c *ConfGenConfig) {
	if c.SamplingMode == "" {
		c.SamplingMode = conformer.ModeAuto.String()
	}
	if c.EnergyWindow == 0 {
		c.EnergyWindow = conformer.DefaultEnergyWindow
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = conformer.DefaultMaxPoolSize
	}
	if c.MaxFragmentPoolSize == 0 {
		c.MaxFragmentPoolSize = conformer.DefaultMaxFragmentPoolSize
	}
	if c.MinRMSD == 0 {
		c.MinRMSD = conformer.DefaultMinRMSD
	}
	if c.MaxNumOutputConformers == 0 {
		c.MaxNumOutputConformers = conformer.DefaultMaxNumOutputConformers
	}
	if c.Timeout == 0 {
		c.Timeout = conformer.DefaultTimeout
	}
	if c.ForceFieldType == "" {
		c.ForceFieldType = conformer.DefaultForceFieldType
	}
	if c.DielectricConstant == 0 {
		c.DielectricConstant = conformer.DefaultDielectricConstant
	}
	if c.DistanceExponent == 0 {
		c.DistanceExponent = conformer.DefaultDistanceExponent
	}
	if c.EnumerateRings == nil {
		on := true
		c.EnumerateRings = &on
	}
	if c.MacrocycleRotorBondThreshold == 0 {
		c.MacrocycleRotorBondThreshold = conformer.DefaultMacrocycleRotorBondCount
	}
	if c.AngleIncrement == 0 {
		c.AngleIncrement = conformer.DefaultAngleIncrement
	}
	if c.MaxFragmentCombinations == 0 {
		c.MaxFragmentCombinations = conformer.DefaultMaxFragmentCombinations
	}
	if c.MaxNumSampledConformers == 0 {
		c.MaxNumSampledConformers = conformer.DefaultMaxNumSampledConformers
	}
	if c.ConvergenceCheckCycleSize == 0 {
		c.ConvergenceCheckCycleSize = conformer.DefaultConvergenceCheckCycleSize
	}
	if c.ConvergenceRatio == 0 {
		c.ConvergenceRatio = conformer.DefaultConvergenceRatio
	}
	if c.RefinementIterations == 0 {
		c.RefinementIterations = conformer.DefaultMaxNumRefinementIterations
	}
	if c.RefinementTolerance == 0 {
		c.RefinementTolerance = conformer.DefaultRefinementTolerance
	}
	if c.RandomSeed == nil {
		seed := int64(conformer.DefaultRandomSeed)
		c.RandomSeed = &seed
	}
}

//Personal.AI order the ending
