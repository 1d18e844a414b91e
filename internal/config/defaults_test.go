package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/messaging/kafka"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, conformer.DefaultEnergyWindow, cfg.ConfGen.EnergyWindow)
	assert.True(t, *cfg.ConfGen.EnumerateRings)
	assert.Equal(t, int64(conformer.DefaultRandomSeed), *cfg.ConfGen.RandomSeed)
	assert.Equal(t, []string{kafka.TopicConformerJobs}, cfg.Kafka.Consumer.Topics)
	assert.Equal(t, cfg.Kafka.Consumer.Brokers, cfg.Kafka.Producer.Brokers)
	assert.Equal(t, kafka.TopicConformerDeadLetter, cfg.Kafka.Consumer.Retry.DeadLetterTopic)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
	assert.Equal(t, DefaultCacheTTL, cfg.Redis.CacheTTL)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.ConfGen.EnergyWindow = 3
	cfg.Kafka.Consumer.Brokers = []string{"kafka-1:9092"}
	cfg.Redis.CacheTTL = time.Minute
	ApplyDefaults(cfg)

	assert.Equal(t, 3.0, cfg.ConfGen.EnergyWindow)
	assert.Equal(t, []string{"kafka-1:9092"}, cfg.Kafka.Producer.Brokers)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

//Personal.AI order the ending
