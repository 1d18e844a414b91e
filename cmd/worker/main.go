// Command worker consumes conformer generation jobs from Kafka, caches results
// in Redis, uploads SD files to MinIO and publishes result messages.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/application/confgen"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/config"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/database/redis"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/messaging/kafka"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/prometheus"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/storage/minio"
	ops "github.com/molinfo-vienna/CDPKit-sub014/internal/interfaces/http"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/interfaces/http/handlers"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/interfaces/http/middleware"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	purgeCache := flag.Bool("purge-cache", false, "drop all cached job results before consuming")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.ValidateWorker()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(2)
	}

	logger, level, err := logging.NewLeveledLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *configPath, *purgeCache, logger, level); err != nil {
		logger.Error("worker stopped with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

// workerInfrastructure owns every connection the worker opens.
type workerInfrastructure struct {
	redis    *redis.Client
	minio    *minio.MinIOClient
	producer *kafka.Producer
	closers  []func() error
}

func (w *workerInfrastructure) Close(logger logging.Logger) {
	for i := len(w.closers) - 1; i >= 0; i-- {
		if err := w.closers[i](); err != nil {
			logger.Warn("close failed", logging.Err(err))
		}
	}
}

func initWorkerInfrastructure(ctx context.Context, cfg *config.Config, logger logging.Logger) (*workerInfrastructure, error) {
	infra := &workerInfrastructure{}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(&cfg.Redis.RedisConfig, logger.Named("redis"))
		if err != nil {
			return infra, err
		}
		infra.redis = client
		infra.closers = append(infra.closers, client.Close)
	}

	if cfg.MinIO.Enabled {
		client, err := minio.NewMinIOClient(&cfg.MinIO.MinIOConfig, logger.Named("minio"))
		if err != nil {
			return infra, err
		}
		infra.minio = client
		infra.closers = append(infra.closers, client.Close)
	}

	if cfg.Kafka.EnsureTopics {
		tm, err := kafka.NewTopicManager(cfg.Kafka.Consumer.Brokers, logger.Named("kafka"))
		if err != nil {
			return infra, err
		}
		err = tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg.Kafka.NumPartitions, cfg.Kafka.ReplicationFactor))
		_ = tm.Close()
		if err != nil {
			return infra, err
		}
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Producer, logger.Named("producer"))
	if err != nil {
		return infra, err
	}
	infra.producer = producer
	infra.closers = append(infra.closers, producer.Close)
	return infra, nil
}

func buildJobService(cfg *config.Config, infra *workerInfrastructure, metrics *prometheus.ConfGenMetrics, logger logging.Logger) (*confgen.JobService, error) {
	settings, err := cfg.ConfGen.ToSettings()
	if err != nil {
		return nil, err
	}
	libs, err := confgen.LoadTorsionLibraries(cfg.Torsion.LibraryFiles, cfg.Torsion.ReplaceDefault)
	if err != nil {
		return nil, err
	}

	opts := []confgen.JobOption{
		confgen.WithJobLogger(logger),
		confgen.WithPublisher(infra.producer),
		confgen.WithTorsionLibraries(libs...),
		confgen.WithEventSource(cfg.Worker.EventSource),
		confgen.WithLockWait(cfg.Worker.LockWait),
		confgen.WithGeneratorOptions(confgen.WithLogger(logger.Named("generator"))),
	}
	if metrics != nil {
		opts = append(opts,
			confgen.WithJobMetrics(metrics),
			confgen.WithGeneratorOptions(confgen.WithMetrics(metrics)))
	}
	if infra.redis != nil {
		cache := redis.NewRedisCache(infra.redis, logger.Named("cache"),
			redis.WithPrefix(cfg.Redis.KeyPrefix),
			redis.WithDefaultTTL(cfg.Redis.CacheTTL),
			redis.WithNullCacheTTL(cfg.Redis.NullCacheTTL))
		opts = append(opts,
			confgen.WithResultCache(cache, cfg.Redis.CacheTTL),
			confgen.WithLocks(redis.NewLockFactory(infra.redis, logger.Named("locks"))))
	}
	if infra.minio != nil {
		opts = append(opts, confgen.WithResultStore(minio.NewResultRepository(infra.minio, logger.Named("store"))))
	}
	return confgen.NewJobService(settings, opts...)
}

func healthChecks(infra *workerInfrastructure) []handlers.HealthChecker {
	var checks []handlers.HealthChecker
	if infra.redis != nil {
		checks = append(checks, handlers.NewCheck("redis", infra.redis.Ping))
	}
	if infra.minio != nil {
		checks = append(checks, handlers.NewCheck("minio", func(ctx context.Context) error {
			_, err := infra.minio.HealthCheck(ctx)
			return err
		}))
	}
	return checks
}

func run(ctx context.Context, cfg *config.Config, configPath string, purgeCache bool, logger logging.Logger, level zap.AtomicLevel) error {
	infra, err := initWorkerInfrastructure(ctx, cfg, logger)
	defer infra.Close(logger)
	if err != nil {
		return err
	}

	var (
		collector *prometheus.Collector
		metrics   *prometheus.ConfGenMetrics
	)
	if cfg.Metrics.Enabled {
		collector, err = prometheus.NewMetricsCollector(cfg.Metrics.CollectorConfig, logger.Named("metrics"))
		if err != nil {
			return err
		}
		metrics = prometheus.NewConfGenMetrics(collector)
	}

	svc, err := buildJobService(cfg, infra, metrics, logger)
	if err != nil {
		return err
	}
	if purgeCache {
		if infra.redis == nil {
			logger.Warn("cache purge requested but redis is disabled")
		} else if _, err := svc.PurgeCache(ctx); err != nil {
			return err
		}
	}

	consumers := make([]*kafka.Consumer, 0, cfg.Worker.Concurrency)
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		c, err := kafka.NewConsumer(cfg.Kafka.Consumer, logger.Named("consumer").With(logging.Int("loop", i)))
		if err != nil {
			for _, prev := range consumers {
				_ = prev.Close()
			}
			return err
		}
		for _, topic := range cfg.Kafka.Consumer.Topics {
			c.Subscribe(topic, svc.HandleMessage)
		}
		consumers = append(consumers, c)
	}

	if configPath != "" {
		err := config.Watch(configPath, func(next *config.Config) {
			level.SetLevel(logging.ParseLevel(next.Log.Level))
			logger.Info("configuration reloaded", logging.String("log_level", next.Log.Level))
		}, func(err error) {
			logger.Warn("configuration reload rejected", logging.Err(err))
		})
		if err != nil {
			logger.Warn("configuration watch disabled", logging.Err(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		router := ops.NewRouter(ops.RouterConfig{
			HealthHandler:    handlers.NewHealthHandler(version, healthChecks(infra)...),
			MetricsCollector: collector,
			MetricsPath:      cfg.Metrics.Path,
			Logger:           logger.Named("http"),
			Logging:          middleware.DefaultLoggingConfig(),
		})
		srv := ops.NewServer(cfg.Metrics.Addr, router, logger)
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
			defer cancel()
			return srv.Stop(shutdownCtx)
		})
	}

	for _, c := range consumers {
		c := c
		g.Go(func() error {
			defer func() { _ = c.Close() }()
			return c.Run(gctx)
		})
	}

	logger.Info("worker started",
		logging.Int("consumers", len(consumers)),
		logging.Any("topics", cfg.Kafka.Consumer.Topics),
		logging.Bool("cache", infra.redis != nil),
		logging.Bool("store", infra.minio != nil))

	return g.Wait()
}

//Personal.AI order the ending
