package confgen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/database/redis"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/messaging/kafka"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/molfile"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/storage/minio"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/fragtree"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/torsion"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
	dto "github.com/molinfo-vienna/CDPKit-sub014/pkg/types/conformer"
)

const (
	resultCacheName     = "results"
	defaultResultTTL    = 24 * time.Hour
	defaultEventSource  = "confgen-worker"
	cacheKeyVersion     = "v1"
	resultKeyPrefix     = "result:"
	lockTTLFactor       = 2
	minimumLockTTL      = time.Minute
	defaultLockWaitTime = 10 * time.Minute
)

// ResultCache is the part of redis.Cache used for job results.
type ResultCache interface {
	GetOrLoad(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// JobMetrics receives worker pipeline observations.
type JobMetrics interface {
	ObserveJob(outcome string, elapsed time.Duration)
	RecordCacheAccess(cache string, hit bool)
	RecordUpload(size int64, err error)
	RecordPublish(topic string, err error)
	TrackRun() func()
}

type noopJobMetrics struct{}

func (noopJobMetrics) ObserveJob(string, time.Duration) {}
func (noopJobMetrics) RecordCacheAccess(string, bool)   {}
func (noopJobMetrics) RecordUpload(int64, error)        {}
func (noopJobMetrics) RecordPublish(string, error)      {}
func (noopJobMetrics) TrackRun() func()                 { return func() {} }

// cachedResult is what the result cache holds per molecule and settings.
type cachedResult struct {
	RunID         string    `json:"run_id"`
	Molecule      string    `json:"molecule"`
	Status        string    `json:"status"`
	Mode          string    `json:"mode"`
	Energies      []float64 `json:"energies"`
	InputFallback bool      `json:"input_fallback"`
	ObjectKey     string    `json:"object_key"`
}

// errNotCacheable marks interrupted runs whose output depends on timing.
var errNotCacheable = errors.New(errors.ErrCodeTimeout, "interrupted result is not cached")

// JobService runs generation jobs received from the job topic: it parses the
// molecule, serves repeated requests from the result cache, stores the
// ensemble as an SD file and publishes a result summary.
type JobService struct {
	settings  conformer.Settings
	genOpts   []Option
	libs      []*torsion.Library
	angles    fragtree.AngleResolver
	cache     ResultCache
	cacheTTL  time.Duration
	locks     redis.LockFactory
	store     minio.ResultRepository
	publisher kafka.BatchPublisher
	metrics   JobMetrics
	logger    logging.Logger
	source    string
	lockWait  time.Duration
}

type JobOption func(*JobService)

func WithResultCache(c ResultCache, ttl time.Duration) JobOption {
	return func(s *JobService) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithLocks(f redis.LockFactory) JobOption { return func(s *JobService) { s.locks = f } }

func WithResultStore(r minio.ResultRepository) JobOption { return func(s *JobService) { s.store = r } }

// WithPublisher sets where job results are written.
func WithPublisher(p kafka.BatchPublisher) JobOption { return func(s *JobService) { s.publisher = p } }

func WithJobMetrics(m JobMetrics) JobOption { return func(s *JobService) { s.metrics = m } }

func WithJobLogger(l logging.Logger) JobOption { return func(s *JobService) { s.logger = l } }

// WithGeneratorOptions passes options to every per-job Generator.
func WithGeneratorOptions(opts ...Option) JobOption {
	return func(s *JobService) { s.genOpts = append(s.genOpts, opts...) }
}

// WithTorsionLibraries replaces the built-in torsion rules; see
// LoadTorsionLibraries for keeping them as a fallback.
func WithTorsionLibraries(libs ...*torsion.Library) JobOption {
	return func(s *JobService) { s.libs = append(s.libs, libs...) }
}

func WithEventSource(name string) JobOption { return func(s *JobService) { s.source = name } }

// WithLockWait bounds how long a job waits for another worker generating the
// same molecule.
func WithLockWait(d time.Duration) JobOption {
	return func(s *JobService) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

// NewJobService validates the base settings. Cache, locks, store and
// publisher are optional.
func NewJobService(settings conformer.Settings, opts ...JobOption) (*JobService, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	s := &JobService{
		settings: settings,
		cacheTTL: defaultResultTTL,
		metrics:  noopJobMetrics{},
		logger:   logging.NewNopLogger(),
		source:   defaultEventSource,
		lockWait: defaultLockWaitTime,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.Named("jobs")
	s.angles = NewAngleSource(settings, s.logger, s.libs...)
	return s, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Message handling
// ─────────────────────────────────────────────────────────────────────────────

// HandleMessage is the kafka.MessageHandler for the job topic. Invalid jobs
// are answered with a failed result and not retried.
func (s *JobService) HandleMessage(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		s.logger.Warn("dropping undecodable job message", logging.Int64("offset", msg.Offset), logging.Err(err))
		return nil
	}
	if env.EventType != kafka.EventJobRequested {
		s.logger.Debug("ignoring event", logging.String("event_type", env.EventType))
		return nil
	}
	var req dto.JobRequest
	if err := env.DecodePayload(&req); err != nil {
		s.logger.Warn("dropping job with bad payload", logging.String("event_id", env.EventID), logging.Err(err))
		return nil
	}
	_, err = s.Process(ctx, &req)
	if err != nil && errors.IsInputError(errors.GetCode(err)) {
		return nil
	}
	return err
}

// Process runs one job and publishes its result. The returned error is set
// when the job failed or the result could not be delivered; the result is
// returned in both cases when one was built.
func (s *JobService) Process(ctx context.Context, req *dto.JobRequest) (*dto.JobResult, error) {
	if req == nil {
		return nil, errors.New(errors.ErrCodeConfGenJobInvalid, "nil job request")
	}
	start := time.Now()
	log := s.logger.With(logging.JobID(req.JobID))

	res, err := s.process(ctx, req, log)
	res.JobID = req.JobID
	res.ElapsedMS = time.Since(start).Milliseconds()
	res.CompletedAt = time.Now().UTC()
	if err != nil {
		res.Outcome = dto.OutcomeFailed
		res.Error = err.Error()
		res.ErrorCode = errors.GetCode(err).String()
		log.Warn("job failed", logging.Err(err))
	}
	s.metrics.ObserveJob(string(res.Outcome), time.Since(start))

	if pubErr := s.publish(ctx, res, req.ReplyTopic); pubErr != nil {
		log.Error("cannot publish job result", logging.Err(pubErr))
		if err == nil {
			err = pubErr
		}
	}
	log.Info("job finished",
		logging.String("outcome", string(res.Outcome)),
		logging.String("status", res.Status),
		logging.Int("conformers", res.NumConformers),
		logging.Int64("elapsed_ms", res.ElapsedMS))
	return res, err
}

func (s *JobService) process(ctx context.Context, req *dto.JobRequest, log logging.Logger) (*dto.JobResult, error) {
	res := &dto.JobResult{}
	if err := req.Validate(); err != nil {
		return res, err
	}
	mol, err := molfile.ParseMolBlock(req.MolBlock)
	if err != nil {
		return res, err
	}
	res.Molecule = mol.Name
	settings, err := ApplyOverride(s.settings, req.Settings)
	if err != nil {
		return res, err
	}
	key := CacheKey(req.MolBlock, settings)
	res.CacheKey = key

	var fresh *cachedResult
	loader := func(ctx context.Context) (interface{}, error) {
		cr, err := s.generate(ctx, mol, settings, key, log)
		if err != nil {
			return nil, err
		}
		fresh = cr
		switch {
		case isInterrupted(cr.Status):
			return nil, errNotCacheable
		case len(cr.Energies) == 0:
			return nil, nil
		}
		return cr, nil
	}

	var cached cachedResult
	switch {
	case s.cache == nil:
		_, err = loader(ctx)
	case req.SkipCache:
		_, err = loader(ctx)
		if err == nil && fresh != nil && len(fresh.Energies) > 0 {
			if setErr := s.cache.Set(ctx, resultKeyPrefix+key, fresh, s.cacheTTL); setErr != nil {
				log.Warn("cannot refresh cached result", logging.Err(setErr))
			}
		}
	default:
		var hit bool
		hit, err = s.cache.GetOrLoad(ctx, resultKeyPrefix+key, &cached, s.cacheTTL, loader)
		s.metrics.RecordCacheAccess(resultCacheName, hit)
		if err == nil && fresh == nil {
			fresh = &cached
			res.Outcome = dto.OutcomeCached
		}
	}
	if fresh == nil {
		switch {
		case errors.Is(err, redis.ErrCacheMiss):
			// Another job found no conformers for this input.
			return res, errors.New(errors.ErrCodeConfGenResultNotFound, "no conformers for this input (cached)")
		case err != nil:
			return res, err
		}
		return res, errors.Internal("job produced no result")
	}

	res.RunID = fresh.RunID
	res.Status = fresh.Status
	res.Mode = fresh.Mode
	res.Energies = fresh.Energies
	res.NumConformers = len(fresh.Energies)
	res.InputFallback = fresh.InputFallback
	res.ObjectKey = fresh.ObjectKey
	if res.Outcome == "" {
		res.Outcome = dto.OutcomeGenerated
	}
	if res.NumConformers == 0 {
		return res, errors.New(errors.ErrCodeConfGenResultNotFound, "no conformers generated").WithDetail(fresh.Status)
	}
	return res, nil
}

// generate runs the generator under the per-key lock and uploads the
// ensemble.
func (s *JobService) generate(ctx context.Context, mol *molecule.Molecule, settings conformer.Settings, key string, log logging.Logger) (*cachedResult, error) {
	if s.locks != nil {
		ttl := max(minimumLockTTL, lockTTLFactor*settings.Timeout)
		lock := s.locks.NewMutex(key, redis.WithLockTTL(ttl), redis.WithWatchdog(true))
		lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
		err := lock.Lock(lockCtx)
		cancel()
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Unlock(context.Background()); err != nil {
				log.Warn("cannot release job lock", logging.Err(err))
			}
		}()
	}

	opts := append([]Option{WithLogger(s.logger), WithAngleSource(s.angles)}, s.genOpts...)
	gen, err := NewGenerator(settings, opts...)
	if err != nil {
		return nil, err
	}
	done := s.metrics.TrackRun()
	out, err := gen.Generate(ctx, mol)
	done()
	if err != nil {
		return nil, err
	}
	cr := &cachedResult{
		RunID:         out.RunID,
		Molecule:      out.Molecule,
		Status:        out.Status.String(),
		Mode:          out.Mode.String(),
		Energies:      lo.Map(out.Conformers, func(c conformer.Data, _ int) float64 { return c.Energy }),
		InputFallback: out.InputFallback,
	}
	if len(out.Conformers) == 0 || s.store == nil {
		return cr, nil
	}

	data, err := molfile.MarshalConformers(mol, out.Conformers)
	if err != nil {
		return nil, err
	}
	objectKey := minio.ResultKey(key)
	_, err = s.store.Upload(ctx, &minio.UploadRequest{
		ObjectKey:   objectKey,
		Data:        data,
		ContentType: minio.ContentTypeSDF,
		Metadata:    map[string]string{"run-id": out.RunID, "status": cr.Status, "conformers": fmt.Sprint(len(out.Conformers))},
	})
	s.metrics.RecordUpload(int64(len(data)), err)
	if err != nil {
		return nil, err
	}
	cr.ObjectKey = objectKey
	return cr, nil
}

// publish writes the result to the shared result topic and, when the job
// names one, to its reply topic in the same batch.
func (s *JobService) publish(ctx context.Context, res *dto.JobResult, replyTopic string) error {
	if s.publisher == nil {
		return nil
	}
	env, err := kafka.NewEventEnvelope(kafka.EventJobCompleted, s.source, res)
	if err != nil {
		return err
	}
	topics := []string{kafka.TopicConformerResults}
	if replyTopic != "" && replyTopic != kafka.TopicConformerResults {
		topics = append(topics, replyTopic)
	}
	msgs := make([]*kafka.ProducerMessage, 0, len(topics))
	for _, topic := range topics {
		msg, err := env.ToMessage(topic, res.JobID)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	out, err := s.publisher.PublishBatch(ctx, msgs)
	if err != nil {
		for _, topic := range topics {
			s.metrics.RecordPublish(topic, err)
		}
		return err
	}
	failed := make(map[int]error, len(out.Errors))
	for _, e := range out.Errors {
		if e.Index < 0 {
			for i := range topics {
				failed[i] = e.Error
			}
			break
		}
		failed[e.Index] = e.Error
	}
	for i, topic := range topics {
		s.metrics.RecordPublish(topic, failed[i])
	}
	return out.Err()
}

// PurgeCache drops every cached job result, so the next request for any
// molecule is generated again. It returns the number of removed entries.
func (s *JobService) PurgeCache(ctx context.Context) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	n, err := s.cache.DeleteByPrefix(ctx, resultKeyPrefix)
	if err != nil {
		return n, errors.Wrap(err, errors.ErrCodeCacheError, "cannot purge result cache")
	}
	s.logger.Info("result cache purged", logging.Int64("entries", n))
	return n, nil
}

func isInterrupted(status string) bool {
	rc, ok := conformer.ParseReturnCode(status)
	return ok && rc.Interrupted()
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings and keys
// ─────────────────────────────────────────────────────────────────────────────

// ApplyOverride returns base with the override's non-nil fields applied.
func ApplyOverride(base conformer.Settings, o *dto.SettingsOverride) (conformer.Settings, error) {
	s := base
	if o == nil {
		return s, nil
	}
	if o.SamplingMode != "" {
		mode, err := conformer.ParseSamplingMode(o.SamplingMode)
		if err != nil {
			return s, errors.Wrap(err, errors.ErrCodeConfGenJobInvalid, "invalid sampling mode")
		}
		s.SamplingMode = mode
	}
	if o.EnergyWindow != nil {
		s.EnergyWindow = *o.EnergyWindow
	}
	if o.MinRMSD != nil {
		s.MinRMSD = *o.MinRMSD
	}
	if o.MaxNumOutputConformers != nil {
		s.MaxNumOutputConformers = *o.MaxNumOutputConformers
	}
	if o.TimeoutSeconds != nil {
		s.Timeout = time.Duration(*o.TimeoutSeconds) * time.Second
	}
	if o.RandomSeed != nil {
		s.RandomSeed = *o.RandomSeed
	}
	if err := s.Validate(); err != nil {
		return base, errors.Wrap(err, errors.ErrCodeConfGenJobInvalid, "invalid settings override")
	}
	return s, nil
}

// CacheKey digests the molecule block, with line endings and trailing
// whitespace normalised, together with every setting.
func CacheKey(molBlock string, s conformer.Settings) string {
	lines := strings.Split(strings.ReplaceAll(molBlock, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%+v", cacheKeyVersion, strings.TrimRight(strings.Join(lines, "\n"), "\n"), s)
	return hex.EncodeToString(h.Sum(nil))
}

//Personal.AI order the ending
