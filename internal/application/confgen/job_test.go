package confgen

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/database/redis"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/messaging/kafka"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/molfile"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/storage/minio"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/testutil"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
	dto "github.com/molinfo-vienna/CDPKit-sub014/pkg/types/conformer"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
	fail    error
}

func newMemoryStore() *memoryStore { return &memoryStore{objects: map[string][]byte{}} }

func (m *memoryStore) Upload(_ context.Context, req *minio.UploadRequest) (*minio.UploadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	m.uploads++
	m.objects[req.ObjectKey] = req.Data
	return &minio.UploadResult{ObjectKey: req.ObjectKey, Size: int64(len(req.Data))}, nil
}

func (m *memoryStore) Download(_ context.Context, key string) (*minio.DownloadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, minio.ErrObjectNotFound
	}
	return &minio.DownloadResult{Data: data, Size: int64(len(data))}, nil
}

func (m *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) List(context.Context, string, int) ([]*minio.ObjectMetadata, error) {
	return nil, nil
}

func (m *memoryStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "mem://" + key, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	msgs      []*kafka.ProducerMessage
	batches   int
	fail      error
	failTopic string
}

func (p *recordingPublisher) PublishBatch(_ context.Context, msgs []*kafka.ProducerMessage) (*kafka.BatchPublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return nil, p.fail
	}
	p.batches++
	out := &kafka.BatchPublishResult{}
	for i, m := range msgs {
		if m.Topic == p.failTopic {
			out.Failed++
			out.Errors = append(out.Errors, kafka.BatchItemError{Index: i, Topic: m.Topic, Error: kafka.ErrPublishFailed})
			continue
		}
		out.Succeeded++
		p.msgs = append(p.msgs, m)
	}
	return out, nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo.Map(p.msgs, func(m *kafka.ProducerMessage, _ int) string { return m.Topic })
}

// results decodes the messages written to the shared result topic.
func (p *recordingPublisher) results(t *testing.T) []dto.JobResult {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]dto.JobResult, 0, len(p.msgs))
	for _, m := range p.msgs {
		if m.Topic != kafka.TopicConformerResults {
			continue
		}
		env, err := kafka.MessageToEventEnvelope(&kafka.Message{Value: m.Value})
		require.NoError(t, err)
		assert.Equal(t, kafka.EventJobCompleted, env.EventType)
		var r dto.JobResult
		require.NoError(t, env.DecodePayload(&r))
		assert.Equal(t, r.JobID, string(m.Key))
		out = append(out, r)
	}
	return out
}

type recordingJobMetrics struct {
	mu      sync.Mutex
	jobs    []string
	hits    int
	misses  int
	uploads int
	runs    int

	published     []string
	publishFailed []string
}

func (m *recordingJobMetrics) ObserveJob(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, outcome)
}

func (m *recordingJobMetrics) RecordCacheAccess(_ string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *recordingJobMetrics) RecordUpload(int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
}

func (m *recordingJobMetrics) RecordPublish(topic string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.publishFailed = append(m.publishFailed, topic)
		return
	}
	m.published = append(m.published, topic)
}

func (m *recordingJobMetrics) TrackRun() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	return func() {}
}

type jobFixture struct {
	svc       *JobService
	store     *memoryStore
	publisher *recordingPublisher
	metrics   *recordingJobMetrics
	mr        *miniredis.Miniredis
}

func newJobFixture(t *testing.T, opts ...JobOption) *jobFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.RedisConfig{Mode: "standalone", Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	f := &jobFixture{
		store:     newMemoryStore(),
		publisher: &recordingPublisher{},
		metrics:   &recordingJobMetrics{},
		mr:        mr,
	}
	s := conformer.DefaultSettings()
	s.MaxNumOutputConformers = 5
	base := []JobOption{
		WithJobLogger(testutil.NewMockLogger()),
		WithResultCache(redis.NewRedisCache(client, logging.NewNopLogger()), time.Hour),
		WithLocks(redis.NewLockFactory(client, logging.NewNopLogger())),
		WithResultStore(f.store),
		WithPublisher(f.publisher),
		WithJobMetrics(f.metrics),
	}
	f.svc, err = NewJobService(s, append(base, opts...)...)
	require.NoError(t, err)
	return f
}

func molBlock(t *testing.T, mol *molecule.Molecule) string {
	t.Helper()
	var buf bytes.Buffer
	w := molfile.NewWriter(&buf, molfile.WithClock(func() time.Time { return time.Unix(0, 0).UTC() }))
	require.NoError(t, w.Write(mol, nil))
	require.NoError(t, w.Flush())
	return buf.String()
}

func TestJobService_GenerateThenServeFromCache(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	block := molBlock(t, testutil.Butane())

	first, err := f.svc.Process(ctx, &dto.JobRequest{JobID: "j1", MolBlock: block})
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeGenerated, first.Outcome)
	assert.Equal(t, "SUCCESS", first.Status)
	assert.Equal(t, "butane", first.Molecule)
	require.Positive(t, first.NumConformers)
	assert.LessOrEqual(t, first.NumConformers, 5)
	assert.Len(t, first.Energies, first.NumConformers)
	assert.Equal(t, minio.ResultKey(first.CacheKey), first.ObjectKey)

	stored, err := f.store.Download(ctx, first.ObjectKey)
	require.NoError(t, err)
	mols, err := molfile.ReadAll(bytes.NewReader(stored.Data))
	require.NoError(t, err)
	require.Len(t, mols, first.NumConformers)
	e, ok := molfile.ParseEnergy(mols[0])
	require.True(t, ok)
	assert.InDelta(t, first.Energies[0], e, 1e-4)

	second, err := f.svc.Process(ctx, &dto.JobRequest{JobID: "j2", MolBlock: strings.ReplaceAll(block, "\n", "\r\n")})
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeCached, second.Outcome)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.Energies, second.Energies)
	assert.Equal(t, first.ObjectKey, second.ObjectKey)
	assert.Equal(t, 1, f.store.uploads)

	results := f.publisher.results(t)
	require.Len(t, results, 2)
	assert.Equal(t, "j1", results[0].JobID)
	assert.Equal(t, dto.OutcomeCached, results[1].Outcome)
	assert.Equal(t, []string{"generated", "cached"}, f.metrics.jobs)
	assert.Equal(t, 1, f.metrics.hits)
	assert.Equal(t, 1, f.metrics.runs)
}

func TestJobService_PurgeCache(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	block := molBlock(t, testutil.Ethanol())

	first, err := f.svc.Process(ctx, &dto.JobRequest{JobID: "a", MolBlock: block})
	require.NoError(t, err)
	assert.True(t, f.mr.Exists("confgen:result:"+first.CacheKey))
	require.NoError(t, f.mr.Set("confgen:lock:other", "held"))

	n, err := f.svc.PurgeCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, f.mr.Exists("confgen:result:"+first.CacheKey))
	assert.True(t, f.mr.Exists("confgen:lock:other"), "locks are not cache entries")

	again, err := f.svc.Process(ctx, &dto.JobRequest{JobID: "b", MolBlock: block})
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeGenerated, again.Outcome)
	assert.Equal(t, 2, f.metrics.runs)

	svc, err := NewJobService(conformer.DefaultSettings())
	require.NoError(t, err)
	n, err = svc.PurgeCache(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJobService_SkipCacheRegenerates(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	block := molBlock(t, testutil.Ethanol())

	_, err := f.svc.Process(ctx, &dto.JobRequest{JobID: "a", MolBlock: block})
	require.NoError(t, err)
	res, err := f.svc.Process(ctx, &dto.JobRequest{JobID: "b", MolBlock: block, SkipCache: true})
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeGenerated, res.Outcome)
	assert.Equal(t, 2, f.store.uploads)
	assert.Equal(t, 2, f.metrics.runs)
}

func TestJobService_SettingsChangeCacheKey(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	block := molBlock(t, testutil.Ethanol())
	window := 3.0

	a, err := f.svc.Process(ctx, &dto.JobRequest{JobID: "a", MolBlock: block})
	require.NoError(t, err)
	b, err := f.svc.Process(ctx, &dto.JobRequest{JobID: "b", MolBlock: block, Settings: &dto.SettingsOverride{EnergyWindow: &window}})
	require.NoError(t, err)
	assert.NotEqual(t, a.CacheKey, b.CacheKey)
	assert.Equal(t, dto.OutcomeGenerated, b.Outcome)
}

func TestJobService_InvalidRequests(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	res, err := f.svc.Process(ctx, &dto.JobRequest{JobID: "empty"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfGenJobInvalid))
	assert.Equal(t, dto.OutcomeFailed, res.Outcome)
	assert.Equal(t, string(errors.ErrCodeConfGenJobInvalid), res.ErrorCode)

	_, err = f.svc.Process(ctx, &dto.JobRequest{JobID: "garbage", MolBlock: "x\n\n\nnot a counts line\n"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeInvalidFormat))

	_, err = f.svc.Process(ctx, &dto.JobRequest{JobID: "mode", MolBlock: molBlock(t, testutil.Ethanol()),
		Settings: &dto.SettingsOverride{SamplingMode: "exhaustive"}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfGenJobInvalid))

	_, err = f.svc.Process(ctx, nil)
	assert.Error(t, err)

	results := f.publisher.results(t)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, dto.OutcomeFailed, r.Outcome)
		assert.NotEmpty(t, r.Error)
	}
	assert.Zero(t, f.store.uploads)
}

func TestJobService_FailureIsNegativelyCached(t *testing.T) {
	f := newJobFixture(t, WithGeneratorOptions(WithParameterizer(failingParameterizer{})))
	ctx := context.Background()
	block := molBlock(t, testutil.Butane())

	res, err := f.svc.Process(ctx, &dto.JobRequest{JobID: "a", MolBlock: block})
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfGenResultNotFound))
	assert.Equal(t, "FORCEFIELD_SETUP_FAILED", res.Status)
	assert.Equal(t, dto.OutcomeFailed, res.Outcome)

	_, err = f.svc.Process(ctx, &dto.JobRequest{JobID: "b", MolBlock: block})
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfGenResultNotFound))
	assert.Equal(t, 1, f.metrics.runs, "second job must not regenerate")
}

func TestJobService_UploadFailureIsNotCached(t *testing.T) {
	f := newJobFixture(t)
	f.store.fail = minio.ErrInvalidRequest
	ctx := context.Background()
	block := molBlock(t, testutil.Ethanol())

	_, err := f.svc.Process(ctx, &dto.JobRequest{JobID: "a", MolBlock: block})
	require.Error(t, err)

	f.store.fail = nil
	res, err := f.svc.Process(ctx, &dto.JobRequest{JobID: "b", MolBlock: block})
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeGenerated, res.Outcome)
}

func TestJobService_PublishFailure(t *testing.T) {
	f := newJobFixture(t)
	f.publisher.fail = kafka.ErrProducerClosed

	res, err := f.svc.Process(context.Background(), &dto.JobRequest{JobID: "a", MolBlock: molBlock(t, testutil.Ethanol())})
	assert.ErrorIs(t, err, kafka.ErrProducerClosed)
	assert.Equal(t, dto.OutcomeGenerated, res.Outcome)
	assert.Equal(t, []string{kafka.TopicConformerResults}, f.metrics.publishFailed)
}

func TestJobService_ReplyTopic(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	block := molBlock(t, testutil.Ethanol())

	_, err := f.svc.Process(ctx, &dto.JobRequest{JobID: "a", MolBlock: block, ReplyTopic: "client.replies"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.publisher.batches, "result and reply go out in one batch")
	assert.Equal(t, []string{kafka.TopicConformerResults, "client.replies"}, f.publisher.topics())

	_, err = f.svc.Process(ctx, &dto.JobRequest{JobID: "b", MolBlock: block, ReplyTopic: kafka.TopicConformerResults})
	require.NoError(t, err)
	assert.Len(t, f.publisher.topics(), 3, "the shared topic is not written twice")
	assert.Len(t, f.publisher.results(t), 2)
	assert.Equal(t, []string{kafka.TopicConformerResults, "client.replies", kafka.TopicConformerResults}, f.metrics.published)
}

func TestJobService_ReplyTopicFailure(t *testing.T) {
	f := newJobFixture(t)
	f.publisher.failTopic = "client.replies"

	res, err := f.svc.Process(context.Background(), &dto.JobRequest{JobID: "a", MolBlock: molBlock(t, testutil.Ethanol()), ReplyTopic: "client.replies"})
	assert.ErrorIs(t, err, kafka.ErrPublishFailed)
	assert.Equal(t, dto.OutcomeGenerated, res.Outcome)
	assert.Len(t, f.publisher.results(t), 1)
	assert.Equal(t, []string{"client.replies"}, f.metrics.publishFailed)
}

func TestJobService_WithoutInfrastructure(t *testing.T) {
	svc, err := NewJobService(conformer.DefaultSettings())
	require.NoError(t, err)
	res, err := svc.Process(context.Background(), &dto.JobRequest{JobID: "a", MolBlock: molBlock(t, testutil.Ethanol())})
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeGenerated, res.Outcome)
	assert.Empty(t, res.ObjectKey)
	assert.Equal(t, 1, res.NumConformers)
}

func TestJobService_HandleMessage(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	env, err := kafka.NewEventEnvelope(kafka.EventJobRequested, "test", dto.JobRequest{JobID: "m1", MolBlock: molBlock(t, testutil.Ethanol())})
	require.NoError(t, err)
	msg, err := env.ToMessage(kafka.TopicConformerJobs, "m1")
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleMessage(ctx, &kafka.Message{Topic: msg.Topic, Key: msg.Key, Value: msg.Value}))

	other, err := kafka.NewEventEnvelope(kafka.EventJobCompleted, "test", dto.JobResult{JobID: "x"})
	require.NoError(t, err)
	otherMsg, err := other.ToMessage(kafka.TopicConformerJobs, "x")
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleMessage(ctx, &kafka.Message{Value: otherMsg.Value}))

	bad, err := kafka.NewEventEnvelope(kafka.EventJobRequested, "test", dto.JobRequest{JobID: "bad"})
	require.NoError(t, err)
	badMsg, err := bad.ToMessage(kafka.TopicConformerJobs, "bad")
	require.NoError(t, err)
	assert.NoError(t, f.svc.HandleMessage(ctx, &kafka.Message{Value: badMsg.Value}), "invalid jobs are not retried")

	assert.NoError(t, f.svc.HandleMessage(ctx, &kafka.Message{Value: []byte("{")}))

	results := f.publisher.results(t)
	require.Len(t, results, 2)
	assert.Equal(t, "m1", results[0].JobID)
	assert.Equal(t, dto.OutcomeGenerated, results[0].Outcome)
	assert.Equal(t, dto.OutcomeFailed, results[1].Outcome)
}

func TestApplyOverride(t *testing.T) {
	base := conformer.DefaultSettings()
	s, err := ApplyOverride(base, nil)
	require.NoError(t, err)
	assert.Equal(t, base, s)

	window, rmsd, out, timeout, seed := 4.0, 0.25, 7, 12, int64(9)
	s, err = ApplyOverride(base, &dto.SettingsOverride{
		SamplingMode:           "stochastic",
		EnergyWindow:           &window,
		MinRMSD:                &rmsd,
		MaxNumOutputConformers: &out,
		TimeoutSeconds:         &timeout,
		RandomSeed:             &seed,
	})
	require.NoError(t, err)
	assert.Equal(t, conformer.ModeStochastic, s.SamplingMode)
	assert.Equal(t, 4.0, s.EnergyWindow)
	assert.Equal(t, 0.25, s.MinRMSD)
	assert.Equal(t, 7, s.MaxNumOutputConformers)
	assert.Equal(t, 12*time.Second, s.Timeout)
	assert.Equal(t, int64(9), s.RandomSeed)

	zero := 0.0
	_, err = ApplyOverride(base, &dto.SettingsOverride{EnergyWindow: &zero})
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfGenJobInvalid))
}

func TestCacheKey(t *testing.T) {
	s := conformer.DefaultSettings()
	block := "mol\n  prog\n\n  0  0  0  0  0  0  0  0  0  0999 V2000\nM  END\n"
	assert.Equal(t, CacheKey(block, s), CacheKey(strings.ReplaceAll(block, "\n", "  \r\n"), s))
	assert.Len(t, CacheKey(block, s), 64)

	s2 := s
	s2.RandomSeed++
	assert.NotEqual(t, CacheKey(block, s), CacheKey(block, s2))
	assert.NotEqual(t, CacheKey(block, s), CacheKey(block+"extra\n", s))
}

//Personal.AI order the ending
