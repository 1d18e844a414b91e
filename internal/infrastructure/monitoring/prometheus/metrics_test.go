package prometheus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

func TestConfGenMetrics_ObserveRun(t *testing.T) {
	c := newTestCollector(t)
	m := NewConfGenMetrics(c)

	m.ObserveRun("systematic", "SUCCESS", 2*time.Second, 12)
	m.ObserveRun("systematic", "SUCCESS", time.Second, 3)
	m.ObserveRun("stochastic", "TIMEOUT", time.Minute, 0)
	m.AddFragmentCombinations(40)
	m.AddFragmentCombinations(0)
	m.AddSampledConformers(25)
	m.AddSampledConformers(-1)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_runs_total{mode="systematic",status="SUCCESS"} 2`)
	assert.Contains(t, out, `test_unit_runs_total{mode="stochastic",status="TIMEOUT"} 1`)
	assert.Contains(t, out, `test_unit_run_duration_seconds_sum{mode="systematic"} 3`)
	assert.Contains(t, out, `test_unit_run_duration_seconds_count{mode="stochastic"} 1`)
	assert.Contains(t, out, `test_unit_output_conformers_sum{mode="systematic"} 15`)
	assert.Contains(t, out, "test_unit_fragment_combinations_total 40")
	assert.Contains(t, out, "test_unit_sampled_conformers_total 25")
}

func TestConfGenMetrics_TrackRun(t *testing.T) {
	c := newTestCollector(t)
	m := NewConfGenMetrics(c)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := m.TrackRun()
			done()
		}()
	}
	wg.Wait()
	release := m.TrackRun()
	assert.Contains(t, scrapeMetrics(t, c), "test_unit_active_runs 1")
	release()
	assert.Contains(t, scrapeMetrics(t, c), "test_unit_active_runs 0")
}

func TestConfGenMetrics_Pipeline(t *testing.T) {
	c := newTestCollector(t)
	m := NewConfGenMetrics(c)

	m.ObserveJob("completed", time.Second)
	m.RecordCacheAccess("result", true)
	m.RecordCacheAccess("result", false)
	m.RecordCacheAccess("result", false)
	m.RecordUpload(2048, nil)
	m.RecordUpload(0, errors.Internal("down"))
	m.RecordPublish("confgen.results", nil)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_jobs_total{outcome="completed"} 1`)
	assert.Contains(t, out, `test_unit_cache_requests_total{cache="result",result="hit"} 1`)
	assert.Contains(t, out, `test_unit_cache_requests_total{cache="result",result="miss"} 2`)
	assert.Contains(t, out, `test_unit_storage_uploads_total{status="ok"} 1`)
	assert.Contains(t, out, `test_unit_storage_uploads_total{status="error"} 1`)
	assert.Contains(t, out, "test_unit_storage_upload_bytes_sum 2048")
	assert.Contains(t, out, `test_unit_messages_published_total{status="ok",topic="confgen.results"} 1`)
}

func TestNewConfGenMetrics_Twice(t *testing.T) {
	c := newTestCollector(t)
	NewConfGenMetrics(c).ObserveJob("completed", time.Second)
	NewConfGenMetrics(c).ObserveJob("completed", time.Second)

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_jobs_total{outcome="completed"} 2`)
}

//Personal.AI order the ending
