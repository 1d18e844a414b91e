// Package conformer defines the wire-level Data Transfer Objects exchanged
// with the conformer generation worker: job requests consumed from the job
// topic and job results published to the result topic. Only plain data types
// live here so that producers outside this module can depend on them.
package conformer

import (
	"strings"
	"time"

	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// JobOutcome: how a job ended from the worker's point of view
// ─────────────────────────────────────────────────────────────────────────────

// JobOutcome classifies a finished job independently of the generation
// status code.
type JobOutcome string

const (
	// OutcomeGenerated means conformers were generated by this job.
	OutcomeGenerated JobOutcome = "generated"

	// OutcomeCached means the result was served from the result cache.
	OutcomeCached JobOutcome = "cached"

	// OutcomeFailed means the job could not produce a result, either because
	// the request was invalid or because generation reported a failure status.
	OutcomeFailed JobOutcome = "failed"
)

// IsValid reports whether o is a known outcome.
func (o JobOutcome) IsValid() bool {
	switch o {
	case OutcomeGenerated, OutcomeCached, OutcomeFailed:
		return true
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// SettingsOverride: per-job adjustments of the worker's default settings
// ─────────────────────────────────────────────────────────────────────────────

// SettingsOverride carries optional per-job settings. Nil fields keep the
// worker's configured value.
type SettingsOverride struct {
	SamplingMode           string   `json:"sampling_mode,omitempty"`
	EnergyWindow           *float64 `json:"energy_window,omitempty"`
	MinRMSD                *float64 `json:"min_rmsd,omitempty"`
	MaxNumOutputConformers *int     `json:"max_num_output_conformers,omitempty"`
	TimeoutSeconds         *int     `json:"timeout_seconds,omitempty"`
	RandomSeed             *int64   `json:"random_seed,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// JobRequest
// ─────────────────────────────────────────────────────────────────────────────

// JobRequest asks the worker to generate conformers for one molecule given as
// an MDL molfile block.
type JobRequest struct {
	JobID       string            `json:"job_id"`
	MolBlock    string            `json:"mol_block"`
	Settings    *SettingsOverride `json:"settings,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
	// SkipCache forces regeneration even when a cached result exists.
	SkipCache bool `json:"skip_cache,omitempty"`
	// ReplyTopic additionally receives the result, next to the shared result
	// topic.
	ReplyTopic string `json:"reply_topic,omitempty"`
}

// Validate checks the request fields that do not require parsing the
// molecule.
func (r *JobRequest) Validate() error {
	var problems []string
	if strings.TrimSpace(r.JobID) == "" {
		problems = append(problems, "job_id is required")
	}
	if strings.TrimSpace(r.MolBlock) == "" {
		problems = append(problems, "mol_block is required")
	}
	if s := r.Settings; s != nil {
		if s.EnergyWindow != nil && *s.EnergyWindow <= 0 {
			problems = append(problems, "energy_window must be positive")
		}
		if s.MinRMSD != nil && *s.MinRMSD < 0 {
			problems = append(problems, "min_rmsd must not be negative")
		}
		if s.MaxNumOutputConformers != nil && *s.MaxNumOutputConformers < 0 {
			problems = append(problems, "max_num_output_conformers must not be negative")
		}
		if s.TimeoutSeconds != nil && *s.TimeoutSeconds < 0 {
			problems = append(problems, "timeout_seconds must not be negative")
		}
	}
	if len(problems) > 0 {
		return errors.New(errors.ErrCodeConfGenJobInvalid, "invalid job request").
			WithDetail(strings.Join(problems, "; "))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// JobResult
// ─────────────────────────────────────────────────────────────────────────────

// JobResult summarises a finished job. The conformers themselves are stored
// as an SD file under ObjectKey.
type JobResult struct {
	JobID    string     `json:"job_id"`
	RunID    string     `json:"run_id,omitempty"`
	Molecule string     `json:"molecule"`
	Outcome  JobOutcome `json:"outcome"`

	// Status is the generation status code name, e.g. SUCCESS or TIMEOUT.
	Status        string    `json:"status,omitempty"`
	Mode          string    `json:"mode,omitempty"`
	NumConformers int       `json:"num_conformers"`
	Energies      []float64 `json:"energies,omitempty"`
	InputFallback bool      `json:"input_fallback,omitempty"`

	// ObjectKey locates the SD file in the result bucket; empty when no
	// conformers were produced.
	ObjectKey string `json:"object_key,omitempty"`

	// CacheKey identifies the molecule and settings combination.
	CacheKey string `json:"cache_key,omitempty"`

	ElapsedMS   int64     `json:"elapsed_ms"`
	Error       string    `json:"error,omitempty"`
	ErrorCode   string    `json:"error_code,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Succeeded reports whether the job produced conformers.
func (r *JobResult) Succeeded() bool {
	return r.Outcome != OutcomeFailed && r.NumConformers > 0
}

//Personal.AI order the ending
