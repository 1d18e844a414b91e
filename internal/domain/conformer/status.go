package conformer

import (
	"context"
	stderrors "errors"
	"time"
)

// ReturnCode is the outcome of a generation stage.
type ReturnCode int

const (
	Success ReturnCode = iota
	Timeout
	Aborted
	ForceFieldSetupFailed
	ConfGenFailed
	TorsionDrivingFailed
)

var returnCodeNames = map[ReturnCode]string{
	Success:               "SUCCESS",
	Timeout:               "TIMEOUT",
	Aborted:               "ABORTED",
	ForceFieldSetupFailed: "FORCEFIELD_SETUP_FAILED",
	ConfGenFailed:         "CONF_GEN_FAILED",
	TorsionDrivingFailed:  "TORSION_DRIVING_FAILED",
}

func (c ReturnCode) String() string {
	if s, ok := returnCodeNames[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseReturnCode is the inverse of String.
func ParseReturnCode(s string) (ReturnCode, bool) {
	for c, name := range returnCodeNames {
		if name == s {
			return c, true
		}
	}
	return 0, false
}

// OK reports whether the code is Success.
func (c ReturnCode) OK() bool { return c == Success }

// Interrupted reports whether the code stems from a timeout or an abort.
func (c ReturnCode) Interrupted() bool { return c == Timeout || c == Aborted }

// AbortFunc is polled between work units; returning true stops generation.
type AbortFunc func() bool

// Control bundles the cancellation sources of one run: a context, an optional
// abort callback and a wall-clock deadline.
type Control struct {
	ctx      context.Context
	abort    AbortFunc
	deadline time.Time
}

// NewControl creates a Control. A zero timeout means no deadline besides the
// one carried by ctx.
func NewControl(ctx context.Context, abort AbortFunc, timeout time.Duration) *Control {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Control{ctx: ctx, abort: abort}
	if timeout > 0 {
		c.deadline = time.Now().Add(timeout)
	}
	return c
}

// Check returns Success, Aborted or Timeout.
func (c *Control) Check() ReturnCode {
	if c == nil {
		return Success
	}
	if err := c.ctx.Err(); err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return Timeout
		}
		return Aborted
	}
	if c.abort != nil && c.abort() {
		return Aborted
	}
	if !c.deadline.IsZero() && time.Now().After(c.deadline) {
		return Timeout
	}
	return Success
}

// Context returns the run context.
func (c *Control) Context() context.Context {
	if c == nil {
		return context.Background()
	}
	return c.ctx
}

//Personal.AI order the ending
