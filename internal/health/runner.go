package health

import (
	"context"
	"fmt"
	"time"

	"github.com/kebairia/opsctl/internal/logger"
)

const defaultCheckTimeout = 10 * time.Second

// CheckFn evaluates one system property. It may return several results
// (one per service, one per mount). An error return is downgraded to a
// single WARN result by the runner; a check never aborts the report.
type CheckFn func(ctx context.Context) ([]Result, error)

// Check pairs a named CheckFn with its mode.
type Check struct {
	Name     string
	FullOnly bool
	Fn       CheckFn
}

// Runner executes an ordered list of checks and aggregates the results.
type Runner struct {
	checks  []Check
	timeout time.Duration
	log     logger.Logger
}

// NewRunner builds a runner over the given checks. Registration order is
// report order. timeout bounds each individual check; zero means the
// default of 10s.
func NewRunner(checks []Check, timeout time.Duration, log logger.Logger) *Runner {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	if log == nil {
		log = logger.Global()
	}
	return &Runner{checks: checks, timeout: timeout, log: log}
}

// Run executes every check selected by mode and returns the report.
// Checks only read system state; Run never mutates anything.
func (r *Runner) Run(ctx context.Context, mode Mode) Report {
	report := Report{Results: make([]Result, 0, len(r.checks))}
	for _, check := range r.checks {
		if check.FullOnly && mode != ModeFull {
			continue
		}
		results := r.runOne(ctx, check)
		report.Results = append(report.Results, results...)
	}
	return report
}

type checkOutcome struct {
	results []Result
	err     error
}

// runOne executes a single check with a timeout and panic guard. Any
// failure mode collapses to one WARN result so the rest of the report
// still gets produced.
func (r *Runner) runOne(ctx context.Context, check Check) []Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan checkOutcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- checkOutcome{err: fmt.Errorf("check panicked: %v", rec)}
			}
		}()
		results, err := check.Fn(ctx)
		done <- checkOutcome{results: results, err: err}
	}()

	select {
	case outcome := <-done:
		if outcome.err != nil {
			r.log.Warn("check failed", "check", check.Name, "error", outcome.err.Error())
			return []Result{{
				Name:    check.Name,
				Status:  StatusWarn,
				Message: fmt.Sprintf("check failed: %v", outcome.err),
			}}
		}
		return outcome.results
	case <-ctx.Done():
		r.log.Warn("check timed out", "check", check.Name, "timeout", r.timeout.String())
		return []Result{{
			Name:    check.Name,
			Status:  StatusWarn,
			Message: "check timed out",
		}}
	}
}
