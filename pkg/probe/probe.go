// Package probe runs the startup checks: store reachability and, when
// configured, the API key and assistant ID.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds a probe without its own Timeout.
const DefaultTimeout = 10 * time.Second

// CheckFunc returns nil when the checked dependency is usable.
type CheckFunc func(ctx context.Context) error

// Probe is one named startup check. A failing Critical probe aborts startup.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool
	Timeout  time.Duration
}

// Status is the verdict for one probe.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// Result is the outcome of one probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Status classifies the result. A non-critical probe whose input is simply
// not configured is skipped rather than failed.
func (r Result) Status() Status {
	switch {
	case r.Error == nil:
		return StatusPass
	case !r.Probe.Critical && errors.Is(r.Error, ErrNotConfigured):
		return StatusSkip
	default:
		return StatusFail
	}
}

// Run executes the probes in order, each under its own timeout.
func Run(ctx context.Context, probes []Probe) []Result {
	out := make([]Result, 0, len(probes))
	for _, p := range probes {
		out = append(out, runOne(ctx, p))
	}
	return out
}

func runOne(ctx context.Context, p Probe) Result {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := p.Check(checkCtx)
	return Result{Probe: p, Error: err, Duration: time.Since(start)}
}

// Summary counts results per status.
type Summary map[Status]int

// Summarize counts the results.
func Summarize(results []Result) Summary {
	s := Summary{}
	for _, r := range results {
		s[r.Status()]++
	}
	return s
}

// AnalyzeResults logs one line per probe and joins the errors of failed critical probes.
func AnalyzeResults(results []Result) error {
	var failed []error
	for _, r := range results {
		st := r.Status()
		line := fmt.Sprintf("[%s] %s", st, r.Probe.Name)
		elapsed := r.Duration.Round(time.Millisecond)
		switch st {
		case StatusPass:
			slog.Info(line, "took", elapsed)
		case StatusSkip:
			slog.Warn(line, "reason", r.Error)
		default:
			slog.Error(line, "took", elapsed, "error", r.Error)
			if r.Probe.Critical {
				failed = append(failed, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
			}
		}
	}

	sum := Summarize(results)
	slog.Info("Startup checks finished",
		"passed", sum[StatusPass], "skipped", sum[StatusSkip], "failed", sum[StatusFail])
	return errors.Join(failed...)
}
