// Package replication runs independent replications of the clinic network and
// reduces their statistics into confidence intervals.
//
// Each replication owns a private sim.Simulator and VariateSource derived from
// (base seed, index). Replications share only the immutable *sim.Params, so the
// map step runs on a bounded worker pool and the reduce step is a pure function
// of the snapshots sorted by replication index.
package replication

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/clinic-sim/clinic-sim/sim"
	"github.com/clinic-sim/clinic-sim/sim/trace"
)

// DefaultConfidence is the confidence level used when Options.Confidence is zero.
const DefaultConfidence = 0.95

// Options controls a batch of replications.
type Options struct {
	BaseSeed     int64
	Replications int     // must be >= 1
	Workers      int     // <= 0 means GOMAXPROCS
	Confidence   float64 // in (0, 1); 0 means DefaultConfidence
	Method       CIMethod
	TraceLevel   trace.TraceLevel // per-replication trace; "" or none disables
}

// ReplicationError reports the failure of a single replication.
type ReplicationError struct {
	Index int
	Key   sim.SimulationKey
	Err   error
}

func (e *ReplicationError) Error() string {
	return fmt.Sprintf("replication %d (seed %d): %v", e.Index, e.Key.BaseSeed, e.Err)
}

func (e *ReplicationError) Unwrap() error { return e.Err }

// Result holds the outcome of Run.
type Result struct {
	// Snapshots of the successful replications, sorted by replication index.
	Snapshots []*sim.Snapshot
	// Failed lists the replications that returned an error, sorted by index.
	Failed []*ReplicationError
	// Skipped counts replications never started because the context was cancelled.
	Skipped int
	// Traces maps replication index to its trace when tracing is enabled.
	Traces map[int]*trace.SimulationTrace
	// Summary is the aggregate over Snapshots; nil when no replication succeeded.
	Summary *Summary
}

// Runner executes replications of one parameter set.
type Runner struct {
	params *sim.Params
	opts   Options

	// simOptions adds engine options per replication index. Used by tests.
	simOptions func(index int) []sim.Option
}

// NewRunner validates opts before any work is done.
func NewRunner(params *sim.Params, opts Options) (*Runner, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: params must not be nil", sim.ErrInvalidParameter)
	}
	if opts.Replications < 1 {
		return nil, fmt.Errorf("%w: replications must be >= 1, got %d", sim.ErrInvalidParameter, opts.Replications)
	}
	if opts.Confidence == 0 {
		opts.Confidence = DefaultConfidence
	}
	if !(opts.Confidence > 0 && opts.Confidence < 1) {
		return nil, fmt.Errorf("%w: confidence must be in (0, 1), got %v", sim.ErrInvalidParameter, opts.Confidence)
	}
	if opts.Method == "" {
		opts.Method = CIMethodNormal
	}
	if !IsValidCIMethod(string(opts.Method)) {
		return nil, fmt.Errorf("%w: unknown ci method %q", sim.ErrInvalidParameter, opts.Method)
	}
	if !trace.IsValidTraceLevel(string(opts.TraceLevel)) {
		return nil, fmt.Errorf("%w: unknown trace level %q", sim.ErrInvalidParameter, opts.TraceLevel)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{params: params, opts: opts}, nil
}

// Options returns the effective options after defaults were applied.
func (r *Runner) Options() Options { return r.opts }

// Run executes every replication and aggregates the successful ones.
// A failing replication does not stop the others. Cancelling ctx abandons
// replications that have not started yet; Run then returns the partial result
// together with the context error. Run also fails when no replication succeeded.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	logrus.Infof("Starting %d replications (seed %d, %d workers)", r.opts.Replications, r.opts.BaseSeed, r.opts.Workers)
	started := time.Now()

	var (
		mu      sync.Mutex
		snaps   []*sim.Snapshot
		failed  []*ReplicationError
		traces  map[int]*trace.SimulationTrace
		skipped int
	)
	notStarted := 0
	if r.tracing() {
		traces = make(map[int]*trace.SimulationTrace, r.opts.Replications)
	}

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i := 0; i < r.opts.Replications; i++ {
		if ctx.Err() != nil {
			notStarted = r.opts.Replications - i
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			snap, st, err := r.runOne(i)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, err)
				return nil
			}
			snaps = append(snaps, snap)
			if st != nil {
				traces[i] = st
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are collected above
	skipped += notStarted

	slices.SortFunc(snaps, func(a, b *sim.Snapshot) int { return a.Key.Replication - b.Key.Replication })
	slices.SortFunc(failed, func(a, b *ReplicationError) int { return a.Index - b.Index })
	res := &Result{Snapshots: snaps, Failed: failed, Skipped: skipped, Traces: traces}

	logrus.Infof("Finished %d/%d replications in %s (%d failed, %d skipped)",
		len(snaps), r.opts.Replications, time.Since(started).Round(time.Millisecond), len(failed), skipped)

	if len(snaps) > 0 {
		summary, err := Aggregate(snaps, r.opts.Confidence, r.opts.Method)
		if err != nil {
			return res, err
		}
		res.Summary = summary
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("replications cancelled: %w", err)
	}
	if len(snaps) == 0 {
		errs := make([]error, len(failed))
		for i, f := range failed {
			errs[i] = f
		}
		return res, fmt.Errorf("all %d replications failed: %w", len(failed), errors.Join(errs...))
	}
	return res, nil
}

func (r *Runner) tracing() bool {
	return r.opts.TraceLevel != "" && r.opts.TraceLevel != trace.TraceLevelNone
}

// runOne executes replication i. Panics from broken node invariants are
// converted into a ReplicationError so the other replications can finish.
func (r *Runner) runOne(i int) (snap *sim.Snapshot, st *trace.SimulationTrace, rerr *ReplicationError) {
	key := sim.NewSimulationKey(r.opts.BaseSeed, i)
	defer func() {
		if p := recover(); p != nil {
			snap, st = nil, nil
			rerr = &ReplicationError{Index: i, Key: key, Err: fmt.Errorf("panic: %v", p)}
			logrus.Warnf("Replication %d failed: %v", i, rerr.Err)
		}
	}()

	var opts []sim.Option
	if r.tracing() {
		st = trace.NewSimulationTrace(trace.TraceConfig{Level: r.opts.TraceLevel})
		opts = append(opts, sim.WithTrace(st))
	}
	if r.simOptions != nil {
		opts = append(opts, r.simOptions(i)...)
	}
	start := time.Now()
	s, err := sim.NewSimulator(r.params, key, opts...)
	if err != nil {
		logrus.Warnf("Replication %d failed: %v", i, err)
		return nil, nil, &ReplicationError{Index: i, Key: key, Err: err}
	}
	snap, err = s.Run()
	if err != nil {
		logrus.Warnf("Replication %d failed: %v", i, err)
		return nil, nil, &ReplicationError{Index: i, Key: key, Err: err}
	}
	logrus.Infof("Replication %d done: %d events, end t=%.2f, wall %s",
		i, snap.EventsProcessed, snap.End, time.Since(start).Round(time.Millisecond))
	return snap, st, nil
}
