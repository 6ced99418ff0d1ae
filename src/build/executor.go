package build

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/kilnbuild/kiln/src/cache"
	"github.com/kilnbuild/kiln/src/core"
	"github.com/kilnbuild/kiln/src/resolve"
)

// Options configures one Executor run.
type Options struct {
	NumWorkers     int
	KeepGoing      bool
	Rebuild        bool  // --rebuild: force every target in the run to build regardless of cache state
	IgnoreDeps     bool  // --ignore-deps: see the decision recorded in buildWithRetries
	CleanFirst     bool  // run Clean on every target before Build, for --rebuild
	FailureRetries int
	RetryBackoff   time.Duration
	GracePeriod    time.Duration
}

// task is one unit of dispatch: a target label plus its dispatch priority.
type task struct {
	label    core.Label
	priority int
}

// workDirClearer is implemented by concrete RunContexts that support
// clearing a target's scoped work directory between retry attempts. It is
// kept out of core.RunContext itself so that interface stays minimal.
type workDirClearer interface {
	ClearWorkDir() error
}

// Executor runs a resolved DAG of targets through a fixed worker pool,
// respecting dependency order, per §4.6.
type Executor struct {
	graph   *core.Graph
	result  *resolve.Result
	store   *cache.Store
	ctxFor  func(*core.Target) core.RunContext
	opts    Options
	runID   string

	mu         sync.Mutex
	remaining  map[core.Label]int // unresolved dependency count
	reverse    map[core.Label][]core.Label
	queue      []task
	cond       *sync.Cond
	done       map[core.Label]bool
	shutdown   bool

	published   []core.Label
	publishedMu sync.Mutex

	metrics *execMetrics

	rebuiltMu sync.Mutex
	rebuilt   map[core.Label]bool
}

type execMetrics struct {
	duration prometheus.Histogram
	skipped  prometheus.Counter
	rebuilt  prometheus.Counter
	failed   prometheus.Counter
}

func newExecMetrics() *execMetrics {
	return &execMetrics{
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "kiln_target_build_duration_seconds",
			Help: "Time spent building a single target.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiln_targets_skipped_total",
			Help: "Targets skipped because they were already up to date.",
		}),
		rebuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiln_targets_rebuilt_total",
			Help: "Targets that actually ran their build step.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiln_targets_failed_total",
			Help: "Targets whose build step failed.",
		}),
	}
}

// NewExecutor builds an Executor over a resolved result. ctxFor constructs
// the RunContext a target's Clean/Run steps will receive.
func NewExecutor(graph *core.Graph, result *resolve.Result, store *cache.Store, ctxFor func(*core.Target) core.RunContext, opts Options) *Executor {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	e := &Executor{
		graph:     graph,
		result:    result,
		store:     store,
		ctxFor:    ctxFor,
		opts:      opts,
		runID:     uuid.NewString(),
		remaining: map[core.Label]int{},
		reverse:   map[core.Label][]core.Label{},
		done:      map[core.Label]bool{},
		metrics:   newExecMetrics(),
		rebuilt:   map[core.Label]bool{},
	}
	e.cond = sync.NewCond(&e.mu)
	for _, l := range result.Targets {
		e.remaining[l] = len(result.Edges[l])
		for _, dep := range result.Edges[l] {
			e.reverse[dep] = append(e.reverse[dep], l)
		}
	}
	for _, l := range result.Targets {
		if e.remaining[l] == 0 {
			e.queue = append(e.queue, task{label: l, priority: e.graph.Target(l).Priority})
		}
	}
	e.sortQueue()
	return e
}

func (e *Executor) sortQueue() {
	sort.SliceStable(e.queue, func(i, j int) bool { return e.queue[i].priority > e.queue[j].priority })
}

// Run dispatches the worker pool and blocks until every target has reached a
// terminal state or the run stops early (keepGoing=false after a failure).
// Returns the aggregated failures, if any, via go-multierror.
func (e *Executor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	var errs *multierror.Error
	var errMu sync.Mutex

	wg.Add(e.opts.NumWorkers)
	for i := 0; i < e.opts.NumWorkers; i++ {
		go func(tid int) {
			defer wg.Done()
			for {
				t, ok := e.nextTask(ctx)
				if !ok {
					return
				}
				if err := e.runOne(ctx, tid, t.label); err != nil {
					errMu.Lock()
					errs = multierror.Append(errs, err)
					errMu.Unlock()
					if !e.opts.KeepGoing {
						e.stop()
						return
					}
				}
			}
		}(i)
	}
	wg.Wait()
	e.skipUnreached()
	if errs != nil {
		return errs.ErrorOrNil()
	}
	return nil
}

// skipUnreached marks every target that never got a chance to run (because a
// dependency failed and keepGoing left it permanently blocked) as Skipped.
func (e *Executor) skipUnreached() {
	for _, l := range e.result.Targets {
		if t := e.graph.Target(l); t != nil {
			if s := t.State(); s == core.Pending || s == core.Runnable {
				t.SetState(core.Skipped)
			}
		}
	}
}

func (e *Executor) stop() {
	e.mu.Lock()
	e.shutdown = true
	e.mu.Unlock()
	e.cond.Broadcast()
}

// nextTask blocks until a runnable task is available, the queue is
// permanently empty, or the run has been stopped. A task pulled while the
// host is under heavy load is held for one short grace period first, giving
// already-running work a chance to finish before another is dispatched.
func (e *Executor) nextTask(ctx context.Context) (task, bool) {
	e.mu.Lock()
	for len(e.queue) == 0 && !e.allDone() && !e.shutdown {
		if ctx.Err() != nil {
			e.mu.Unlock()
			return task{}, false
		}
		e.cond.Wait()
	}
	if e.shutdown || len(e.queue) == 0 {
		e.mu.Unlock()
		return task{}, false
	}
	t := e.queue[0]
	e.queue = e.queue[1:]
	e.mu.Unlock()

	if backpressure(ctx) {
		select {
		case <-time.After(e.graceDuration()):
		case <-ctx.Done():
		}
	}
	return t, true
}

func (e *Executor) graceDuration() time.Duration {
	if e.opts.GracePeriod > 0 {
		return e.opts.GracePeriod
	}
	return 50 * time.Millisecond
}

func (e *Executor) allDone() bool {
	return len(e.done) == len(e.result.Targets)
}

// runOne moves a target through Pending -> Runnable -> Running -> terminal,
// applying up-to-date checks, retries, and reverse-dependency unblocking.
func (e *Executor) runOne(ctx context.Context, tid int, label core.Label) error {
	target := e.graph.Target(label)
	target.SetState(core.Runnable)
	target.SetState(core.Running)

	tlog := newTargetLog(label)
	tlog.banner(fmt.Sprintf("[worker %d] building", tid))

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return e.buildWithRetries(ctx, tlog, target)
	}()
	e.metrics.duration.Observe(time.Since(start).Seconds())

	if err != nil {
		target.SetState(core.Failed)
		e.metrics.failed.Inc()
		tlog.flush("FAILED")
		// Everything downstream of a failed target can never run; count it as
		// done so the pool drains, and skipUnreached marks it Skipped.
		e.mu.Lock()
		pending := append([]core.Label{}, e.reverse[label]...)
		for len(pending) > 0 {
			l := pending[0]
			pending = pending[1:]
			if !e.done[l] {
				e.done[l] = true
				pending = append(pending, e.reverse[l]...)
			}
		}
		e.mu.Unlock()
		e.markDone(label)
		return fmt.Errorf("%s: %w", label, err)
	}
	target.SetState(core.Success)
	tlog.flush("Success")
	e.publish(label)
	e.markDone(label)
	e.unblockDependents(label)
	return nil
}

// buildWithRetries runs Clean+Run with up-to-date elision, retrying up to
// FailureRetries times with exponential backoff and demoting the failing
// attempt's log lines to debug severity so only the final outcome stands out,
// mirroring the teacher's build-then-log-result pattern in build_step.go.
func (e *Executor) buildWithRetries(ctx context.Context, tlog *targetLog, target *core.Target) error {
	runCtx := e.ctxFor(target)

	var inputPaths []string
	if target.Sources != nil {
		entries, err := target.Sources.Resolve(&core.ResolveContext{Graph: e.graph, ParseComplete: true})
		if err != nil {
			return err
		}
		for _, en := range entries {
			inputPaths = append(inputPaths, en.AbsPath)
		}
	}

	opts, err := e.graph.Options.EffectiveOptionsFor(target.Label)
	if err != nil {
		return err
	}

	prev := e.store.Get(target.Label.String())
	// --ignore-deps preserves incrementality: a rebuilt dependency alone
	// doesn't force this target to rebuild, only a genuine change to its
	// own inputs, options or outputs does. See the design note on this
	// flag for the rationale.
	depsRebuilt := !e.opts.IgnoreDeps && e.anyDepRebuilt(target.Label)
	decision := cache.NeedsBuild(target, prev, opts, inputPaths, depsRebuilt, e.opts.Rebuild)
	if !decision.NeedsBuild {
		tlog.Printf("up to date: %s", decision.Reason)
		target.SetState(core.Success)
		e.metrics.skipped.Inc()
		return nil
	}
	tlog.Printf("building: %s", decision.Reason)
	e.metrics.rebuilt.Inc()
	e.rebuiltMu.Lock()
	e.rebuilt[target.Label] = true
	e.rebuiltMu.Unlock()

	attempts := e.opts.FailureRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := e.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
			tlog.Printf("retry %d/%d after %s: %s", attempt, attempts-1, backoff, lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if e.opts.CleanFirst || attempt > 0 {
			if err := target.Clean(runCtx); err != nil {
				lastErr = err
				continue
			}
			if clearer, ok := runCtx.(workDirClearer); ok {
				if err := clearer.ClearWorkDir(); err != nil {
					lastErr = err
					continue
				}
			}
		}
		if err := target.Run(runCtx); err != nil {
			lastErr = err
			tlog.Printf("attempt %d failed: %s", attempt+1, err)
			continue
		}
		if target.OutputIsDirectory {
			for _, out := range target.Outputs() {
				if err := cache.WriteStamp(out); err != nil {
					lastErr = err
					continue
				}
			}
		}
		rec, err := cache.BuildRecord(target, opts, inputPaths, time.Now(), cache.ContentDigest)
		if err != nil {
			return err
		}
		e.store.Put(rec)
		return nil
	}
	return lastErr
}

func (e *Executor) anyDepRebuilt(label core.Label) bool {
	e.rebuiltMu.Lock()
	defer e.rebuiltMu.Unlock()
	for _, dep := range e.result.Edges[label] {
		if e.rebuilt[dep] {
			return true
		}
	}
	return false
}

func (e *Executor) markDone(label core.Label) {
	e.mu.Lock()
	e.done[label] = true
	e.mu.Unlock()
	e.cond.Broadcast()
}

func (e *Executor) unblockDependents(label core.Label) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, dependent := range e.reverse[label] {
		e.remaining[dependent]--
		if e.remaining[dependent] == 0 {
			t := e.graph.Target(dependent)
			e.queue = append(e.queue, task{label: dependent, priority: t.Priority})
		}
	}
	e.sortQueue()
	e.cond.Broadcast()
}

// publish records a target's completion in stable, run-scoped order. See the
// design note on publishArtifact ordering: entries are only meaningful to
// read after Run returns, since concurrent completion order isn't otherwise
// deterministic.
func (e *Executor) publish(label core.Label) {
	e.publishedMu.Lock()
	defer e.publishedMu.Unlock()
	e.published = append(e.published, label)
}

// PublishedArtifacts returns every target that completed successfully, in
// the order it finished. Only meaningful once Run has returned.
func (e *Executor) PublishedArtifacts() []core.Label {
	e.publishedMu.Lock()
	defer e.publishedMu.Unlock()
	return append([]core.Label{}, e.published...)
}

// RunID returns the unique identifier for this executor's run.
func (e *Executor) RunID() string {
	return e.runID
}

// backpressure samples system load and reports whether the pool should
// briefly hold off dispatching new work. It is soft: callers may ignore it,
// and a sampling failure is treated as "no backpressure" rather than fatal.
func backpressure(ctx context.Context) bool {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(percents) > 0 && percents[0] > 97 {
		return true
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil && vm.UsedPercent > 95 {
		return true
	}
	return false
}
