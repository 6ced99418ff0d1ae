// Command kiln is a cross-platform, multi-threaded build orchestrator.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	logging "gopkg.in/op/go-logging.v1"

	"github.com/kilnbuild/kiln/src/build"
	"github.com/kilnbuild/kiln/src/cache"
	kcli "github.com/kilnbuild/kiln/src/cli"
	"github.com/kilnbuild/kiln/src/core"
	"github.com/kilnbuild/kiln/src/metrics"
	"github.com/kilnbuild/kiln/src/resolve"
	"github.com/kilnbuild/kiln/src/rulecontext"
)

var log = logging.MustGetLogger("kiln")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	opts, err := kcli.ParseArgs(argv)
	if err != nil {
		return 2
	}

	if _, err := maxprocs.Set(maxprocs.Logger(log.Infof)); err != nil {
		log.Warningf("failed to set GOMAXPROCS: %s", err)
	}

	repoRoot, err := filepath.Abs(opts.BuildFlags.RepoRoot)
	if err != nil {
		log.Errorf("resolving repo root: %s", err)
		return 2
	}

	config, err := core.ReadConfigFiles(core.ConfigFiles(repoRoot))
	if err != nil {
		log.Errorf("reading config: %s", err)
		return 2
	}
	if opts.BuildFlags.NumThreads > 0 {
		config.Kiln.NumThreads = opts.BuildFlags.NumThreads
	}
	if opts.BuildFlags.FailureRetries > 0 {
		config.Kiln.FailureRetries = opts.BuildFlags.FailureRetries
	}

	outRoot := filepath.Join(repoRoot, config.Kiln.OutRoot)
	if err := core.AcquireRepoLock(outRoot); err != nil {
		log.Errorf("%s", err)
		return 2
	}
	defer core.ReleaseRepoLock()

	graph := core.NewGraph()
	// Build-file evaluation (the host scripting language's evaluator) is an
	// out-of-scope collaborator; a real kiln binary would parse every
	// BUILD.kiln file reachable from repoRoot here and populate graph via
	// the host package before reaching this point.
	if err := graph.Freeze(); err != nil {
		log.Errorf("%s", err)
		return 2
	}

	reporter := metrics.NewReporter(metrics.Config{
		GatewayURL: config.Metrics.PushGatewayURL,
		Frequency:  time.Duration(config.Metrics.PushFrequency) * time.Second,
	})
	reporter.Start()
	defer reporter.Stop()

	if opts.Search.Query != "" {
		matches, err := kcli.Search(graph, opts.Search.Query)
		if err != nil {
			log.Errorf("%s", err)
			return 2
		}
		for _, m := range matches {
			fmt.Println(m.String())
		}
		return 0
	}
	if opts.FindTarget.Name != "" {
		target, suggestions := kcli.FindTarget(graph, opts.FindTarget.Name)
		if target == nil {
			fmt.Fprintf(os.Stderr, "no target named %q found\n", opts.FindTarget.Name)
			for _, s := range suggestions {
				fmt.Fprintf(os.Stderr, "  did you mean: %s\n", s)
			}
			return 1
		}
		fmt.Println(target.Label.String())
		return 0
	}

	var roots []core.Label
	for _, arg := range opts.Args.Targets {
		selected, err := graph.Select(arg)
		if err != nil {
			log.Errorf("%s", err)
			return 2
		}
		roots = append(roots, selected...)
	}
	if len(roots) == 0 {
		log.Errorf("no targets given")
		return 2
	}

	result, err := resolve.Resolve(graph, roots)
	if err != nil {
		log.Errorf("%s", err)
		return 2
	}

	state := core.NewRunState(graph, config, roots)
	state.KeepGoing = opts.BuildFlags.KeepGoing
	state.ForceRebuild = opts.BuildFlags.Rebuild
	state.IgnoreDeps = opts.BuildFlags.IgnoreDeps

	store := cache.Open(filepath.Join(repoRoot, config.Cache.Dir, "store"))
	defer store.Flush()

	ctxFor := func(t *core.Target) core.RunContext {
		return rulecontext.New(graph, t, repoRoot, filepath.Join(outRoot, "tmp"))
	}

	executor := build.NewExecutor(graph, result, store, ctxFor, build.Options{
		NumWorkers:     config.Kiln.NumThreads,
		KeepGoing:      state.KeepGoing,
		Rebuild:        state.ForceRebuild,
		IgnoreDeps:     state.IgnoreDeps,
		CleanFirst:     state.ForceRebuild,
		FailureRetries: config.Kiln.FailureRetries,
		RetryBackoff:   0,
	})

	runErr := executor.Run(context.Background())
	if err := store.Flush(); err != nil {
		log.Warningf("failed to persist cache: %s", err)
	}
	if runErr != nil {
		log.Errorf("build failed: %s", runErr)
		return 1
	}

	elapsed := time.Since(state.StartTime)
	for _, label := range executor.PublishedArtifacts() {
		if state.IsOriginalTarget(label) {
			log.Infof("built %s", label)
		}
	}
	log.Infof("build finished in %s", elapsed)
	return 0
}
