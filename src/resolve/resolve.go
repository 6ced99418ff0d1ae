package resolve

import (
	"fmt"
	"time"

	"github.com/kilnbuild/kiln/src/core"
	logging "gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("resolve")

// progressInterval is how often Resolve logs progress on a large graph.
var progressInterval = 5 * time.Second

// UndeclaredDirectoryDependencyError is raised when a target's sources
// reference a directory-generated-by-target path-set whose producer isn't
// also present in the target's declared dependencies. Depending on an
// implicit directory output without declaring the dependency would let the
// executor build the two targets in the wrong order.
type UndeclaredDirectoryDependencyError struct {
	Target   core.Label
	Producer core.Label
}

func (e *UndeclaredDirectoryDependencyError) Error() string {
	return fmt.Sprintf("%s uses the directory output of %s without declaring it as a dependency", e.Target, e.Producer)
}

// Result is the concrete DAG produced by resolving a graph: every target
// reachable from the requested roots, plus the edges between them.
type Result struct {
	Targets []core.Label
	Edges   map[core.Label][]core.Label
}

// Resolve expands the path-sets and declared dependencies of every target
// reachable from roots into a concrete dependency DAG, detecting cycles
// incrementally as edges are discovered. Mirrors the teacher's queue-driven
// graph expansion, generalised to this spec's path-set vocabulary.
func Resolve(g *core.Graph, roots []core.Label) (*Result, error) {
	detector := newCycleDetector()
	edges := map[core.Label][]core.Label{}
	visited := map[core.Label]bool{}
	queue := append([]core.Label{}, roots...)
	order := make([]core.Label, 0, len(roots))

	lastProgress := time.Now()
	processed := 0

	for len(queue) > 0 {
		label := queue[0]
		queue = queue[1:]
		if visited[label] {
			continue
		}
		visited[label] = true
		order = append(order, label)
		processed++

		if time.Since(lastProgress) > progressInterval {
			log.Infof("resolved %d/%d+ targets", processed, processed+len(queue))
			lastProgress = time.Now()
		}

		target := g.Target(label)
		if target == nil {
			return nil, fmt.Errorf("unknown target %s", label)
		}

		deps := target.AllDeclaredDeps()
		declared := map[core.Label]bool{}
		for _, d := range deps {
			declared[d] = true
		}

		if target.Sources != nil {
			for _, producer := range target.Sources.Dependencies() {
				if !declared[producer] {
					return nil, &UndeclaredDirectoryDependencyError{Target: label, Producer: producer}
				}
			}
		}

		for _, dep := range deps {
			if g.Target(dep) == nil {
				return nil, fmt.Errorf("%s depends on unknown target %s", label, dep)
			}
			if err := detector.addEdge(label, dep); err != nil {
				return nil, err
			}
			edges[label] = append(edges[label], dep)
			if !visited[dep] {
				queue = append(queue, dep)
			}
		}
	}

	return &Result{Targets: order, Edges: edges}, nil
}

// TopoOrder returns a topological ordering of result.Targets suitable for
// sequential dispatch (dependencies first). Assumes Resolve already proved
// the graph acyclic.
func TopoOrder(r *Result) []core.Label {
	visited := map[core.Label]bool{}
	var order []core.Label
	var visit func(core.Label)
	visit = func(l core.Label) {
		if visited[l] {
			return
		}
		visited[l] = true
		for _, dep := range r.Edges[l] {
			visit(dep)
		}
		order = append(order, l)
	}
	for _, l := range r.Targets {
		visit(l)
	}
	return order
}
