// Package resolve expands a graph's declared path-sets and dependencies into
// a concrete DAG, detecting cycles and undeclared directory dependencies
// along the way.
package resolve

import (
	"strings"

	"github.com/kilnbuild/kiln/src/core"
)

type dependencyLink struct {
	from core.Label
	to   core.Label
}

// CyclicDependencyError reports a dependency cycle with its full chain, in
// the order it was discovered.
type CyclicDependencyError struct {
	Chain []core.Label
}

func (e *CyclicDependencyError) Error() string {
	labels := make([]string, len(e.Chain))
	for i, l := range e.Chain {
		labels[i] = l.String()
	}
	return "dependency cycle detected:\n -> " + strings.Join(labels, "\n -> ")
}

// cycleDetector incrementally tracks declared edges and reports a cycle the
// moment one would be introduced, rather than requiring a full-graph scan
// once resolution completes.
type cycleDetector struct {
	deps map[core.Label][]core.Label
}

func newCycleDetector() *cycleDetector {
	return &cycleDetector{deps: map[core.Label][]core.Label{}}
}

func (c *cycleDetector) reachable(head, tail core.Label) bool {
	for _, dep := range c.deps[tail] {
		if dep == head {
			return true
		}
		if c.reachable(head, dep) {
			return true
		}
	}
	return false
}

func (c *cycleDetector) chain(start []core.Label) []core.Label {
	tail := start[len(start)-1]
	head := start[0]
	for _, dep := range c.deps[tail] {
		if dep == head {
			return append(start, dep)
		}
		if found := c.chain(append(append([]core.Label{}, start...), dep)); found != nil {
			return found
		}
	}
	return nil
}

// addEdge records that `from` depends on `to`. Returns a *CyclicDependencyError
// if this edge would close a cycle; the edge is still recorded so later
// error chains (a cycle can be reported from any of its members) stay
// informative, mirroring the teacher's incremental design.
func (c *cycleDetector) addEdge(from, to core.Label) error {
	var err error
	if c.reachable(from, to) {
		err = &CyclicDependencyError{Chain: c.chain([]core.Label{from, to})}
	}
	c.deps[from] = append(c.deps[from], to)
	return err
}
