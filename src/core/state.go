package core

import "time"

// RunState ties together everything a single kiln invocation needs: the
// frozen graph, the loaded configuration, and the flags that came off the
// command line. It plays the same role as the teacher's BuildState but
// without the parser/test-runner fields this spec doesn't cover.
type RunState struct {
	Graph  *Graph
	Config *Configuration

	// OriginalTargets are the labels the user actually asked for on the
	// command line, before dependency expansion.
	OriginalTargets []Label

	// KeepGoing mirrors --keep_going: don't stop the whole run on the first failure.
	KeepGoing bool
	// ForceRebuild mirrors --rebuild: ignore cache state for every target in the run.
	ForceRebuild bool
	// IgnoreDeps mirrors --ignore-deps: see the design note on its exact semantics.
	IgnoreDeps bool

	StartTime time.Time
}

// NewRunState returns a RunState for one invocation.
func NewRunState(graph *Graph, config *Configuration, targets []Label) *RunState {
	return &RunState{
		Graph:           graph,
		Config:          config,
		OriginalTargets: targets,
		StartTime:       time.Now(),
	}
}

// IsOriginalTarget reports whether label was directly requested on the
// command line, as opposed to being pulled in as a dependency.
func (s *RunState) IsOriginalTarget(label Label) bool {
	for _, l := range s.OriginalTargets {
		if l == label {
			return true
		}
	}
	return false
}
