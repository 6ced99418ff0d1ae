package core

import (
	"fmt"
	"sync/atomic"
)

// TargetState is a target's position in the PENDING -> RUNNABLE -> RUNNING ->
// {SUCCESS, FAILED, SKIPPED} state machine from §4.6.
type TargetState int32

// The states a target moves through during one run. Transitions only ever
// move forward; a target never revisits an earlier state within a run.
const (
	Pending TargetState = iota
	Runnable
	Running
	Success
	Failed
	Skipped
)

func (s TargetState) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Runnable:
		return "Runnable"
	case Running:
		return "Running"
	case Success:
		return "Success"
	case Failed:
		return "Failed"
	case Skipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// RunContext is handed to Clean and Run; it is intentionally a narrow
// interface here (the concrete implementation lives in the rulecontext
// package) so core has no dependency on the executor or process runner.
type RunContext interface {
	Expand(value string) (string, error)
	ResolvePath(p string) string
	WorkDir() (string, error)
	Options() map[string]interface{}
}

// Target is the unit of work in the graph: something with a name, explicit
// and implicit dependencies, and a clean/run contract, per §3's Target
// definition.
type Target struct {
	Label Label

	// Kind names the rule type that produced this target (e.g. "copy",
	// "filegroup"); used for diagnostics and cache-record kind tagging.
	Kind string

	// Sources is this target's declared path-set of inputs.
	Sources PathSet

	// Explicit dependencies declared directly on the target.
	Deps []Label

	// Tags this target carries, used for tag-based selection and path-sets.
	Tags []string

	// Priority influences dispatch order among otherwise-runnable targets;
	// higher runs first.
	Priority int

	// OutputIsDirectory marks that Outputs()[0] is a directory populated by
	// Run, requiring the stamp-file up-to-date workaround from §4.5.
	OutputIsDirectory bool

	// DisableInFullBuild opts a target out of the full/all pseudo-selector.
	// It is still built when named explicitly on the command line.
	DisableInFullBuild bool

	// outputs are the absolute paths this target produces. For a directory
	// output there is exactly one entry.
	outputs []string

	// ImplicitDeps, if set, computes additional dependencies beyond Deps
	// that aren't yet known at parse time (e.g. derived from Sources).
	ImplicitDeps func(*Target) []Label

	// CleanFunc removes any stale outputs before a build attempt.
	CleanFunc func(RunContext) error

	// RunFunc performs the actual build action.
	RunFunc func(RunContext) error

	// implicitInputs and implicitInputOptions are extra, non-path-set hash
	// inputs the target has registered via RegisterImplicitInput /
	// RegisterImplicitInputOption. They feed cache.optionsHash/inputSetHash
	// rather than graph DAG edges.
	implicitInputs       []string
	implicitInputOptions []string

	state int32
}

// NewTarget returns a target in the Pending state.
func NewTarget(label Label, kind string) *Target {
	return &Target{Label: label, Kind: kind, state: int32(Pending)}
}

// State returns the target's current state.
func (t *Target) State() TargetState {
	return TargetState(atomic.LoadInt32(&t.state))
}

// SetState unconditionally sets the target's state.
func (t *Target) SetState(s TargetState) {
	atomic.StoreInt32(&t.state, int32(s))
}

// SyncUpdateState performs before->after transition iff the target is
// currently in `before`, returning whether the swap happened. The executor
// does not use it; it sets states with SetState.
func (t *Target) SyncUpdateState(before, after TargetState) bool {
	return atomic.CompareAndSwapInt32(&t.state, int32(before), int32(after))
}

// AddOutput appends an absolute output path. A directory-output target may
// only have exactly one.
func (t *Target) AddOutput(absPath string) error {
	if t.OutputIsDirectory && len(t.outputs) >= 1 {
		return fmt.Errorf("%s: directory-output targets may only declare one output", t.Label)
	}
	t.outputs = append(t.outputs, absPath)
	return nil
}

// Outputs returns the target's declared absolute output paths.
func (t *Target) Outputs() []string {
	return t.outputs
}

// SetOutputs replaces the target's declared outputs outright. Used by Run
// implementations that recompute their full output set each attempt, so a
// retry doesn't accumulate duplicates from the previous attempt.
func (t *Target) SetOutputs(outputs []string) {
	t.outputs = outputs
}

// HasTag reports whether the target carries the given tag.
func (t *Target) HasTag(tag string) bool {
	for _, tg := range t.Tags {
		if tg == tag {
			return true
		}
	}
	return false
}

// AllDeclaredDeps returns Deps plus whatever ImplicitDeps computes, per the
// target's implicit-dependency hook in §3.
func (t *Target) AllDeclaredDeps() []Label {
	deps := append([]Label{}, t.Deps...)
	if t.ImplicitDeps != nil {
		deps = append(deps, t.ImplicitDeps(t)...)
	}
	return deps
}

// RegisterImplicitInput records an extra, non-path-set value (e.g. a tool
// version string) that contributes to this target's input-set hash without
// adding a graph dependency edge.
func (t *Target) RegisterImplicitInput(item string) {
	t.implicitInputs = append(t.implicitInputs, item)
}

// RegisterImplicitInputOption records the name of an effective option this
// target considers significant: only registered option names are hashed
// into its cache record, so changing an option the target never reads
// doesn't force a rebuild.
func (t *Target) RegisterImplicitInputOption(name string) {
	t.implicitInputOptions = append(t.implicitInputOptions, name)
}

// ImplicitInputs returns the extra hash inputs registered via
// RegisterImplicitInput.
func (t *Target) ImplicitInputs() []string {
	return append([]string{}, t.implicitInputs...)
}

// SignificantOptionNames returns the option names registered via
// RegisterImplicitInputOption.
func (t *Target) SignificantOptionNames() []string {
	return append([]string{}, t.implicitInputOptions...)
}

// Clean runs the target's clean step, if any.
func (t *Target) Clean(ctx RunContext) error {
	if t.CleanFunc == nil {
		return nil
	}
	return t.CleanFunc(ctx)
}

// Run performs the target's build step.
func (t *Target) Run(ctx RunContext) error {
	if t.RunFunc == nil {
		return fmt.Errorf("%s: target of kind %q has no run function", t.Label, t.Kind)
	}
	return t.RunFunc(ctx)
}

// String implements fmt.Stringer.
func (t *Target) String() string {
	return t.Label.String()
}
