// Package host exposes the flat registration vocabulary that the host
// scripting language's evaluator calls into while a build file executes.
// The evaluator itself is an opaque collaborator, per §6: this package only
// defines the surface it calls, never how it parses or runs script text.
package host

import (
	"fmt"
	"path/filepath"

	"github.com/kilnbuild/kiln/src/core"
)

// TargetConstructor builds a *core.Target from the keyword arguments a
// build-file rule call collects. The evaluator is responsible for gathering
// those arguments from script syntax; it hands them to kiln as a plain map.
type TargetConstructor func(ctx *InitContext, args map[string]interface{}) (*core.Target, error)

// InitContext is threaded through one build file's evaluation. It is the
// receiver for every registration call the evaluator makes.
type InitContext struct {
	Graph       *core.Graph
	Packages    *core.PackageSet
	RepoRoot    string

	currentPkg  *core.Package
	ruleKinds   map[string]TargetConstructor
}

// NewInitContext returns a context shared across every build file parsed in
// one run; ruleKinds is the set of target-class constructors available to
// build files (the concrete rule implementations, e.g. "copy").
func NewInitContext(graph *core.Graph, packages *core.PackageSet, repoRoot string, ruleKinds map[string]TargetConstructor) *InitContext {
	return &InitContext{Graph: graph, Packages: packages, RepoRoot: repoRoot, ruleKinds: ruleKinds}
}

// BeginPackage switches the context to a new build file's package, creating
// it if this is the first time it's been seen.
func (c *InitContext) BeginPackage(pkgName, defFile string) {
	c.currentPkg = c.Packages.GetOrCreate(pkgName, defFile)
}

// DefineProperty registers a property visible to every later build file.
func (c *InitContext) DefineProperty(name string, kind core.PropertyKind, value interface{}) error {
	return c.Graph.Properties.Define(name, kind, value, c.packageDir(), c.defFile())
}

// DefineOption registers a new tunable option with its default.
func (c *InitContext) DefineOption(name string, def interface{}, domain []string) error {
	return c.Graph.Options.Define(name, def, domain)
}

// SetGlobalOption overrides an option's value at the global layer.
func (c *InitContext) SetGlobalOption(name string, value interface{}) error {
	return c.Graph.Options.SetGlobal(name, value)
}

// SetTargetOption overrides an option's value for one target.
func (c *InitContext) SetTargetOption(target core.Label, name string, value interface{}) error {
	return c.Graph.Options.SetOverride(target, name, value)
}

// Declare constructs a target of the named kind via its registered
// TargetConstructor and registers it with both the graph and the current
// package.
func (c *InitContext) Declare(kind string, args map[string]interface{}) (*core.Target, error) {
	ctor, present := c.ruleKinds[kind]
	if !present {
		return nil, fmt.Errorf("no target kind registered for %q", kind)
	}
	target, err := ctor(c, args)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateName(target.Label.Name); err != nil {
		return nil, err
	}
	if err := c.Graph.AddTarget(target); err != nil {
		return nil, err
	}
	c.currentPkg.AddTarget(target)
	return target, nil
}

// Include resolves path against the current package directory and returns
// it. It records nothing; reading and running the included file is left to
// the evaluator.
func (c *InitContext) Include(path string) string {
	return filepath.Join(c.packageDir(), path)
}

func (c *InitContext) packageDir() string {
	if c.currentPkg == nil {
		return c.RepoRoot
	}
	return c.currentPkg.Dir(c.RepoRoot)
}

func (c *InitContext) defFile() string {
	if c.currentPkg == nil {
		return ""
	}
	return c.currentPkg.DefFile
}

// CurrentPackageName returns the package name currently being evaluated.
func (c *InitContext) CurrentPackageName() string {
	if c.currentPkg == nil {
		return ""
	}
	return c.currentPkg.Name
}
