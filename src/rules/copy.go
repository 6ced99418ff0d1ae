// Package rules provides reference target implementations. Concrete rule
// bodies are explicitly out of scope in general, but at least one is needed
// to exercise the graph, resolver, cache and executor end to end.
package rules

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilnbuild/kiln/src/core"
	kfs "github.com/kilnbuild/kiln/src/fs"
)

// CopyArgs are the keyword arguments a "copy" target accepts.
type CopyArgs struct {
	Name    string
	Sources core.PathSet
	Deps    []core.Label
	Tags    []string
	OutDir  string // absolute output directory
}

// NewCopy constructs a target that copies every entry of its source
// path-set to OutDir/DestSuffix, link-for-link equivalent to the teacher's
// filegroup rule but expressed as an ordinary Target.Run step rather than a
// builtin special case.
func NewCopy(pkg string, args CopyArgs) *core.Target {
	label := core.NewLabel(pkg, args.Name)
	t := core.NewTarget(label, "copy")
	t.Sources = args.Sources
	t.Deps = args.Deps
	t.Tags = args.Tags

	t.RunFunc = func(ctx core.RunContext) error {
		entries, err := args.Sources.Resolve(&core.ResolveContext{ParseComplete: true})
		if err != nil {
			return err
		}
		t.SetOutputs(nil)
		for _, e := range entries {
			dest := filepath.Join(args.OutDir, e.DestSuffix)
			if err := kfs.CopyFile(e.AbsPath, dest, 0644); err != nil {
				return fmt.Errorf("copy %s -> %s: %w", e.AbsPath, dest, err)
			}
			if err := t.AddOutput(dest); err != nil {
				return err
			}
		}
		return nil
	}
	t.CleanFunc = func(ctx core.RunContext) error {
		for _, out := range t.Outputs() {
			if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		return nil
	}
	return t
}
