// Package rulecontext implements the build context facade (C7) that a
// target's Clean and Run functions receive: property expansion, absolute
// path resolution, effective options, and a lazily-acquired scoped work
// directory.
package rulecontext

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kilnbuild/kiln/src/core"
	kfs "github.com/kilnbuild/kiln/src/fs"
)

// Context is the concrete core.RunContext implementation.
type Context struct {
	graph   *core.Graph
	target  *core.Target
	repoRoot string
	tmpRoot  string

	mu      sync.Mutex
	workDir string
}

// New returns a Context scoped to target.
func New(graph *core.Graph, target *core.Target, repoRoot, tmpRoot string) *Context {
	return &Context{graph: graph, target: target, repoRoot: repoRoot, tmpRoot: tmpRoot}
}

// Expand substitutes ${name} references in value against the graph's
// property store.
func (c *Context) Expand(value string) (string, error) {
	return c.graph.Properties.ExpandString(value)
}

// ResolvePath resolves p (which may be relative to the target's package)
// into an absolute path.
func (c *Context) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(c.repoRoot, c.target.Label.PackageName, p))
}

// WorkDir returns this target's scoped temporary work directory, creating it
// on first use.
func (c *Context) WorkDir() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.workDir != "" {
		return c.workDir, nil
	}
	dir := filepath.Join(c.tmpRoot, c.target.Label.PackageName, c.target.Label.Name+"._build")
	if err := os.MkdirAll(dir, kfs.DirPermissions); err != nil {
		return "", fmt.Errorf("creating work dir for %s: %w", c.target.Label, err)
	}
	c.workDir = dir
	return dir, nil
}

// ClearWorkDir removes and recreates the scoped work directory, used
// between retry attempts so a failed attempt's partial output can't leak
// into the next one.
func (c *Context) ClearWorkDir() error {
	c.mu.Lock()
	dir := c.workDir
	c.mu.Unlock()
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, kfs.DirPermissions)
}

// Options returns the target's frozen effective options.
func (c *Context) Options() map[string]interface{} {
	opts, err := c.graph.Options.EffectiveOptionsFor(c.target.Label)
	if err != nil {
		return map[string]interface{}{}
	}
	return opts
}

// OpenForWrite opens path for writing via a temp-file-then-rename, so a
// reader never observes a half-written output.
func (c *Context) OpenForWrite(path string, mode os.FileMode) (io.WriteCloser, error) {
	return newAtomicWriter(path, mode)
}

type atomicWriter struct {
	tmp  *os.File
	dest string
	mode os.FileMode
}

func newAtomicWriter(dest string, mode os.FileMode) (*atomicWriter, error) {
	if err := kfs.EnsureDir(dest); err != nil {
		return nil, err
	}
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return nil, err
	}
	if mode == 0 {
		mode = 0644
	}
	return &atomicWriter{tmp: tmp, dest: dest, mode: mode}, nil
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

func (w *atomicWriter) Close() error {
	if err := w.tmp.Close(); err != nil {
		os.Remove(w.tmp.Name())
		return err
	}
	if err := os.Chmod(w.tmp.Name(), w.mode); err != nil {
		os.Remove(w.tmp.Name())
		return err
	}
	return os.Rename(w.tmp.Name(), w.dest)
}
