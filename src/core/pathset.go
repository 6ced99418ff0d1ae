package core

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// FileEntry is one resolved entry of a path-set: an absolute source path and
// the suffix it should be published under (relative destination path).
type FileEntry struct {
	AbsPath     string
	DestSuffix  string
}

// ResolveContext supplies a PathSet with whatever it needs to resolve itself:
// access to the frozen graph (for tag- and target-based sets) and the
// directory a relative, parse-time path-set should be rooted at.
type ResolveContext struct {
	Graph          *Graph
	BaseDir        string // only used while parse is still open
	ParseComplete  bool
	AllowDotDot    bool // whether ".." is permitted in destination suffixes
	GlobalExclude  GlobalExcludePredicate
}

// PathSet is a lazy, immutable descriptor of a set of (source, destination)
// pairs, per §3. Resolve re-reads the filesystem on every call; this
// package keeps no memo of earlier results.
type PathSet interface {
	// Resolve returns the stable, sorted (by absolute path), duplicate-free
	// sequence of file entries this path-set describes.
	Resolve(ctx *ResolveContext) ([]FileEntry, error)
	// Dependencies returns the target labels whose outputs must exist
	// before this path-set can be resolved.
	Dependencies() []Label
	// String describes the path-set for diagnostics.
	String() string
}

// relativePathAfterParseError is returned when a path-set would need to
// construct a relative path after parse has ended, which is a fatal
// configuration error per the invariants in §3.
type relativePathAfterParseError struct {
	pattern string
}

func (e *relativePathAfterParseError) Error() string {
	return fmt.Sprintf("relative path construction after parse is not allowed: %q", e.pattern)
}

func resolveBaseDir(ctx *ResolveContext, raw string) (string, error) {
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw), nil
	}
	if ctx.ParseComplete {
		return "", &relativePathAfterParseError{pattern: raw}
	}
	return filepath.Clean(filepath.Join(ctx.BaseDir, raw)), nil
}

func checkDestSuffix(allowDotDot bool, suffix string) error {
	if !allowDotDot && strings.Contains(suffix, "..") {
		return fmt.Errorf("destination suffix %q contains '..' which this target does not permit", suffix)
	}
	return nil
}

func sortAndDedupe(entries []FileEntry) []FileEntry {
	sort.Slice(entries, func(i, j int) bool { return entries[i].AbsPath < entries[j].AbsPath })
	out := entries[:0]
	var last string
	first := true
	for _, e := range entries {
		if !first && e.AbsPath == last {
			continue // duplicate collapsed; caller may log a warning
		}
		out = append(out, e)
		last = e.AbsPath
		first = false
	}
	return out
}

// --- Static list ---

// StaticPathSet is an explicit, fixed list of paths.
type StaticPathSet struct {
	Root        string // directory relative paths are rooted at, pre-parse
	Paths       []string
	AllowDotDot bool
}

func (s *StaticPathSet) Dependencies() []Label { return nil }
func (s *StaticPathSet) String() string        { return fmt.Sprintf("static(%v)", s.Paths) }

func (s *StaticPathSet) Resolve(ctx *ResolveContext) ([]FileEntry, error) {
	base, err := resolveBaseDir(ctx, s.Root)
	if err != nil {
		return nil, err
	}
	var out []FileEntry
	for _, p := range s.Paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(base, p)
		}
		suffix := path.Base(p)
		if !filepath.IsAbs(p) {
			suffix = filepath.ToSlash(filepath.Clean(p))
		}
		if err := checkDestSuffix(s.AllowDotDot || ctx.AllowDotDot, suffix); err != nil {
			return nil, err
		}
		out = append(out, FileEntry{AbsPath: abs, DestSuffix: suffix})
	}
	return sortAndDedupe(out), nil
}

// --- Directory-based ---

// DirPathSet describes every file beneath a directory, optionally filtered
// by include/exclude glob patterns.
type DirPathSet struct {
	Dir             string
	Includes        []string // defaults to ["**"] if empty
	Excludes        []string
	AllowDotDot     bool
}

func (s *DirPathSet) Dependencies() []Label { return nil }
func (s *DirPathSet) String() string        { return fmt.Sprintf("dir(%s)", s.Dir) }

func (s *DirPathSet) Resolve(ctx *ResolveContext) ([]FileEntry, error) {
	base, err := resolveBaseDir(ctx, s.Dir)
	if err != nil {
		return nil, err
	}
	includes := s.Includes
	if len(includes) == 0 {
		includes = []string{"**"}
	}
	exclude := ctx.GlobalExclude
	if exclude == nil {
		exclude = DefaultGlobalExclude
	}
	matches, err := Glob(base, includes, s.Excludes, exclude)
	if err != nil {
		return nil, err
	}
	var out []FileEntry
	for _, m := range matches {
		rel, err := filepath.Rel(base, m)
		if err != nil {
			return nil, err
		}
		if err := checkDestSuffix(s.AllowDotDot || ctx.AllowDotDot, rel); err != nil {
			return nil, err
		}
		out = append(out, FileEntry{AbsPath: m, DestSuffix: rel})
	}
	return sortAndDedupe(out), nil
}

// --- Glob-based ---

// GlobPathSet is an Ant-style glob rooted at a directory.
type GlobPathSet struct {
	Root     string
	Includes []string
	Excludes []string
	AllowDotDot bool
}

func (s *GlobPathSet) Dependencies() []Label { return nil }
func (s *GlobPathSet) String() string        { return fmt.Sprintf("glob(%v)", s.Includes) }

func (s *GlobPathSet) Resolve(ctx *ResolveContext) ([]FileEntry, error) {
	d := &DirPathSet{Dir: s.Root, Includes: s.Includes, Excludes: s.Excludes, AllowDotDot: s.AllowDotDot}
	return d.Resolve(ctx)
}

// --- Tag-based ---

// TagPathSet is the union of the declared outputs of every target carrying
// a given tag.
type TagPathSet struct {
	Tag string
}

func (s *TagPathSet) Dependencies() []Label {
	return nil // the graph is not visible here; see TagDependencies
}

func (s *TagPathSet) String() string { return fmt.Sprintf("tag(%s)", s.Tag) }

func (s *TagPathSet) Resolve(ctx *ResolveContext) ([]FileEntry, error) {
	if ctx.Graph == nil {
		return nil, fmt.Errorf("tag path-set %q resolved without a graph", s.Tag)
	}
	var out []FileEntry
	for _, t := range ctx.Graph.TargetsForTag(s.Tag) {
		for _, o := range t.Outputs() {
			out = append(out, FileEntry{AbsPath: o, DestSuffix: path.Base(o)})
		}
	}
	return sortAndDedupe(out), nil
}

// TagDependencies returns the targets a TagPathSet depends on, given the graph.
// It exists because Dependencies() cannot see the graph; the resolve
// package does not call it, so tag producers are not added as edges.
func (s *TagPathSet) TagDependencies(g *Graph) []Label {
	var labels []Label
	for _, t := range g.TargetsForTag(s.Tag) {
		labels = append(labels, t.Label)
	}
	return labels
}

// --- Directory-generated-by-target ---

// GeneratedDirPathSet describes files beneath a directory that is itself the
// declared output of another target. Unlike DirPathSet, the resolver must
// ensure the producing target exists before walking the directory.
type GeneratedDirPathSet struct {
	Producer Label
	Includes []string
	Excludes []string
	AllowDotDot bool
}

func (s *GeneratedDirPathSet) Dependencies() []Label { return []Label{s.Producer} }
func (s *GeneratedDirPathSet) String() string        { return fmt.Sprintf("generated_dir(%s)", s.Producer) }

func (s *GeneratedDirPathSet) Resolve(ctx *ResolveContext) ([]FileEntry, error) {
	if ctx.Graph == nil {
		return nil, fmt.Errorf("generated-dir path-set for %s resolved without a graph", s.Producer)
	}
	target := ctx.Graph.Target(s.Producer)
	if target == nil {
		return nil, fmt.Errorf("generated-dir path-set references unknown target %s", s.Producer)
	}
	outs := target.Outputs()
	if len(outs) != 1 {
		return nil, fmt.Errorf("generated-dir path-set expects producer %s to have exactly one directory output", s.Producer)
	}
	d := &DirPathSet{Dir: outs[0], Includes: s.Includes, Excludes: s.Excludes, AllowDotDot: s.AllowDotDot}
	return d.Resolve(ctx)
}

// --- Derived ---

// DerivedMapper transforms one entry into zero or one entries. Returning
// ok=false filters the entry out.
type DerivedMapper func(FileEntry) (FileEntry, bool)

// DerivedPathSet applies a mapper to another path-set: prefixing, renaming,
// or filtering its entries.
type DerivedPathSet struct {
	Base   PathSet
	Mapper DerivedMapper
	Name   string // for diagnostics, e.g. "prefix(out/)"
}

func (s *DerivedPathSet) Dependencies() []Label { return s.Base.Dependencies() }
func (s *DerivedPathSet) String() string        { return fmt.Sprintf("derived:%s(%s)", s.Name, s.Base) }

func (s *DerivedPathSet) Resolve(ctx *ResolveContext) ([]FileEntry, error) {
	base, err := s.Base.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	var out []FileEntry
	for _, e := range base {
		if mapped, ok := s.Mapper(e); ok {
			out = append(out, mapped)
		}
	}
	return sortAndDedupe(out), nil
}

// PrefixMapper returns a DerivedMapper that prepends prefix to the destination suffix.
func PrefixMapper(prefix string) DerivedMapper {
	return func(e FileEntry) (FileEntry, bool) {
		e.DestSuffix = path.Join(prefix, e.DestSuffix)
		return e, true
	}
}

// RenameMapper returns a DerivedMapper that applies fn to the destination suffix.
func RenameMapper(fn func(string) string) DerivedMapper {
	return func(e FileEntry) (FileEntry, bool) {
		e.DestSuffix = fn(e.DestSuffix)
		return e, true
	}
}

// FilterMapper returns a DerivedMapper that drops entries failing the predicate.
func FilterMapper(keep func(FileEntry) bool) DerivedMapper {
	return func(e FileEntry) (FileEntry, bool) {
		return e, keep(e)
	}
}

// Union combines several path-sets into one, deduplicating by absolute path.
type UnionPathSet struct {
	Sets []PathSet
}

func (s *UnionPathSet) Dependencies() []Label {
	var labels []Label
	for _, p := range s.Sets {
		labels = append(labels, p.Dependencies()...)
	}
	return labels
}

func (s *UnionPathSet) String() string { return "union" }

func (s *UnionPathSet) Resolve(ctx *ResolveContext) ([]FileEntry, error) {
	var out []FileEntry
	for _, p := range s.Sets {
		entries, err := p.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return sortAndDedupe(out), nil
}
