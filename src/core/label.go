// Package core implements the target graph: properties, options, path-sets,
// targets, tags and the frozen graph they all live in once parse has ended.
package core

import (
	"fmt"
	"path"
	"strings"
)

// Label identifies a target by the package (directory) that declares it and
// a name unique within that package. Output paths are separate and are
// declared on the Target with AddOutput.
type Label struct {
	PackageName string
	Name        string
}

// forbiddenNameChars are disallowed in a target name even on platforms that
// would otherwise tolerate them, so target names are portable everywhere.
const forbiddenNameChars = `<>:"|?*`

// allTargetsName is the reserved name meaning "every target in this package".
const allTargetsName = "all"

// NewLabel constructs a Label, normalizing the package path.
func NewLabel(packageName, name string) Label {
	return Label{PackageName: normalizePackagePath(packageName), Name: name}
}

func normalizePackagePath(p string) string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "." {
		return ""
	}
	return p
}

// String returns the canonical //pkg:name form.
func (l Label) String() string {
	return "//" + l.PackageName + ":" + l.Name
}

// IsAllTargets returns true if this label is the `:all` pseudo-target for its package.
func (l Label) IsAllTargets() bool {
	return l.Name == allTargetsName
}

// Parent returns the label's package as a directory-target label, i.e. the
// label one would use to depend on "everything this package produces
// directly below it". Returns itself if it has no meaningful parent.
func (l Label) Parent() Label {
	if l.PackageName == "" {
		return l
	}
	dir, _ := path.Split(l.PackageName)
	return NewLabel(dir, allTargetsName)
}

// Less orders labels lexicographically by package then name, giving stable,
// deterministic iteration order anywhere labels are sorted.
func (l Label) Less(o Label) bool {
	if l.PackageName != o.PackageName {
		return l.PackageName < o.PackageName
	}
	return l.Name < o.Name
}

// Labels is a sortable slice of Label.
type Labels []Label

func (s Labels) Len() int           { return len(s) }
func (s Labels) Less(i, j int) bool { return s[i].Less(s[j]) }
func (s Labels) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// ValidateName checks a target name against the portability rules in the
// spec: forbidden characters are rejected regardless of host OS.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("target name must not be empty")
	}
	if i := strings.IndexAny(name, forbiddenNameChars); i != -1 {
		return fmt.Errorf("target name %q contains forbidden character %q", name, name[i])
	}
	return nil
}

// ParseSelector parses one positional CLI argument into a Label. Accepted
// forms: "//pkg:name" and "pkg:name". A string without a colon is not
// parsed and ok is false; Graph.Select then looks it up as a tag name, and a
// bare target name is not looked up across packages. The `all` and `full`
// pseudo-selectors resolve to every target in the package/graph respectively.
func ParseSelector(s string) (Label, bool) {
	s = strings.TrimPrefix(s, "//")
	if i := strings.LastIndex(s, ":"); i != -1 {
		return NewLabel(s[:i], s[i+1:]), true
	}
	return Label{}, false
}
