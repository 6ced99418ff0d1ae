package core

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
)

// initialFixedPart finds the fixed prefix before the first wildcard segment
// of a glob pattern, so resolution can start walking there instead of at the
// package root. Mirrors the optimisation in the teacher's core/glob.go.
var initialFixedPart = regexp.MustCompile(`([^*]+)/(.*)`)

// trailingDoubleStar rejects "**/*/ " at the end of a pattern: matching a
// trailing directory with ** is an unbounded-fanout pattern that defeats the
// O(N) globbing contract in §8.
var trailingDoubleStar = regexp.MustCompile(`\*\*/\*/$`)

// IsGlob reports whether pattern contains glob metacharacters.
func IsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// GlobalExcludePredicate decides whether a resolved path should be dropped
// regardless of any path-set's own excludes. The default matches the
// teacher's hidden/temp-file skip plus the spec's `.nfs*` example.
type GlobalExcludePredicate func(name string) bool

// DefaultGlobalExclude implements the spec's default global exclude:
// NFS silly-rename files and dotfiles/backup files.
func DefaultGlobalExclude(name string) bool {
	base := path.Base(name)
	if strings.HasPrefix(base, ".nfs") {
		return true
	}
	if strings.HasPrefix(base, ".") || (strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#")) {
		return true
	}
	return false
}

// Glob resolves a set of Ant-style include/exclude patterns rooted at
// rootPath. `**` matches zero or more path components; `*` matches one
// filename component; `?` matches one character. A pattern ending in
// `**/*/` is rejected to preserve the O(N) globbing contract.
func Glob(rootPath string, includes, excludes []string, exclude GlobalExcludePredicate) ([]string, error) {
	for _, inc := range includes {
		if trailingDoubleStar.MatchString(inc) {
			return nil, fmt.Errorf("glob pattern %q ending in **/*/ is not allowed", inc)
		}
	}
	seen := map[string]bool{}
	var out []string
	for _, include := range includes {
		matches, err := globOne(rootPath, include)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if exclude != nil && exclude(m) {
				continue
			}
			if shouldExcludeMatch(m, excludes) {
				continue
			}
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func shouldExcludeMatch(match string, excludes []string) bool {
	for _, excl := range excludes {
		test := match
		if strings.ContainsRune(match, '/') && !strings.ContainsRune(excl, '/') {
			test = path.Base(match)
		}
		if ok, err := filepath.Match(excl, test); ok || err != nil {
			return true
		}
	}
	return false
}

func globOne(rootPath, pattern string) ([]string, error) {
	if !strings.Contains(pattern, "*") && !strings.Contains(pattern, "?") {
		full := path.Join(rootPath, pattern)
		if _, err := os.Stat(full); err != nil {
			return nil, nil
		}
		return []string{full}, nil
	}
	if !strings.Contains(pattern, "**") {
		return filepath.Glob(path.Join(rootPath, pattern))
	}
	// Optimisation: walk only beneath the fixed prefix before the first wildcard.
	walkRoot := rootPath
	walkPattern := pattern
	if m := initialFixedPart.FindStringSubmatch(pattern); m != nil {
		walkRoot = path.Join(rootPath, m[1])
		walkPattern = m[2]
	}
	if _, err := os.Stat(walkRoot); err != nil {
		return nil, nil
	}
	full := "^" + path.Join(walkRoot, walkPattern) + "$"
	full = strings.ReplaceAll(full, "*", "[^/]*")
	full = strings.ReplaceAll(full, "[^/]*[^/]*", ".*")
	full = strings.ReplaceAll(full, "/.*/", "/(?:.*/)?")
	re, err := regexp.Compile(full)
	if err != nil {
		return nil, err
	}
	var matches []string
	err = godirwalk.Walk(walkRoot, &godirwalk.Options{
		Unsorted: true,
		Callback: func(name string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				if name != walkRoot && IsPackageDir(name) {
					return filepath.SkipDir
				}
				return nil
			}
			if re.MatchString(name) {
				matches = append(matches, name)
			}
			return nil
		},
	})
	return matches, err
}

// packageMarker, when non-nil, names the build-file filename(s) that mark a
// directory as a package boundary glob resolution must not cross.
var packageMarkerNames []string
var packageMarkerMu sync.RWMutex

// SetPackageMarkers configures the filenames (e.g. "BUILD.kiln") that mark
// package boundaries for IsPackageDir.
func SetPackageMarkers(names []string) {
	packageMarkerMu.Lock()
	packageMarkerNames = names
	packageMarkerMu.Unlock()
}

// IsPackageDir reports whether dir contains a build file, and hence globbing
// must not descend past it (a glob cannot reach into a sub-package).
func IsPackageDir(dir string) bool {
	packageMarkerMu.RLock()
	names := packageMarkerNames
	packageMarkerMu.RUnlock()
	for _, n := range names {
		if _, err := os.Stat(path.Join(dir, n)); err == nil {
			return true
		}
	}
	return false
}
