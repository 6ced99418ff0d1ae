package core

import (
	"path"
	"sort"
	"sync"
)

// Package groups the targets declared by a single build file.
type Package struct {
	// Name is the package's path, e.g. "spam/eggs".
	Name string
	// DefFile is the build file that declared this package.
	DefFile string

	mu      sync.RWMutex
	targets map[string]*Target
}

// NewPackage returns an empty package named name, defined by defFile.
func NewPackage(name, defFile string) *Package {
	return &Package{Name: name, DefFile: defFile, targets: map[string]*Target{}}
}

// AddTarget registers t under this package. Callers are expected to also
// register t with the owning Graph; Package only tracks membership.
func (p *Package) AddTarget(t *Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets[t.Label.Name] = t
}

// Target returns the named target within this package, or nil.
func (p *Package) Target(name string) *Target {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.targets[name]
}

// TargetNames returns every target name in this package, sorted.
func (p *Package) TargetNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.targets))
	for n := range p.targets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dir returns the filesystem directory this package corresponds to, given a
// repo root.
func (p *Package) Dir(repoRoot string) string {
	return path.Join(repoRoot, p.Name)
}

// PackageSet holds every package registered during parse, keyed by name.
type PackageSet struct {
	mu       sync.RWMutex
	packages map[string]*Package
}

// NewPackageSet returns an empty set.
func NewPackageSet() *PackageSet {
	return &PackageSet{packages: map[string]*Package{}}
}

// GetOrCreate returns the existing package named name, creating it (defined
// by defFile) if it doesn't exist yet.
func (s *PackageSet) GetOrCreate(name, defFile string) *Package {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pkg, present := s.packages[name]; present {
		return pkg
	}
	pkg := NewPackage(name, defFile)
	s.packages[name] = pkg
	return pkg
}

// Get returns the package named name, or nil.
func (s *PackageSet) Get(name string) *Package {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.packages[name]
}

// Names returns every registered package name, sorted.
func (s *PackageSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.packages))
	for n := range s.packages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
