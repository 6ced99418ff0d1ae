package core

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// PropertyKind is the type tag of a Property's value.
type PropertyKind int

// The kinds a Property may hold, per the spec's data model.
const (
	KindString PropertyKind = iota
	KindPath
	KindOutputDir
	KindBool
	KindStringList
	KindEnum
)

// Property is a named, immutable value defined once during parse.
type Property struct {
	Name    string
	Kind    PropertyKind
	Value   interface{}
	Domain  []string // allowed values, only meaningful for KindEnum
	DefFile string    // build file that defined it, for error attribution
}

// substitutionPattern matches ${name} references inside a property's string
// value. Compiling it once and reusing it avoids repeated regexp allocation
// on every Get call, the same trick the teacher applies with DeferredRegexp.
var substitutionPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.]+)\}`)

// DuplicateDefinitionError is returned when a property or option is defined twice.
type DuplicateDefinitionError struct {
	Name string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("property or option %q is already defined", e.Name)
}

// PropertyCycleError is returned when ${...} substitution would recurse forever.
type PropertyCycleError struct {
	Chain []string
}

func (e *PropertyCycleError) Error() string {
	return fmt.Sprintf("property substitution cycle: %s", strings.Join(e.Chain, " -> "))
}

// PropertyStore holds every property defined across all build files parsed
// so far. It has no frozen state; freezing the owning Graph does not stop
// further Define calls.
type PropertyStore struct {
	mu         sync.Mutex
	properties map[string]*Property
}

// NewPropertyStore returns an empty store.
func NewPropertyStore() *PropertyStore {
	return &PropertyStore{properties: map[string]*Property{}}
}

// Define registers a new property. Paths are normalized to absolute form
// immediately, using baseDir (the defining build file's directory) as the
// base for relative inputs, per the spec.
func (s *PropertyStore) Define(name string, kind PropertyKind, value interface{}, baseDir, defFile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, present := s.properties[name]; present {
		return &DuplicateDefinitionError{Name: name}
	}
	if kind == KindPath || kind == KindOutputDir {
		if str, ok := value.(string); ok && !filepath.IsAbs(str) {
			value = filepath.Clean(filepath.Join(baseDir, str))
		}
	}
	s.properties[name] = &Property{Name: name, Kind: kind, Value: value, DefFile: defFile}
	return nil
}

// Get returns the named property's value, with any string value expanded
// through ${...} substitution. Unknown names and substitution cycles fail.
func (s *PropertyStore) Get(name string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, present := s.properties[name]
	if !present {
		return nil, fmt.Errorf("property %q is not defined", name)
	}
	if str, ok := p.Value.(string); ok {
		expanded, err := s.expand(str, map[string]bool{name: true})
		if err != nil {
			return nil, err
		}
		return expanded, nil
	}
	return p.Value, nil
}

// ExpandString performs ${name} substitution against an arbitrary string,
// not just a previously-defined property's value. Used by the build context
// facade's Expand operation.
func (s *PropertyStore) ExpandString(value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expand(value, map[string]bool{})
}

// expand performs the recursive ${name} substitution scan described in §4.1.
// visiting tracks the names already on the current expansion stack so a
// cycle is reported with the full chain rather than silently looping.
func (s *PropertyStore) expand(value string, visiting map[string]bool) (string, error) {
	var cycleErr error
	result := substitutionPattern.ReplaceAllStringFunc(value, func(match string) string {
		if cycleErr != nil {
			return match
		}
		name := match[2 : len(match)-1]
		if visiting[name] {
			chain := make([]string, 0, len(visiting)+1)
			for n := range visiting {
				chain = append(chain, n)
			}
			cycleErr = &PropertyCycleError{Chain: append(chain, name)}
			return match
		}
		p, present := s.properties[name]
		if !present {
			cycleErr = fmt.Errorf("unknown property %q referenced in substitution", name)
			return match
		}
		str, ok := p.Value.(string)
		if !ok {
			cycleErr = fmt.Errorf("property %q is not a string and cannot be substituted", name)
			return match
		}
		visiting[name] = true
		expanded, err := s.expand(str, visiting)
		delete(visiting, name)
		if err != nil {
			cycleErr = err
			return match
		}
		return expanded
	})
	if cycleErr != nil {
		return "", cycleErr
	}
	return result, nil
}

// Has reports whether a property with this name has been defined.
func (s *PropertyStore) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, present := s.properties[name]
	return present
}
