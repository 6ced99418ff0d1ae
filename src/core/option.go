package core

import (
	"fmt"
	"sync"
)

// OptionDef is the definition of a tunable: its default and, optionally, the
// set of values it may take.
type OptionDef struct {
	Name    string
	Default interface{}
	Domain  []string // empty means any value is acceptable
}

// optionsPrematureAccessError is returned when effective options are
// requested before end-of-parse, per §4.1.
type optionsPrematureAccessError struct {
	Target Label
}

func (e *optionsPrematureAccessError) Error() string {
	return fmt.Sprintf("effective options for %s requested before end-of-parse", e.Target)
}

// OptionStore is the two-level property/option map described in §3: a
// global layer plus a per-target overlay, computed into a frozen mapping
// exactly once per target after parse ends.
type OptionStore struct {
	mu       sync.Mutex
	defs     map[string]OptionDef
	global   map[string]interface{}
	overlays map[Label]map[string]interface{}
	frozen   bool
	effective map[Label]map[string]interface{}
}

// NewOptionStore returns an empty store.
func NewOptionStore() *OptionStore {
	return &OptionStore{
		defs:     map[string]OptionDef{},
		global:   map[string]interface{}{},
		overlays: map[Label]map[string]interface{}{},
	}
}

// Define registers a new option. Re-definition fails, matching properties.
func (s *OptionStore) Define(name string, def interface{}, domain []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, present := s.defs[name]; present {
		return &DuplicateDefinitionError{Name: name}
	}
	s.defs[name] = OptionDef{Name: name, Default: def, Domain: domain}
	s.global[name] = def
	return nil
}

// SetGlobal overrides an option's value at the global layer. Must precede freeze.
func (s *OptionStore) SetGlobal(name string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validate(name, value); err != nil {
		return err
	}
	s.global[name] = value
	return nil
}

// SetOverride overrides an option's value for one target. Must precede freeze.
func (s *OptionStore) SetOverride(target Label, name string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validate(name, value); err != nil {
		return err
	}
	overlay, present := s.overlays[target]
	if !present {
		overlay = map[string]interface{}{}
		s.overlays[target] = overlay
	}
	overlay[name] = value
	return nil
}

func (s *OptionStore) validate(name string, value interface{}) error {
	def, present := s.defs[name]
	if !present {
		return fmt.Errorf("option %q is not defined", name)
	}
	if len(def.Domain) == 0 {
		return nil
	}
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("option %q has a restricted domain and requires a string value", name)
	}
	for _, allowed := range def.Domain {
		if allowed == str {
			return nil
		}
	}
	return fmt.Errorf("value %q is not in the allowed domain for option %q", str, name)
}

// Freeze computes the effective options (global defaults plus overlays) for
// every label in targets and marks the store frozen. Define, SetGlobal and
// SetOverride do not check the frozen flag, so later calls still change the
// store; effective options already computed are not updated.
func (s *OptionStore) Freeze(targets []Label) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.effective = make(map[Label]map[string]interface{}, len(targets))
	for _, t := range targets {
		merged := make(map[string]interface{}, len(s.global))
		for k, v := range s.global {
			merged[k] = v
		}
		for k, v := range s.overlays[t] {
			merged[k] = v
		}
		s.effective[t] = merged
	}
	s.frozen = true
}

// EffectiveOptionsFor returns the frozen option mapping for a target. Calling
// this before Freeze has run is a programming error, per §4.1.
func (s *OptionStore) EffectiveOptionsFor(target Label) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.frozen {
		return nil, &optionsPrematureAccessError{Target: target}
	}
	opts, present := s.effective[target]
	if !present {
		// Target was not passed to Freeze; it gets the current global layer.
		opts = map[string]interface{}{}
		for k, v := range s.global {
			opts[k] = v
		}
	}
	return opts, nil
}
