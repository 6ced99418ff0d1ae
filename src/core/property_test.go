package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPropertyDefineAndGet(t *testing.T) {
	s := NewPropertyStore()
	assert.NoError(t, s.Define("greeting", KindString, "hello", "/repo", "BUILD.kiln"))
	v, err := s.Get("greeting")
	assert.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestPropertyDuplicateDefinition(t *testing.T) {
	s := NewPropertyStore()
	assert.NoError(t, s.Define("x", KindString, "1", "/repo", "BUILD.kiln"))
	err := s.Define("x", KindString, "2", "/repo", "BUILD.kiln")
	assert.Error(t, err)
	var dupErr *DuplicateDefinitionError
	assert.ErrorAs(t, err, &dupErr)
}

func TestPropertyPathNormalization(t *testing.T) {
	s := NewPropertyStore()
	assert.NoError(t, s.Define("out", KindPath, "build/out", "/repo/pkg", "BUILD.kiln"))
	v, err := s.Get("out")
	assert.NoError(t, err)
	assert.Equal(t, "/repo/pkg/build/out", v)
}

func TestPropertySubstitution(t *testing.T) {
	s := NewPropertyStore()
	assert.NoError(t, s.Define("base", KindString, "/repo", "/repo", "BUILD.kiln"))
	assert.NoError(t, s.Define("derived", KindString, "${base}/out", "/repo", "BUILD.kiln"))
	v, err := s.Get("derived")
	assert.NoError(t, err)
	assert.Equal(t, "/repo/out", v)
}

func TestPropertySubstitutionCycle(t *testing.T) {
	s := NewPropertyStore()
	assert.NoError(t, s.Define("a", KindString, "${b}", "/repo", "BUILD.kiln"))
	assert.NoError(t, s.Define("b", KindString, "${a}", "/repo", "BUILD.kiln"))
	_, err := s.Get("a")
	assert.Error(t, err)
	var cycleErr *PropertyCycleError
	assert.ErrorAs(t, err, &cycleErr)
}

func TestPropertyUnknownName(t *testing.T) {
	s := NewPropertyStore()
	_, err := s.Get("missing")
	assert.Error(t, err)
}

func TestExpandStringSubstitutesArbitraryValue(t *testing.T) {
	s := NewPropertyStore()
	assert.NoError(t, s.Define("base", KindString, "/repo", "/repo", "BUILD.kiln"))
	v, err := s.ExpandString("path is ${base}/out")
	assert.NoError(t, err)
	assert.Equal(t, "path is /repo/out", v)
}

func TestExpandStringDetectsCycle(t *testing.T) {
	s := NewPropertyStore()
	assert.NoError(t, s.Define("a", KindString, "${b}", "/repo", "BUILD.kiln"))
	assert.NoError(t, s.Define("b", KindString, "${a}", "/repo", "BUILD.kiln"))
	_, err := s.ExpandString("${a}")
	assert.Error(t, err)
	var cycleErr *PropertyCycleError
	assert.ErrorAs(t, err, &cycleErr)
}
