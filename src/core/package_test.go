package core

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackageAddAndGetTarget(t *testing.T) {
	pkg := NewPackage("pkg/sub", "BUILD.kiln")
	target := NewTarget(NewLabel("pkg/sub", "lib"), "copy")
	pkg.AddTarget(target)
	assert.Equal(t, target, pkg.Target("lib"))
	assert.Nil(t, pkg.Target("missing"))
}

func TestPackageTargetNamesSorted(t *testing.T) {
	pkg := NewPackage("pkg", "BUILD.kiln")
	pkg.AddTarget(NewTarget(NewLabel("pkg", "b"), "copy"))
	pkg.AddTarget(NewTarget(NewLabel("pkg", "a"), "copy"))
	assert.Equal(t, []string{"a", "b"}, pkg.TargetNames())
}

func TestPackageDir(t *testing.T) {
	pkg := NewPackage("pkg/sub", "BUILD.kiln")
	assert.Equal(t, filepath.Join("/repo", "pkg/sub"), pkg.Dir("/repo"))
}

func TestPackageSetGetOrCreateIsIdempotent(t *testing.T) {
	s := NewPackageSet()
	first := s.GetOrCreate("pkg", "BUILD.kiln")
	second := s.GetOrCreate("pkg", "BUILD.kiln")
	assert.Same(t, first, second)
}

func TestPackageSetGetMissing(t *testing.T) {
	s := NewPackageSet()
	assert.Nil(t, s.Get("missing"))
}

func TestPackageSetNamesSorted(t *testing.T) {
	s := NewPackageSet()
	s.GetOrCreate("b", "BUILD.kiln")
	s.GetOrCreate("a", "BUILD.kiln")
	assert.Equal(t, []string{"a", "b"}, s.Names())
}
