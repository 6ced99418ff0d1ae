package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestGlobRespectsPackageBoundary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"))
	writeFile(t, filepath.Join(root, "sub", "b.txt"))
	writeFile(t, filepath.Join(root, "subpkg", "c.txt"))
	writeFile(t, filepath.Join(root, "subpkg", "BUILD.kiln"))

	SetPackageMarkers([]string{"BUILD.kiln"})
	defer SetPackageMarkers(nil)

	matches, err := Glob(root, []string{"**/*.txt"}, nil, DefaultGlobalExclude)
	assert.NoError(t, err)
	assert.Contains(t, matches, filepath.Join(root, "a.txt"))
	assert.Contains(t, matches, filepath.Join(root, "sub", "b.txt"))
	assert.NotContains(t, matches, filepath.Join(root, "subpkg", "c.txt"))
}

func TestGlobRejectsTrailingDoubleStarSlashStar(t *testing.T) {
	root := t.TempDir()
	_, err := Glob(root, []string{"**/*/"}, nil, nil)
	assert.Error(t, err)
}

func TestGlobExcludesDotfiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hidden.txt"))
	writeFile(t, filepath.Join(root, "visible.txt"))

	matches, err := Glob(root, []string{"*.txt"}, nil, DefaultGlobalExclude)
	assert.NoError(t, err)
	assert.Contains(t, matches, filepath.Join(root, "visible.txt"))
	assert.NotContains(t, matches, filepath.Join(root, ".hidden.txt"))
}

func TestGlobExcludePattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.txt"))
	writeFile(t, filepath.Join(root, "skip.txt"))

	matches, err := Glob(root, []string{"*.txt"}, []string{"skip.txt"}, nil)
	assert.NoError(t, err)
	assert.Contains(t, matches, filepath.Join(root, "keep.txt"))
	assert.NotContains(t, matches, filepath.Join(root, "skip.txt"))
}

func TestIsGlob(t *testing.T) {
	assert.True(t, IsGlob("*.txt"))
	assert.True(t, IsGlob("**/*.go"))
	assert.False(t, IsGlob("plain/path.txt"))
}
