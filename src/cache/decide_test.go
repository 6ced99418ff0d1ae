package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilnbuild/kiln/src/core"
	"github.com/stretchr/testify/assert"
)

func buildUpToDateRecord(t *testing.T, target *core.Target, path string, opts map[string]interface{}) *Record {
	t.Helper()
	record, err := BuildRecord(target, opts, []string{path}, time.Now(), nil)
	assert.NoError(t, err)
	return record
}

func TestNeedsBuildNoPreviousRecord(t *testing.T) {
	target := core.NewTarget(core.NewLabel("pkg", "lib"), "copy")
	decision := NeedsBuild(target, nil, nil, nil, false, false)
	assert.True(t, decision.NeedsBuild)
	assert.Equal(t, "no previous record", decision.Reason)
}

func TestNeedsBuildDependencyRebuilt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	target := core.NewTarget(core.NewLabel("pkg", "lib"), "copy")
	record := buildUpToDateRecord(t, target, path, nil)

	decision := NeedsBuild(target, record, nil, []string{path}, true, false)
	assert.True(t, decision.NeedsBuild)
	assert.Equal(t, "a dependency rebuilt", decision.Reason)
}

func TestNeedsBuildOptionsChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	target := core.NewTarget(core.NewLabel("pkg", "lib"), "copy")
	record := buildUpToDateRecord(t, target, path, map[string]interface{}{"config": "dbg"})

	decision := NeedsBuild(target, record, map[string]interface{}{"config": "release"}, []string{path}, false, false)
	assert.True(t, decision.NeedsBuild)
	assert.Equal(t, "effective options changed", decision.Reason)
}

func TestNeedsBuildInputSetChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	other := filepath.Join(dir, "b.txt")
	assert.NoError(t, os.WriteFile(other, []byte("y"), 0644))
	target := core.NewTarget(core.NewLabel("pkg", "lib"), "copy")
	record := buildUpToDateRecord(t, target, path, nil)

	decision := NeedsBuild(target, record, nil, []string{path, other}, false, false)
	assert.True(t, decision.NeedsBuild)
	assert.Equal(t, "input set changed", decision.Reason)
}

func TestNeedsBuildContentChangedDetectedViaDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	target := core.NewTarget(core.NewLabel("pkg", "lib"), "copy")
	record := buildUpToDateRecord(t, target, path, nil)

	// Same size, but force the recorded mtime into the past so the
	// size/mtime fast path can't short-circuit and a digest is taken.
	record.Inputs[0].ModTime = 0
	record.Inputs[0].Digest = []byte("stale-digest")

	decision := NeedsBuild(target, record, nil, []string{path}, false, false)
	assert.True(t, decision.NeedsBuild)
	assert.Contains(t, decision.Reason, "content changed")
}

func TestNeedsBuildMissingDeclaredOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	target := core.NewTarget(core.NewLabel("pkg", "lib"), "copy")
	assert.NoError(t, target.AddOutput(filepath.Join(dir, "missing.bin")))
	record := buildUpToDateRecord(t, target, path, nil)

	decision := NeedsBuild(target, record, nil, []string{path}, false, false)
	assert.True(t, decision.NeedsBuild)
	assert.Equal(t, "declared output is missing", decision.Reason)
}

func TestNeedsBuildForceRebuild(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	target := core.NewTarget(core.NewLabel("pkg", "lib"), "copy")
	record := buildUpToDateRecord(t, target, path, nil)

	decision := NeedsBuild(target, record, nil, []string{path}, false, true)
	assert.True(t, decision.NeedsBuild)
	assert.Equal(t, "rebuild forced", decision.Reason)
}

func TestNeedsBuildUpToDate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	target := core.NewTarget(core.NewLabel("pkg", "lib"), "copy")
	record := buildUpToDateRecord(t, target, path, nil)

	decision := NeedsBuild(target, record, nil, []string{path}, false, false)
	assert.False(t, decision.NeedsBuild)
	assert.Equal(t, "up to date", decision.Reason)
}

func TestNeedsBuildKindChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	target := core.NewTarget(core.NewLabel("pkg", "lib"), "copy")
	record := buildUpToDateRecord(t, target, path, nil)
	record.Kind = "gen"

	decision := NeedsBuild(target, record, nil, []string{path}, false, false)
	assert.True(t, decision.NeedsBuild)
	assert.Equal(t, "target kind changed", decision.Reason)
}

func TestNeedsBuildIgnoresInsignificantOptionChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	target := core.NewTarget(core.NewLabel("pkg", "lib"), "copy")
	target.RegisterImplicitInputOption("config")
	record := buildUpToDateRecord(t, target, path, map[string]interface{}{"config": "dbg", "noise": "a"})

	decision := NeedsBuild(target, record, map[string]interface{}{"config": "dbg", "noise": "b"}, []string{path}, false, false)
	assert.False(t, decision.NeedsBuild)
}

func TestNeedsBuildDetectsSignificantOptionChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	target := core.NewTarget(core.NewLabel("pkg", "lib"), "copy")
	target.RegisterImplicitInputOption("config")
	record := buildUpToDateRecord(t, target, path, map[string]interface{}{"config": "dbg"})

	decision := NeedsBuild(target, record, map[string]interface{}{"config": "release"}, []string{path}, false, false)
	assert.True(t, decision.NeedsBuild)
	assert.Equal(t, "effective options changed", decision.Reason)
}

func TestNeedsBuildDetectsImplicitInputChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	target := core.NewTarget(core.NewLabel("pkg", "lib"), "copy")
	target.RegisterImplicitInput("toolchain-v1")
	record := buildUpToDateRecord(t, target, path, nil)

	target.RegisterImplicitInput("toolchain-v2")
	decision := NeedsBuild(target, record, nil, []string{path}, false, false)
	assert.True(t, decision.NeedsBuild)
	assert.Equal(t, "implicit input changed", decision.Reason)
}

func TestNeedsBuildDetectsDirectoryOutputStaleViaStamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	outDir := t.TempDir()
	target := core.NewTarget(core.NewLabel("pkg", "lib"), "gen")
	target.OutputIsDirectory = true
	assert.NoError(t, target.AddOutput(outDir))
	assert.NoError(t, WriteStamp(outDir))
	record, err := BuildRecord(target, nil, []string{path}, time.Now(), ContentDigest)
	assert.NoError(t, err)

	decision := NeedsBuild(target, record, nil, []string{path}, false, false)
	assert.False(t, decision.NeedsBuild)

	// Input touched after the stamp: output must be considered stale even
	// though the directory's own mtime never changed.
	future := time.Now().Add(time.Hour)
	assert.NoError(t, os.Chtimes(path, future, future))

	decision = NeedsBuild(target, record, nil, []string{path}, false, false)
	assert.True(t, decision.NeedsBuild)
	assert.Equal(t, "declared output is older than an input", decision.Reason)
}
