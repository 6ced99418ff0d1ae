package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetStateTransitions(t *testing.T) {
	target := NewTarget(NewLabel("pkg", "lib"), "copy")
	assert.Equal(t, Pending, target.State())

	assert.True(t, target.SyncUpdateState(Pending, Runnable))
	assert.Equal(t, Runnable, target.State())

	assert.False(t, target.SyncUpdateState(Pending, Running))
	assert.Equal(t, Runnable, target.State())

	target.SetState(Success)
	assert.Equal(t, Success, target.State())
}

func TestTargetStateString(t *testing.T) {
	assert.Equal(t, "Success", Success.String())
	assert.Equal(t, "Failed", Failed.String())
	assert.Equal(t, "Unknown", TargetState(99).String())
}

func TestTargetAddOutputRejectsSecondDirectoryOutput(t *testing.T) {
	target := NewTarget(NewLabel("pkg", "gen"), "gen")
	target.OutputIsDirectory = true
	assert.NoError(t, target.AddOutput("/out/dir"))
	assert.Error(t, target.AddOutput("/out/dir2"))
	assert.Equal(t, []string{"/out/dir"}, target.Outputs())
}

func TestTargetSetOutputsReplaces(t *testing.T) {
	target := NewTarget(NewLabel("pkg", "lib"), "copy")
	assert.NoError(t, target.AddOutput("/out/a"))
	target.SetOutputs([]string{"/out/b", "/out/c"})
	assert.Equal(t, []string{"/out/b", "/out/c"}, target.Outputs())
}

func TestTargetHasTag(t *testing.T) {
	target := NewTarget(NewLabel("pkg", "lib"), "copy")
	target.Tags = []string{"release", "linux"}
	assert.True(t, target.HasTag("release"))
	assert.False(t, target.HasTag("windows"))
}

func TestTargetAllDeclaredDeps(t *testing.T) {
	a := NewLabel("pkg", "a")
	b := NewLabel("pkg", "b")
	target := NewTarget(NewLabel("pkg", "lib"), "copy")
	target.Deps = []Label{a}
	target.ImplicitDeps = func(*Target) []Label { return []Label{b} }
	assert.Equal(t, []Label{a, b}, target.AllDeclaredDeps())
}

func TestTargetRunWithoutRunFuncErrors(t *testing.T) {
	target := NewTarget(NewLabel("pkg", "lib"), "copy")
	err := target.Run(nil)
	assert.Error(t, err)
}

func TestTargetRunAndCleanInvokeHooks(t *testing.T) {
	target := NewTarget(NewLabel("pkg", "lib"), "copy")
	ran, cleaned := false, false
	target.RunFunc = func(RunContext) error { ran = true; return nil }
	target.CleanFunc = func(RunContext) error { cleaned = true; return nil }

	assert.NoError(t, target.Clean(nil))
	assert.True(t, cleaned)
	assert.NoError(t, target.Run(nil))
	assert.True(t, ran)
}

func TestTargetRunPropagatesError(t *testing.T) {
	target := NewTarget(NewLabel("pkg", "lib"), "copy")
	wantErr := errors.New("boom")
	target.RunFunc = func(RunContext) error { return wantErr }
	assert.Equal(t, wantErr, target.Run(nil))
}

func TestTargetString(t *testing.T) {
	target := NewTarget(NewLabel("src/core", "lib"), "copy")
	assert.Equal(t, "//src/core:lib", target.String())
}

func TestTargetRegisterImplicitInput(t *testing.T) {
	target := NewTarget(NewLabel("pkg", "lib"), "copy")
	assert.Empty(t, target.ImplicitInputs())
	target.RegisterImplicitInput("toolchain-v1")
	target.RegisterImplicitInput("flag-x")
	assert.Equal(t, []string{"toolchain-v1", "flag-x"}, target.ImplicitInputs())
}

func TestTargetRegisterImplicitInputOption(t *testing.T) {
	target := NewTarget(NewLabel("pkg", "lib"), "copy")
	assert.Empty(t, target.SignificantOptionNames())
	target.RegisterImplicitInputOption("config")
	assert.Equal(t, []string{"config"}, target.SignificantOptionNames())
}
