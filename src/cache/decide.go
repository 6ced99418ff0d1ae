package cache

import (
	"os"
	"time"

	"github.com/kilnbuild/kiln/src/core"
)

// Decision explains why NeedsBuild returned what it did, for logging.
type Decision struct {
	NeedsBuild bool
	Reason     string
}

// NeedsBuild decides whether target must be rebuilt, given its previous
// record (nil if it has never built successfully), its current effective
// options, its resolved input paths, and whether any of its dependencies
// rebuilt this run. forceRebuild mirrors `--rebuild` forcing every target in
// the run regardless of its recorded state.
func NeedsBuild(target *core.Target, prev *Record, opts map[string]interface{}, inputPaths []string, depsRebuilt bool, forceRebuild bool) Decision {
	if prev == nil {
		return Decision{true, "no previous record"}
	}
	if target.Kind != prev.Kind {
		return Decision{true, "target kind changed"}
	}
	if depsRebuilt {
		return Decision{true, "a dependency rebuilt"}
	}
	if optionsHash(significantOptions(opts, target.SignificantOptionNames())) != prev.OptionsHash {
		return Decision{true, "effective options changed"}
	}
	if inputSetHash(inputPaths) != prev.InputSetHash {
		return Decision{true, "input set changed"}
	}
	if inputSetHash(target.ImplicitInputs()) != prev.ImplicitInputsHash {
		return Decision{true, "implicit input changed"}
	}
	if changed, reason := inputsChanged(prev.Inputs, inputPaths); changed {
		return Decision{true, reason}
	}
	if changed, reason := outputsChanged(target, inputPaths); changed {
		return Decision{true, reason}
	}
	if forceRebuild {
		return Decision{true, "rebuild forced"}
	}
	return Decision{false, "up to date"}
}

// outputsChanged reports whether any declared output is missing or older
// than the newest current input. A directory output's own mtime isn't a
// reliable signal of its contents changing, so its sentinel stamp file is
// checked instead of the directory itself.
func outputsChanged(target *core.Target, inputPaths []string) (bool, string) {
	var newestInput time.Time
	for _, p := range inputPaths {
		if info, err := os.Stat(p); err == nil && info.ModTime().After(newestInput) {
			newestInput = info.ModTime()
		}
	}
	for _, out := range target.Outputs() {
		statPath := out
		if target.OutputIsDirectory {
			statPath = StampPath(out)
		}
		info, err := os.Stat(statPath)
		if err != nil {
			return true, "declared output is missing"
		}
		if !newestInput.IsZero() && info.ModTime().Before(newestInput) {
			return true, "declared output is older than an input"
		}
	}
	return false, ""
}

// inputsChanged compares each input's size and mtime against the recorded
// fingerprint, falling back to a content digest only when size/mtime alone
// can't decide (per §4.5, since mtime resolution or clock skew can make an
// unchanged file look touched).
func inputsChanged(prev []InputFingerprint, current []string) (bool, string) {
	byPath := make(map[string]InputFingerprint, len(prev))
	for _, fp := range prev {
		byPath[fp.Path] = fp
	}
	for _, p := range current {
		info, err := os.Stat(p)
		if err != nil {
			return true, "input is missing: " + p
		}
		old, present := byPath[p]
		if !present {
			return true, "new input: " + p
		}
		if old.Size == info.Size() && old.ModTime == info.ModTime().UnixNano() {
			continue
		}
		digest, err := ContentDigest(p)
		if err != nil {
			return true, "could not digest input: " + p
		}
		if old.Digest == nil || !bytesEqual(old.Digest, digest) {
			return true, "content changed: " + p
		}
	}
	return false, ""
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
