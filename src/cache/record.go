// Package cache implements the incremental up-to-date engine: a persisted,
// per-target fingerprint of inputs and options, used to decide whether a
// target can be skipped on the next run.
package cache

import (
	"os"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/kilnbuild/kiln/src/core"
)

// InputFingerprint is the recorded state of one input path at the time a
// target last built successfully.
type InputFingerprint struct {
	Path    string
	Size    int64
	ModTime int64 // UnixNano
	Digest  []byte // content digest, populated whenever BuildRecord is given a digest function
}

// Record is the persisted cache entry for one target.
type Record struct {
	Label              string
	Kind               string
	OptionsHash        uint64
	InputSetHash       uint64
	ImplicitInputsHash uint64
	Inputs             []InputFingerprint
	LastSuccess        int64 // UnixNano
}

// significantOptions narrows opts down to the names a target registered via
// RegisterImplicitInputOption, so changing an option the target never reads
// doesn't force a rebuild. A target that registered none is treated as
// considering every effective option significant.
func significantOptions(opts map[string]interface{}, names []string) map[string]interface{} {
	if len(names) == 0 {
		return opts
	}
	out := make(map[string]interface{}, len(names))
	for _, n := range names {
		if v, present := opts[n]; present {
			out[n] = v
		}
	}
	return out
}

// optionsHash hashes a target's effective options into a single stable
// value; map iteration order is normalised by sorting keys first.
func optionsHash(opts map[string]interface{}) uint64 {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := xxhash.New()
	for _, k := range keys {
		h.WriteString(k)
		h.WriteString("=")
		h.WriteString(toHashString(opts[k]))
		h.WriteString(";")
	}
	return h.Sum64()
}

func toHashString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []string:
		return sortedJoin(t)
	default:
		return ""
	}
}

func sortedJoin(ss []string) string {
	cp := append([]string{}, ss...)
	sort.Strings(cp)
	out := ""
	for _, s := range cp {
		out += s + ","
	}
	return out
}

// inputSetHash hashes the sorted list of absolute input paths, independent
// of file content, so a path being added or removed is detected cheaply
// before any per-file stat or digest work happens.
func inputSetHash(paths []string) uint64 {
	sorted := append([]string{}, paths...)
	sort.Strings(sorted)
	h := xxhash.New()
	for _, p := range sorted {
		h.WriteString(p)
		h.WriteString("\x00")
	}
	return h.Sum64()
}

// BuildRecord produces the Record that would be persisted for target if it
// built successfully right now, given its resolved input paths.
func BuildRecord(target *core.Target, opts map[string]interface{}, inputPaths []string, now time.Time, digestFn func(string) ([]byte, error)) (*Record, error) {
	fps := make([]InputFingerprint, 0, len(inputPaths))
	sorted := append([]string{}, inputPaths...)
	sort.Strings(sorted)
	for _, p := range sorted {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		fp := InputFingerprint{Path: p, Size: info.Size(), ModTime: info.ModTime().UnixNano()}
		if digestFn != nil {
			if d, err := digestFn(p); err == nil {
				fp.Digest = d
			}
		}
		fps = append(fps, fp)
	}
	return &Record{
		Label:              target.Label.String(),
		Kind:               target.Kind,
		OptionsHash:        optionsHash(significantOptions(opts, target.SignificantOptionNames())),
		InputSetHash:       inputSetHash(inputPaths),
		ImplicitInputsHash: inputSetHash(target.ImplicitInputs()),
		Inputs:             fps,
		LastSuccess:        now.UnixNano(),
	}, nil
}
