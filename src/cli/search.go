package cli

import (
	"regexp"
	"sort"
	"strings"

	levenshtein "github.com/texttheater/golang-levenshtein/levenshtein"
	"golang.org/x/sync/errgroup"

	"github.com/kilnbuild/kiln/src/core"
)

// Search returns every target whose label or tags match query, which may be
// a plain substring or a /regex/-delimited pattern. Each target is matched
// in its own goroutine since a large repo can have thousands of them.
func Search(g *core.Graph, query string) ([]core.Label, error) {
	matcher, err := newMatcher(query)
	if err != nil {
		return nil, err
	}
	targets := g.AllTargets()
	var g2 errgroup.Group
	matched := make([][]core.Label, len(targets))
	for i, t := range targets {
		i, t := i, t
		g2.Go(func() error {
			if matcher(t.Label.String()) {
				matched[i] = []core.Label{t.Label}
				return nil
			}
			for _, tag := range t.Tags {
				if matcher(tag) {
					matched[i] = []core.Label{t.Label}
					return nil
				}
			}
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return nil, err
	}
	var out []core.Label
	for _, m := range matched {
		out = append(out, m...)
	}
	sort.Sort(core.Labels(out))
	return out, nil
}

func newMatcher(query string) (func(string) bool, error) {
	if strings.HasPrefix(query, "/") && strings.HasSuffix(query, "/") && len(query) > 1 {
		re, err := regexp.Compile(query[1 : len(query)-1])
		if err != nil {
			return nil, err
		}
		return re.MatchString, nil
	}
	return func(s string) bool { return strings.Contains(s, query) }, nil
}

// suggestionLimit bounds how many "did you mean" candidates FindTarget offers.
const suggestionLimit = 3

// FindTarget looks up name as an exact target name first; failing that, it
// suggests the closest names by edit distance, the same "did you mean"
// experience as a typo'd package manager command.
func FindTarget(g *core.Graph, name string) (*core.Target, []string) {
	for _, t := range g.AllTargets() {
		if t.Label.Name == name || t.Label.String() == name {
			return t, nil
		}
	}
	type scored struct {
		name  string
		score int
	}
	var scores []scored
	for _, t := range g.AllTargets() {
		d := levenshtein.DistanceForStrings([]rune(name), []rune(t.Label.Name), levenshtein.DefaultOptions)
		scores = append(scores, scored{t.Label.String(), d})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score < scores[j].score })
	var suggestions []string
	for i := 0; i < len(scores) && i < suggestionLimit; i++ {
		suggestions = append(suggestions, scores[i].name)
	}
	return nil, suggestions
}
