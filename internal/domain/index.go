package domain

import "sort"

// RuleIndex maps normalized species names to their rules in input order.
// It is never mutated after ParseRules returns, so concurrent reads are safe.
type RuleIndex struct {
	bySpecies map[string][]Rule
	count     int
}

func newRuleIndex() *RuleIndex {
	return &RuleIndex{bySpecies: make(map[string][]Rule)}
}

func (idx *RuleIndex) add(r Rule) {
	idx.bySpecies[r.Species] = append(idx.bySpecies[r.Species], r)
	idx.count++
}

// Rules returns the rules for species, or nil when there are none.
func (idx *RuleIndex) Rules(species string) []Rule {
	if idx == nil {
		return nil
	}
	return idx.bySpecies[NormalizeSpecies(species)]
}

// Has reports whether any rule exists for species.
func (idx *RuleIndex) Has(species string) bool {
	return len(idx.Rules(species)) > 0
}

// Species returns the normalized species keys in sorted order.
func (idx *RuleIndex) Species() []string {
	if idx == nil {
		return nil
	}
	out := make([]string, 0, len(idx.bySpecies))
	for s := range idx.bySpecies {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of rules.
func (idx *RuleIndex) Len() int {
	if idx == nil {
		return 0
	}
	return idx.count
}

// SpeciesCount returns the number of distinct species with rules.
func (idx *RuleIndex) SpeciesCount() int {
	if idx == nil {
		return 0
	}
	return len(idx.bySpecies)
}

// Match returns the first rule matching obs.
func (idx *RuleIndex) Match(obs Observation) (Rule, bool) {
	for _, r := range idx.Rules(obs.Species) {
		if r.Matches(obs) {
			return r, true
		}
	}
	return Rule{}, false
}

// IsNotable reports whether obs matches at least one rule for its species.
// Species without rules are never notable.
func IsNotable(obs Observation, idx *RuleIndex) bool {
	_, ok := idx.Match(obs)
	return ok
}
