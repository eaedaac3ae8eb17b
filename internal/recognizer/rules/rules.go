// Package rules provides a dictionary and rule based entity tagger.
//
// It needs no external model: known names come from a gazetteer (built-in
// defaults plus an optional YAML file) and numeric or temporal expressions
// come from a fixed table of regular expressions. Overlapping candidates are
// resolved greedily from the left, preferring the longer span and then the
// higher-priority rule.
package rules

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category labels emitted by the tagger.
const (
	labelMoney    = "MONEY"
	labelCardinal = "CARDINAL"
	labelDate     = "DATE"
	labelTime     = "TIME"
	labelOrg      = "ORG"
	labelPerson   = "PERSON"
	labelGPE      = "GPE"
)

// Entity is a labelled byte range [Start, End) of the tagged text.
type Entity struct {
	Start int
	End   int
	Label string
}

// term is a gazetteer entry.
type term struct {
	text  string
	label string
}

// Tagger tags gazetteer terms and rule matches in text.
// A Tagger is immutable after construction and safe for concurrent use.
type Tagger struct {
	terms []term
	rules []rule
}

// New creates a Tagger from the built-in gazetteer extended by the YAML file
// at gazetteerPath. An empty path uses the built-in gazetteer only.
func New(gazetteerPath string) (*Tagger, error) {
	g := DefaultGazetteer()
	if gazetteerPath != "" {
		extra, err := LoadGazetteer(gazetteerPath)
		if err != nil {
			return nil, err
		}
		g.Merge(extra)
	}
	return NewFromGazetteer(g), nil
}

// NewFromGazetteer creates a Tagger using exactly the given gazetteer.
func NewFromGazetteer(g Gazetteer) *Tagger {
	labels := make([]string, 0, len(g))
	for label := range g {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	seen := make(map[string]struct{})
	terms := make([]term, 0)
	for _, label := range labels {
		for _, text := range g[label] {
			if _, ok := seen[text]; ok {
				continue
			}
			seen[text] = struct{}{}
			terms = append(terms, term{text: text, label: label})
		}
	}

	// Longest first so "New Delhi" is tried before "Delhi".
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i].text) != len(terms[j].text) {
			return len(terms[i].text) > len(terms[j].text)
		}
		return terms[i].text < terms[j].text
	})

	return &Tagger{terms: terms, rules: builtInRules}
}

// Terms returns the number of gazetteer terms.
func (t *Tagger) Terms() int {
	return len(t.terms)
}

// candidate is an entity plus the priority used to break ties.
type candidate struct {
	Entity
	priority int
}

// Tag returns the non-overlapping entities in text ordered by Start.
func (t *Tagger) Tag(text string) []Entity {
	if text == "" {
		return nil
	}

	var candidates []candidate

	// Gazetteer terms beat every rule on an identical span.
	for _, tm := range t.terms {
		for _, loc := range findTerm(text, tm.text) {
			candidates = append(candidates, candidate{
				Entity:   Entity{Start: loc[0], End: loc[1], Label: tm.label},
				priority: 0,
			})
		}
	}

	for _, r := range t.rules {
		for _, m := range r.Regex.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*r.Group], m[2*r.Group+1]
			if start < 0 || start == end {
				continue
			}
			candidates = append(candidates, candidate{
				Entity:   Entity{Start: start, End: end, Label: r.Label},
				priority: r.Priority,
			})
		}
	}

	return resolve(candidates)
}

// resolve picks non-overlapping candidates left to right.
func resolve(candidates []candidate) []Entity {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if la, lb := a.End-a.Start, b.End-b.Start; la != lb {
			return la > lb
		}
		return a.priority < b.priority
	})

	entities := make([]Entity, 0, len(candidates))
	lastEnd := 0
	for _, c := range candidates {
		if c.Start < lastEnd {
			continue
		}
		entities = append(entities, c.Entity)
		lastEnd = c.End
	}
	return entities
}

// findTerm returns every whole-word occurrence of term in text.
func findTerm(text, term string) [][2]int {
	if term == "" {
		return nil
	}

	var locs [][2]int
	offset := 0
	for offset <= len(text)-len(term) {
		i := strings.Index(text[offset:], term)
		if i < 0 {
			break
		}
		start := offset + i
		end := start + len(term)
		if isBoundary(text, start, end) {
			locs = append(locs, [2]int{start, end})
			offset = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return locs
}

// isBoundary reports whether text[start:end] is not glued to a word
// character on either side.
func isBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
