// Package detector matches transcripts against a mutable moderation term
// set: case-insensitive, whole-word boundaries.
package detector

import (
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Detector holds the banned term set. All methods are safe for concurrent
// use; detection is read-mostly.
type Detector struct {
	mu    sync.RWMutex
	terms map[string]struct{}
}

// New builds a detector seeded with the initial terms.
func New(terms []string) *Detector {
	d := &Detector{terms: make(map[string]struct{}, len(terms))}
	d.AddTerms(terms...)
	return d
}

func normalizeTerm(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// AddTerms inserts terms into the set. Empty strings are ignored.
func (d *Detector) AddTerms(terms ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range terms {
		if n := normalizeTerm(t); n != "" {
			d.terms[n] = struct{}{}
		}
	}
}

// RemoveTerms deletes terms from the set.
func (d *Detector) RemoveTerms(terms ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range terms {
		delete(d.terms, normalizeTerm(t))
	}
}

// Terms returns the current term set, sorted.
func (d *Detector) Terms() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.terms))
	for t := range d.terms {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Detect tokenizes the text on non-word boundaries and reports which banned
// terms appear. Matched terms come back deduplicated, in order of first
// appearance.
func (d *Detector) Detect(text string) (bool, []string) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})

	d.mu.RLock()
	defer d.mu.RUnlock()
	var matched []string
	seen := make(map[string]struct{})
	for _, w := range words {
		w = strings.Trim(w, "'")
		if _, banned := d.terms[w]; !banned {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		matched = append(matched, w)
	}
	return len(matched) > 0, matched
}
