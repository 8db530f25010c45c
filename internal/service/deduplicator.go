package service

import (
	"strings"
	"sync"

	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
)

// DedupStats accumulates across calls.
type DedupStats struct {
	DocsIn            int64
	DocsOut           int64
	AllStatesDropped  int64
	DuplicatesDropped int64
	Calls             int64
	DuplicationRate   float64 // dropped / in
}

// Deduplicator collapses retrieved documents by dish name. State-specific
// templates supersede their "All States" counterpart: a generic template is
// kept only when no regional variant of the same dish survived filtering.
type Deduplicator struct {
	mu                sync.Mutex
	docsIn            int64
	docsOut           int64
	allStatesDropped  int64
	duplicatesDropped int64
	calls             int64
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Apply collapses docs by normalized meal name. Within each name group it
// keeps one document per distinct state, choosing the highest semantic score,
// and drops every "All States" variant when any state-specific one exists.
// Output preserves the relative order of the surviving documents.
func (d *Deduplicator) Apply(docs []model.ScoredDoc) []model.ScoredDoc {
	allStatesKey := strings.ToLower(model.AllStates)

	type group struct {
		bestPerState map[string]int // state -> index into docs
		hasSpecific  bool
	}
	groups := make(map[string]*group)

	for i, doc := range docs {
		name := normalizeMealName(doc.Metadata.MealName)
		g, ok := groups[name]
		if !ok {
			g = &group{bestPerState: make(map[string]int)}
			groups[name] = g
		}

		state := strings.ToLower(strings.TrimSpace(doc.Metadata.State))
		if state == "" {
			state = allStatesKey
		}
		if state != allStatesKey {
			g.hasSpecific = true
		}

		if prev, ok := g.bestPerState[state]; !ok || doc.SemanticScore > docs[prev].SemanticScore {
			g.bestPerState[state] = i
		}
	}

	keep := make(map[int]bool, len(docs))
	var allStatesDropped, dupDropped int64
	for _, g := range groups {
		for state, idx := range g.bestPerState {
			if g.hasSpecific && state == allStatesKey {
				allStatesDropped++
				continue
			}
			keep[idx] = true
		}
	}

	out := make([]model.ScoredDoc, 0, len(keep))
	for i, doc := range docs {
		if keep[i] {
			out = append(out, doc)
		}
	}
	dupDropped = int64(len(docs)-len(out)) - allStatesDropped

	d.mu.Lock()
	d.docsIn += int64(len(docs))
	d.docsOut += int64(len(out))
	d.allStatesDropped += allStatesDropped
	d.duplicatesDropped += dupDropped
	d.calls++
	d.mu.Unlock()

	return out
}

// ApplySimple keeps the first occurrence per (mealName, state) pair with no
// "All States" handling. Used by the ingest path to collapse exact repeats.
func (d *Deduplicator) ApplySimple(docs []model.ScoredDoc) []model.ScoredDoc {
	seen := make(map[string]bool, len(docs))
	out := make([]model.ScoredDoc, 0, len(docs))
	for _, doc := range docs {
		key := normalizeMealName(doc.Metadata.MealName) + "|" + strings.ToLower(strings.TrimSpace(doc.Metadata.State))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, doc)
	}

	d.mu.Lock()
	d.docsIn += int64(len(docs))
	d.docsOut += int64(len(out))
	d.duplicatesDropped += int64(len(docs) - len(out))
	d.calls++
	d.mu.Unlock()

	return out
}

// Stats reports the cumulative duplication picture.
func (d *Deduplicator) Stats() DedupStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	stats := DedupStats{
		DocsIn:            d.docsIn,
		DocsOut:           d.docsOut,
		AllStatesDropped:  d.allStatesDropped,
		DuplicatesDropped: d.duplicatesDropped,
		Calls:             d.calls,
	}
	if d.docsIn > 0 {
		stats.DuplicationRate = float64(d.docsIn-d.docsOut) / float64(d.docsIn)
	}
	return stats
}

func normalizeMealName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
