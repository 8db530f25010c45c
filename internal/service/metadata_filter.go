package service

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
)

// Wildcard disables a filter field.
const Wildcard = "any"

// FieldMatcher accepts a single value, a set of allowed values, or the
// wildcard. Matching is case-insensitive.
type FieldMatcher struct {
	values map[string]bool
	any    bool
}

// MatchAny builds a matcher from allowed values. Empty input or the wildcard
// makes the matcher pass everything.
func MatchAny(values ...string) FieldMatcher {
	m := FieldMatcher{values: make(map[string]bool)}
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || v == Wildcard {
			m.any = true
			continue
		}
		m.values[v] = true
	}
	if len(m.values) == 0 {
		m.any = true
	}
	return m
}

func (m FieldMatcher) Matches(value string) bool {
	if m.any {
		return true
	}
	return m.values[strings.ToLower(strings.TrimSpace(value))]
}

func (m FieldMatcher) IsAny() bool { return m.any }

// FilterSpec describes the metadata predicate for one retrieval pass. Zero
// values leave the corresponding field unconstrained.
type FilterSpec struct {
	DietType    FieldMatcher
	GI          FieldMatcher
	State       FieldMatcher
	MealType    FieldMatcher
	BudgetLevel FieldMatcher
	MaxPrepTime float64 // minutes; 0 disables
	MinProtein  float64 // grams; 0 disables
	MaxCarbs    float64 // grams; 0 disables
}

// FilterStats is cumulative across calls.
type FilterStats struct {
	DocsIn        int64
	DocsOut       int64
	Calls         int64
	AvgFilterTime time.Duration
}

// MetadataFilter applies pure predicates to retrieved documents before
// re-ranking. Filtering preserves input order.
type MetadataFilter struct {
	mu        sync.Mutex
	docsIn    int64
	docsOut   int64
	calls     int64
	totalTime time.Duration
}

func NewMetadataFilter() *MetadataFilter {
	return &MetadataFilter{}
}

// Apply returns the documents matching spec, in input order.
func (f *MetadataFilter) Apply(docs []model.ScoredDoc, spec FilterSpec) []model.ScoredDoc {
	start := time.Now()

	out := make([]model.ScoredDoc, 0, len(docs))
	for _, doc := range docs {
		if f.matches(doc.Metadata, spec) {
			out = append(out, doc)
		}
	}

	f.mu.Lock()
	f.docsIn += int64(len(docs))
	f.docsOut += int64(len(out))
	f.calls++
	f.totalTime += time.Since(start)
	f.mu.Unlock()

	return out
}

func (f *MetadataFilter) matches(meta model.Metadata, spec FilterSpec) bool {
	if !spec.DietType.Matches(meta.DietType) {
		return false
	}
	if !spec.GI.Matches(meta.GI) {
		return false
	}
	// "All States" templates are universal and pass any state constraint.
	if !strings.EqualFold(meta.State, model.AllStates) && !spec.State.Matches(meta.State) {
		return false
	}
	if !spec.MealType.Matches(meta.MealType) {
		return false
	}
	// Templates carry numeric budget ranges; unknown budgets pass.
	if !spec.BudgetLevel.IsAny() {
		if lvl := budgetLevel(meta.BudgetMax); lvl != "" && !spec.BudgetLevel.Matches(lvl) {
			return false
		}
	}
	if spec.MinProtein > 0 && meta.Protein < spec.MinProtein {
		return false
	}
	if spec.MaxCarbs > 0 && meta.Carbs > spec.MaxCarbs {
		return false
	}
	if spec.MaxPrepTime > 0 {
		if mins, ok := ParsePrepMinutes(meta.PrepTime); ok && mins > spec.MaxPrepTime {
			return false
		}
	}
	return true
}

// Stats returns cumulative filter statistics.
func (f *MetadataFilter) Stats() FilterStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := FilterStats{
		DocsIn:  f.docsIn,
		DocsOut: f.docsOut,
		Calls:   f.calls,
	}
	if f.calls > 0 {
		stats.AvgFilterTime = f.totalTime / time.Duration(f.calls)
	}
	return stats
}

// budgetLevel buckets a per-day budget ceiling into the request's coarse
// low/medium/high scale.
func budgetLevel(budgetMax float64) string {
	switch {
	case budgetMax <= 0:
		return ""
	case budgetMax <= 100:
		return "low"
	case budgetMax <= 200:
		return "medium"
	default:
		return "high"
	}
}

var prepTimeRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?|m)\b`)

// ParsePrepMinutes parses prep-time strings like "30 mins", "1 hour" or
// "1.5 hrs" into minutes. Multiple components add up ("1 hr 20 mins").
// Returns false for strings with no recognizable component; those documents
// pass the prep-time filter.
func ParsePrepMinutes(s string) (float64, bool) {
	matches := prepTimeRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		// A bare number means minutes.
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v, true
		}
		return 0, false
	}

	var total float64
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if strings.HasPrefix(strings.ToLower(m[2]), "h") {
			v *= 60
		}
		total += v
	}
	return total, true
}

// FilterFromPreferences translates the user profile and request into a
// FilterSpec. Vegetarians accept vegan and eggetarian templates; keto forces
// low GI and a hard carb ceiling.
func FilterFromPreferences(user *model.User, req *model.PlanRequest) FilterSpec {
	spec := FilterSpec{
		DietType:    MatchAny(),
		GI:          MatchAny(),
		State:       MatchAny(),
		MealType:    MatchAny(),
		BudgetLevel: MatchAny(),
	}

	switch strings.ToLower(user.DietType) {
	case model.DietVegetarian:
		spec.DietType = MatchAny(model.DietVegetarian, model.DietVegan, model.DietEggetarian)
	case model.DietVegan:
		spec.DietType = MatchAny(model.DietVegan)
	case model.DietJain:
		spec.DietType = MatchAny(model.DietJain, model.DietVegan)
	}

	if req.IsKeto {
		spec.GI = MatchAny("low")
		spec.MaxCarbs = 20
	}

	if len(user.CuisineStates) > 0 {
		spec.State = MatchAny(user.CuisineStates...)
	}
	if req.MealType != "" {
		spec.MealType = MatchAny(req.MealType)
	}
	if req.BudgetLevel != "" {
		spec.BudgetLevel = MatchAny(req.BudgetLevel)
	}

	return spec
}
