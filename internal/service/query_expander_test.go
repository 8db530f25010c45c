package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandOriginalAlwaysFirst(t *testing.T) {
	q := NewQueryExpander(nil, QueryExpanderConfig{MaxVariations: 3})

	variants := q.Expand(context.Background(), "Paneer Curry")

	assert.NotEmpty(t, variants)
	assert.Equal(t, "Paneer Curry", variants[0])
	assert.LessOrEqual(t, len(variants), 3)
}

func TestExpandVariantsAreDistinct(t *testing.T) {
	q := NewQueryExpander(nil, QueryExpanderConfig{MaxVariations: 5})

	variants := q.Expand(context.Background(), "dal recipe")

	seen := map[string]bool{}
	for _, v := range variants {
		key := strings.ToLower(v)
		assert.False(t, seen[key], "duplicate variant %q", v)
		seen[key] = true
	}
}

func TestExpandIndianPrefixRule(t *testing.T) {
	q := NewQueryExpander(nil, QueryExpanderConfig{MaxVariations: 2})

	variants := q.Expand(context.Background(), "paneer dishes")

	assert.Equal(t, []string{"paneer dishes", "indian paneer dishes"}, variants)
}

func TestExpandAbbreviations(t *testing.T) {
	q := NewQueryExpander(nil, QueryExpanderConfig{MaxVariations: 5})

	variants := q.Expand(context.Background(), "low gi veg meals under 30 mins")

	assert.Contains(t, variants, "low glycemic index vegetarian meals under 30 minutes")
}

func TestExpandSynonymSwaps(t *testing.T) {
	q := NewQueryExpander(nil, QueryExpanderConfig{MaxVariations: 6})

	variants := q.Expand(context.Background(), "roti with sabzi")

	joined := strings.Join(variants, "|")
	assert.Contains(t, joined, "chapati with sabzi")
}

func TestExpandHighProteinForms(t *testing.T) {
	q := NewQueryExpander(nil, QueryExpanderConfig{MaxVariations: 10})

	variants := q.Expand(context.Background(), "high protein dinner")

	joined := strings.Join(variants, "|")
	assert.Contains(t, joined, "high-protein dinner")
	assert.Contains(t, joined, "protein-rich dinner")
}

func TestExpandUsesLLMVariantsFirst(t *testing.T) {
	llm := &fakeLLM{responses: []string{"keto paneer bowls\nlow carb indian dinner\nextra line"}}
	q := NewQueryExpander(llm, QueryExpanderConfig{MaxVariations: 3, UseLLM: true})

	variants := q.Expand(context.Background(), "keto dinner")

	assert.Equal(t, "keto dinner", variants[0])
	assert.Equal(t, "keto paneer bowls", variants[1])
	assert.Equal(t, "low carb indian dinner", variants[2])
}

func TestExpandFallsBackOnLLMFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}
	q := NewQueryExpander(llm, QueryExpanderConfig{MaxVariations: 3, UseLLM: true})

	variants := q.Expand(context.Background(), "dal makhani")

	assert.Equal(t, "dal makhani", variants[0])
	assert.Greater(t, len(variants), 1, "rule-based variants should fill in")
}

func TestExpandCachesResults(t *testing.T) {
	llm := &fakeLLM{responses: []string{"variant one\nvariant two"}}
	q := NewQueryExpander(llm, QueryExpanderConfig{MaxVariations: 3, UseLLM: true})

	first := q.Expand(context.Background(), "Keto Dinner")
	second := q.Expand(context.Background(), "keto dinner")

	assert.Equal(t, 1, llm.callCount(), "second call must hit the cache")
	assert.Equal(t, first[1:], second[1:])

	stats := q.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
}

func TestExpandEmptyQuery(t *testing.T) {
	q := NewQueryExpander(nil, QueryExpanderConfig{})
	assert.Equal(t, []string{""}, q.Expand(context.Background(), "  "))
}
