package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/cache"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/logger"
	"go.uber.org/zap"
)

// indianDishTokens trigger the "indian" prefix variant.
var indianDishTokens = []string{
	"paneer", "dal", "daal", "curry", "biryani", "dosa", "idli",
	"roti", "khichdi", "sabzi", "chutney", "upma", "poha",
}

// abbreviations expanded inside queries, matched on word boundaries.
var abbreviations = map[string]string{
	"veg":   "vegetarian",
	"gi":    "glycemic index",
	"carbs": "carbohydrates",
	"mins":  "minutes",
}

// synonymSets drive regional term swaps. Any member found in the query
// produces one variant per other member of its set.
var synonymSets = [][]string{
	{"dal", "daal", "lentil"},
	{"roti", "chapati", "flatbread"},
	{"paneer", "cottage cheese"},
	{"biryani", "rice pilaf"},
}

var wordBoundaryCache = map[string]*regexp.Regexp{}

func init() {
	for abbr := range abbreviations {
		wordBoundaryCache[abbr] = regexp.MustCompile(`\b` + abbr + `\b`)
	}
	for _, set := range synonymSets {
		for _, term := range set {
			if _, ok := wordBoundaryCache[term]; !ok {
				wordBoundaryCache[term] = regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`)
			}
		}
	}
}

// QueryExpanderConfig bounds the variant budget and the cache.
type QueryExpanderConfig struct {
	MaxVariations int
	UseLLM        bool
	CacheSize     int
	CacheTTL      time.Duration
}

// QueryExpander generates semantically related query variants, first from an
// LLM and then from rule-based transforms to fill the budget. Results are
// cached; the original query is always the first element.
type QueryExpander struct {
	llm           LLMClient
	cache         *cache.LRU
	maxVariations int
	useLLM        bool
}

func NewQueryExpander(llm LLMClient, cfg QueryExpanderConfig) *QueryExpander {
	if cfg.MaxVariations <= 0 {
		cfg.MaxVariations = 3
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 200
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &QueryExpander{
		llm:           llm,
		cache:         cache.NewLRU(cfg.CacheSize, cfg.CacheTTL),
		maxVariations: cfg.MaxVariations,
		useLLM:        cfg.UseLLM && llm != nil,
	}
}

// Expand returns up to maxVariations distinct variants including the original
// query as the first element. Never fails: on LLM errors it degrades to
// rule-based variants, and at worst returns just the original.
func (q *QueryExpander) Expand(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{query}
	}

	normalized := strings.ToLower(query)
	cacheKey := fmt.Sprintf("%s|%d|%t", normalized, q.maxVariations, q.useLLM)
	if cached, ok := q.cache.Get(cacheKey); ok {
		return cached.([]string)
	}

	variants := []string{query}
	seen := map[string]bool{normalized: true}

	add := func(v string) bool {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] || len(variants) >= q.maxVariations {
			return len(variants) < q.maxVariations
		}
		seen[key] = true
		variants = append(variants, v)
		return len(variants) < q.maxVariations
	}

	if q.useLLM {
		for _, v := range q.llmVariants(ctx, query) {
			if !add(v) {
				break
			}
		}
	}

	if len(variants) < q.maxVariations {
		for _, v := range q.ruleVariants(normalized) {
			if !add(v) {
				break
			}
		}
	}

	q.cache.Set(cacheKey, variants)
	return variants
}

// CacheStats exposes hit/miss counters for the expansion cache.
func (q *QueryExpander) CacheStats() cache.Stats {
	return q.cache.Stats()
}

func (q *QueryExpander) llmVariants(ctx context.Context, query string) []string {
	prompt := fmt.Sprintf(
		"Generate %d alternative search queries for finding Indian meal templates matching: %q\n"+
			"Keep each variation short and focused on food, diet or nutrition terms.\n"+
			"Return one variation per line with no numbering or commentary.",
		q.maxVariations-1, query)

	completion, err := q.llm.Generate(ctx, prompt, GenerateOptions{Temperature: 0.7, MaxTokens: 200})
	if err != nil {
		logger.Warn("query expansion LLM call failed, using rule-based variants",
			zap.String("query", query),
			zap.Error(err),
		)
		return nil
	}

	var out []string
	for _, line := range strings.Split(completion.Text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ruleVariants applies deterministic transforms to the normalized query.
// Order matters: cheaper, higher-signal transforms come first so they win
// the budget.
func (q *QueryExpander) ruleVariants(normalized string) []string {
	var out []string

	for _, token := range indianDishTokens {
		if strings.Contains(normalized, token) && !strings.Contains(normalized, "indian") {
			out = append(out, "indian "+normalized)
			break
		}
	}

	expanded := normalized
	for abbr, full := range abbreviations {
		expanded = wordBoundaryCache[abbr].ReplaceAllString(expanded, full)
	}
	if expanded != normalized {
		out = append(out, expanded)
	}

	out = append(out, normalized+" recipe", normalized+" dish")

	for _, set := range synonymSets {
		for _, term := range set {
			if !wordBoundaryCache[term].MatchString(normalized) {
				continue
			}
			for _, alt := range set {
				if alt != term {
					out = append(out, wordBoundaryCache[term].ReplaceAllString(normalized, alt))
				}
			}
		}
	}

	if strings.Contains(normalized, "high protein") {
		out = append(out, strings.ReplaceAll(normalized, "high protein", "high-protein"),
			strings.ReplaceAll(normalized, "high protein", "protein-rich"))
	}
	if strings.Contains(normalized, "low carb") {
		out = append(out, strings.ReplaceAll(normalized, "low carb", "low-carb"),
			strings.ReplaceAll(normalized, "low carb", "keto"))
	}

	return out
}
