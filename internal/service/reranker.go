package service

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/logger"
	"go.uber.org/zap"
)

// Weights is the feature weight vector for hybrid re-ranking.
type Weights struct {
	Semantic float64
	Protein  float64
	Carbs    float64
	GI       float64
	Budget   float64
	Time     float64
}

// DefaultWeights balance semantic relevance against nutrition features.
func DefaultWeights() Weights {
	return Weights{
		Semantic: 0.40,
		Protein:  0.15,
		Carbs:    0.10,
		GI:       0.20,
		Budget:   0.10,
		Time:     0.05,
	}
}

func (w Weights) sum() float64 {
	return w.Semantic + w.Protein + w.Carbs + w.GI + w.Budget + w.Time
}

func (w Weights) normalized() Weights {
	s := w.sum()
	if s == 0 {
		return DefaultWeights()
	}
	return Weights{
		Semantic: w.Semantic / s,
		Protein:  w.Protein / s,
		Carbs:    w.Carbs / s,
		GI:       w.GI / s,
		Budget:   w.Budget / s,
		Time:     w.Time / s,
	}
}

// RankContext carries the per-request targets the feature scores depend on.
type RankContext struct {
	ProteinTarget float64 // grams per meal
	ProteinUpper  float64 // grams, ramp saturation point
	CarbTarget    float64 // grams per meal
	KetoMaxCarbs  float64 // grams, keto ceiling
	Budget        float64 // currency per day
	MaxPrepTime   float64 // minutes
	IsKeto        bool
}

// quickRe needs word boundaries so "breakfast" does not read as "fast".
var quickRe = regexp.MustCompile(`\b(quick|fast|easy)\b`)

var giScores = map[string]float64{
	"low":    1.0,
	"medium": 0.7,
	"high":   0.3,
}

// ReRanker combines the semantic score with nutrition, budget and time
// features under an intent-sensitive weight vector.
type ReRanker struct{}

func NewReRanker() *ReRanker {
	return &ReRanker{}
}

// WeightsForQuery derives the weight vector from the query. The first
// matching specific intent wins; keto composes on top; the result is
// normalized to sum 1.
func (r *ReRanker) WeightsForQuery(query string, isKeto bool) Weights {
	w := DefaultWeights()
	q := strings.ToLower(query)

	switch {
	case strings.Contains(q, "high protein") || strings.Contains(q, "protein-rich"):
		w.Protein = 0.30
		w.Semantic = 0.30
	case quickRe.MatchString(q):
		w.Time = 0.20
		w.Semantic = 0.30
	case strings.Contains(q, "budget") || strings.Contains(q, "cheap") ||
		strings.Contains(q, "affordable") || strings.Contains(q, "low cost"):
		w.Budget = 0.25
		w.Semantic = 0.30
	case strings.Contains(q, "low gi") || strings.Contains(q, "low glycemic") ||
		strings.Contains(q, "blood sugar"):
		w.GI = 0.30
		w.Semantic = 0.30
	case strings.Contains(q, "protein"):
		w.Protein = 0.25
		w.Semantic = 0.35
	}

	if isKeto {
		w.Carbs = 0.25
		w.Protein = 0.20
		w.Semantic = 0.25
	}

	return w.normalized()
}

// Rank scores and sorts docs descending by combined score. Each returned doc
// carries its feature breakdown for debugging.
func (r *ReRanker) Rank(docs []model.ScoredDoc, query string, rc RankContext) []model.ScoredDoc {
	weights := r.WeightsForQuery(query, rc.IsKeto)

	out := make([]model.ScoredDoc, len(docs))
	for i, doc := range docs {
		features := map[string]float64{
			"semantic": clamp01(doc.SemanticScore),
			"protein":  r.proteinScore(doc.Metadata, rc),
			"carbs":    r.carbScore(doc.Metadata, rc),
			"gi":       r.giScore(doc.Metadata),
			"budget":   r.budgetScore(doc.Metadata, rc),
			"time":     r.timeScore(doc.Metadata, rc),
		}

		doc.FeatureScores = features
		doc.RerankScore = features["semantic"]*weights.Semantic +
			features["protein"]*weights.Protein +
			features["carbs"]*weights.Carbs +
			features["gi"]*weights.GI +
			features["budget"]*weights.Budget +
			features["time"]*weights.Time
		out[i] = doc
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})

	if len(out) > 0 {
		logger.Debug("re-ranked documents",
			zap.Int("count", len(out)),
			zap.String("query", query),
			zap.Float64("top_semantic", out[0].SemanticScore),
			zap.Float64("top_rerank", out[0].RerankScore),
			zap.Any("weights", weights),
		)
	}
	return out
}

// proteinScore ramps linearly from 0 g to the upper bound, with a bonus for
// meeting the per-meal target. Clamped to [0,1] after the bonus.
func (r *ReRanker) proteinScore(meta model.Metadata, rc RankContext) float64 {
	upper := rc.ProteinUpper
	if upper <= 0 {
		upper = 30
	}
	score := meta.Protein / upper
	if rc.ProteinTarget > 0 && meta.Protein >= rc.ProteinTarget {
		score += 0.2
	}
	return clamp01(score)
}

func (r *ReRanker) carbScore(meta model.Metadata, rc RankContext) float64 {
	if rc.IsKeto {
		ketoMax := rc.KetoMaxCarbs
		if ketoMax <= 0 {
			ketoMax = 20
		}
		return clamp01(1 - meta.Carbs/(ketoMax*3))
	}
	target := rc.CarbTarget
	if target <= 0 {
		return 0.5
	}
	return clamp01(1 - math.Abs(meta.Carbs-target)/target)
}

func (r *ReRanker) giScore(meta model.Metadata) float64 {
	if score, ok := giScores[strings.ToLower(strings.TrimSpace(meta.GI))]; ok {
		return score
	}
	return 0.5
}

// budgetScore is full marks within budget, then a linear penalty by overage
// fraction.
func (r *ReRanker) budgetScore(meta model.Metadata, rc RankContext) float64 {
	if rc.Budget <= 0 || meta.BudgetMax <= 0 {
		return 0.5
	}
	if meta.BudgetMax <= rc.Budget {
		return 1.0
	}
	overage := (meta.BudgetMax - rc.Budget) / rc.Budget
	return clamp01(1 - overage)
}

// timeScore decays mildly within the limit and penalizes past it.
func (r *ReRanker) timeScore(meta model.Metadata, rc RankContext) float64 {
	maxTime := rc.MaxPrepTime
	if maxTime <= 0 {
		maxTime = 60
	}
	mins, ok := ParsePrepMinutes(meta.PrepTime)
	if !ok {
		return 0.5
	}
	if mins <= maxTime {
		return clamp01(1 - 0.3*(mins/maxTime))
	}
	overage := (mins - maxTime) / maxTime
	return clamp01(0.7 - overage)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
