package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
)

func TestWeightsAlwaysNormalized(t *testing.T) {
	r := NewReRanker()
	queries := []string{
		"",
		"high protein breakfast",
		"quick dinner",
		"cheap meals on a budget",
		"low gi snacks",
		"protein bowl",
		"anything at all",
	}
	for _, q := range queries {
		for _, keto := range []bool{false, true} {
			w := r.WeightsForQuery(q, keto)
			assert.InDelta(t, 1.0, w.sum(), 1e-3, "query=%q keto=%v", q, keto)
		}
	}
}

func TestIntentHighProtein(t *testing.T) {
	r := NewReRanker()
	w := r.WeightsForQuery("high protein lunch ideas", false)

	// protein 0.30, semantic 0.30 before normalization; the rest stay at
	// defaults. Sum = 0.30+0.30+0.10+0.20+0.10+0.05 = 1.05.
	assert.InDelta(t, 0.30/1.05, w.Protein, 1e-9)
	assert.InDelta(t, 0.30/1.05, w.Semantic, 1e-9)
}

func TestIntentKetoComposition(t *testing.T) {
	r := NewReRanker()
	w := r.WeightsForQuery("high protein keto breakfast", true)

	// high-protein sets protein/semantic, then keto overrides carbs 0.25,
	// protein 0.20, semantic 0.25. Raw vector: semantic .25, protein .20,
	// carbs .25, gi .20, budget .10, time .05 = 1.05.
	assert.InDelta(t, 0.20/1.05, w.Protein, 1e-9)
	assert.InDelta(t, 0.25/1.05, w.Carbs, 1e-9)
	assert.InDelta(t, 0.25/1.05, w.Semantic, 1e-9)
}

func TestBreakfastIsNotQuickIntent(t *testing.T) {
	r := NewReRanker()

	// "breakfast" contains "fast" but must not trigger the quick intent.
	w := r.WeightsForQuery("north-indian breakfast ideas", false)
	assert.Equal(t, DefaultWeights(), w)

	quick := r.WeightsForQuery("quick breakfast", false)
	assert.Greater(t, quick.Time, w.Time)
}

func TestIntentFirstSpecificMatchWins(t *testing.T) {
	r := NewReRanker()

	// Both high-protein and budget terms present: high-protein is checked
	// first and wins.
	w := r.WeightsForQuery("high protein budget meals", false)
	assert.InDelta(t, 0.30/1.05, w.Protein, 1e-9)
	assert.InDelta(t, 0.10/1.05, w.Budget, 1e-9)
}

func TestGIScores(t *testing.T) {
	r := NewReRanker()
	tests := []struct {
		gi   string
		want float64
	}{
		{"Low", 1.0},
		{"medium", 0.7},
		{"HIGH", 0.3},
		{"", 0.5},
		{"unknown", 0.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.giScore(model.Metadata{GI: tt.gi}), tt.gi)
	}
}

func TestCarbScoreKeto(t *testing.T) {
	r := NewReRanker()
	rc := RankContext{IsKeto: true, KetoMaxCarbs: 20}

	assert.Equal(t, 1.0, r.carbScore(model.Metadata{Carbs: 0}, rc))
	assert.InDelta(t, 1-20.0/60.0, r.carbScore(model.Metadata{Carbs: 20}, rc), 1e-9)
	assert.Equal(t, 0.0, r.carbScore(model.Metadata{Carbs: 100}, rc))
}

func TestCarbScoreNormalRamp(t *testing.T) {
	r := NewReRanker()
	rc := RankContext{CarbTarget: 50}

	assert.Equal(t, 1.0, r.carbScore(model.Metadata{Carbs: 50}, rc))
	assert.InDelta(t, 0.5, r.carbScore(model.Metadata{Carbs: 25}, rc), 1e-9)
	assert.InDelta(t, 0.5, r.carbScore(model.Metadata{Carbs: 75}, rc), 1e-9)
}

func TestProteinScoreRampAndBonus(t *testing.T) {
	r := NewReRanker()
	rc := RankContext{ProteinTarget: 20, ProteinUpper: 30}

	assert.Equal(t, 0.0, r.proteinScore(model.Metadata{Protein: 0}, rc))
	// 15/30 = 0.5, below target so no bonus.
	assert.InDelta(t, 0.5, r.proteinScore(model.Metadata{Protein: 15}, rc), 1e-9)
	// 21/30 = 0.7 plus 0.2 bonus.
	assert.InDelta(t, 0.9, r.proteinScore(model.Metadata{Protein: 21}, rc), 1e-9)
	// Saturates at 1.
	assert.Equal(t, 1.0, r.proteinScore(model.Metadata{Protein: 100}, rc))
}

func TestBudgetScore(t *testing.T) {
	r := NewReRanker()
	rc := RankContext{Budget: 100}

	assert.Equal(t, 1.0, r.budgetScore(model.Metadata{BudgetMax: 80}, rc))
	assert.InDelta(t, 0.5, r.budgetScore(model.Metadata{BudgetMax: 150}, rc), 1e-9)
	assert.Equal(t, 0.5, r.budgetScore(model.Metadata{}, rc)) // unknown budget
}

func TestTimeScore(t *testing.T) {
	r := NewReRanker()
	rc := RankContext{MaxPrepTime: 60}

	assert.InDelta(t, 0.85, r.timeScore(model.Metadata{PrepTime: "30 mins"}, rc), 1e-9)
	assert.InDelta(t, 0.7, r.timeScore(model.Metadata{PrepTime: "60 mins"}, rc), 1e-9)
	// 90 mins is 50% over: 0.7 - 0.5 = 0.2.
	assert.InDelta(t, 0.2, r.timeScore(model.Metadata{PrepTime: "90 mins"}, rc), 1e-9)
	assert.Equal(t, 0.5, r.timeScore(model.Metadata{PrepTime: "varies"}, rc))
}

func TestRankSortsDescendingWithDebugScores(t *testing.T) {
	r := NewReRanker()
	docs := []model.ScoredDoc{
		scored("Weak Match", "Punjab", 0.2),
		scored("Strong Match", "Punjab", 0.9),
	}

	out := r.Rank(docs, "dinner", RankContext{CarbTarget: 50})

	assert.Equal(t, "Strong Match", out[0].Metadata.MealName)
	assert.GreaterOrEqual(t, out[0].RerankScore, out[1].RerankScore)
	for _, doc := range out {
		assert.Contains(t, doc.FeatureScores, "semantic")
		assert.Contains(t, doc.FeatureScores, "gi")
	}
}
