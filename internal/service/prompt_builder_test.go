package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
)

func promptDocs(n int) []model.ScoredDoc {
	docs := make([]model.ScoredDoc, n)
	for i := range docs {
		docs[i] = model.ScoredDoc{
			Document: model.Document{
				ID:      fmt.Sprintf("doc-%d", i),
				Content: fmt.Sprintf("Template %d\nIngredients: lentils, spices", i),
				Metadata: model.Metadata{
					MealName: fmt.Sprintf("Dish %d", i),
					State:    "Punjab",
					MealType: "lunch",
					Protein:  20,
					Carbs:    40,
					Fats:     10,
					Calories: 330,
					GI:       "Low",
				},
			},
			SemanticScore: 0.8,
			RerankScore:   0.8,
		}
	}
	return docs
}

func TestForbiddenItemsByDiet(t *testing.T) {
	tests := []struct {
		diet     string
		contains []string
		excludes []string
	}{
		{model.DietVegetarian, []string{"chicken", "fish", "egg"}, []string{"onion"}},
		{model.DietEggetarian, []string{"chicken"}, []string{"egg"}},
		{model.DietVegan, []string{"milk", "paneer", "egg", "honey"}, nil},
		{model.DietJain, []string{"onion", "garlic", "potato", "chicken"}, nil},
	}
	for _, tt := range tests {
		user := testUser()
		user.DietType = tt.diet
		items := ForbiddenItems(user, &model.PlanRequest{})
		for _, want := range tt.contains {
			assert.Contains(t, items, want, tt.diet)
		}
		for _, not := range tt.excludes {
			assert.NotContains(t, items, not, tt.diet)
		}
	}
}

func TestForbiddenItemsKetoAndAllergies(t *testing.T) {
	user := testUser()
	user.Allergies = model.StringList{"Peanuts"}

	items := ForbiddenItems(user, &model.PlanRequest{
		IsKeto:       true,
		Restrictions: model.StringList{"mushroom"},
	})

	for _, grain := range []string{"rice", "roti", "wheat", "bread", "potato", "corn"} {
		assert.Contains(t, items, grain)
	}
	assert.Contains(t, items, "peanuts")
	assert.Contains(t, items, "mushroom")
}

func TestPromptForbiddenBlockPrecedesExcerpts(t *testing.T) {
	b := NewPromptBuilder()
	user := testUser()
	req := &model.PlanRequest{UserID: "u1", Duration: 3, IsKeto: true}
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(user, 3, true)

	prompt, used := b.Build(user, req, targets, promptDocs(5))

	require.Positive(t, used)
	forbiddenIdx := strings.Index(prompt, "STRICTLY FORBIDDEN")
	constraintsIdx := strings.Index(prompt, "HARD CONSTRAINTS")
	excerptIdx := strings.Index(prompt, "REFERENCE MEAL TEMPLATES")
	require.GreaterOrEqual(t, forbiddenIdx, 0)
	assert.Less(t, forbiddenIdx, constraintsIdx)
	assert.Less(t, constraintsIdx, excerptIdx)
}

func TestPromptCapsExcerptsAtTwenty(t *testing.T) {
	b := NewPromptBuilder()
	user := testUser()
	req := &model.PlanRequest{UserID: "u1", Duration: 3}
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(user, 3, false)

	_, used := b.Build(user, req, targets, promptDocs(50))

	assert.LessOrEqual(t, used, 20)
}

func TestPromptContainsTargetsAndSchema(t *testing.T) {
	b := NewPromptBuilder()
	user := testUser()
	user.Symptoms = model.StringList{"fatigue"}
	req := &model.PlanRequest{
		UserID:   "u1",
		Duration: 2,
		Budget:   200,
		Labs:     model.LabValues{"HbA1c": 5.9},
	}
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(user, 3, false)

	prompt, _ := b.Build(user, req, targets, promptDocs(3))

	assert.Contains(t, prompt, "exactly 2 days")
	assert.Contains(t, prompt, "Total daily calories")
	assert.Contains(t, prompt, "Budget: at most 200")
	assert.Contains(t, prompt, "fatigue")
	assert.Contains(t, prompt, "HbA1c: 5.9")
	assert.Contains(t, prompt, `"days"`)
	assert.Contains(t, prompt, `"mealType"`)
}
