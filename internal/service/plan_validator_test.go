package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/errors"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
)

func validPlanJSON(days, mealsPerDay int, targets model.MacroTargets) string {
	plan := model.MealPlan{}
	for d := 1; d <= days; d++ {
		day := model.Day{Day: d}
		for m := 0; m < mealsPerDay; m++ {
			day.Meals = append(day.Meals, model.Meal{
				MealType: "lunch",
				Name:     fmt.Sprintf("Meal %d-%d", d, m),
				Ingredients: []model.Ingredient{
					{Item: "lentils", Quantity: "100", Unit: "g"},
				},
				Macros: targets.PerMealGrams,
				Calories: 4*targets.PerMealGrams.Protein +
					4*targets.PerMealGrams.Carbs +
					9*targets.PerMealGrams.Fats,
			})
		}
		plan.Days = append(plan.Days, day)
	}
	b, _ := json.Marshal(plan)
	return string(b)
}

func TestExtractJSONBalancedBraces(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"prose wrapper", "Here you go:\n```json\n{\"a\":1}\n```", `{"a":1}`},
		{"nested", `x{"a":{"b":2}}y`, `{"a":{"b":2}}`},
		{"brace in string", `{"a":"}"}`, `{"a":"}"}`},
		{"unbalanced", `{"a":1`, ""},
		{"none", "no json here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}

func TestParseDirect(t *testing.T) {
	v := NewPlanValidator(nil)
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(testUser(), 3, false)

	plan, err := v.Parse(context.Background(), validPlanJSON(2, 3, targets))

	require.NoError(t, err)
	assert.Len(t, plan.Days, 2)
}

func TestParseRecoversFromProse(t *testing.T) {
	v := NewPlanValidator(nil)
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(testUser(), 3, false)
	raw := "Sure! Here is your plan:\n" + validPlanJSON(1, 3, targets) + "\nEnjoy!"

	plan, err := v.Parse(context.Background(), raw)

	require.NoError(t, err)
	assert.Len(t, plan.Days, 1)
}

func TestParseUsesFixJSONRegeneration(t *testing.T) {
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(testUser(), 3, false)
	llm := &fakeLLM{responses: []string{validPlanJSON(1, 3, targets)}}
	v := NewPlanValidator(llm)

	plan, err := v.Parse(context.Background(), `{"days": [ truncated`)

	require.NoError(t, err)
	assert.Len(t, plan.Days, 1)
	assert.Equal(t, 1, llm.callCount())
}

func TestParseSurfacesParseError(t *testing.T) {
	llm := &fakeLLM{responses: []string{"still not json"}}
	v := NewPlanValidator(llm)

	_, err := v.Parse(context.Background(), "garbage")

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrParse))
}

func TestValidateAcceptsCompliantPlan(t *testing.T) {
	v := NewPlanValidator(nil)
	user := testUser()
	req := &model.PlanRequest{UserID: user.ID, Duration: 2, MealsPerDay: 3}
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(user, 3, false)

	plan, err := v.Parse(context.Background(), validPlanJSON(2, 3, targets))
	require.NoError(t, err)

	violations := v.Validate(plan, targets, user, req)
	assert.Empty(t, violations)
}

func TestValidateWrongDayCountIsHard(t *testing.T) {
	v := NewPlanValidator(nil)
	user := testUser()
	req := &model.PlanRequest{UserID: user.ID, Duration: 3, MealsPerDay: 3}
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(user, 3, false)

	plan, err := v.Parse(context.Background(), validPlanJSON(2, 3, targets))
	require.NoError(t, err)

	violations := v.Validate(plan, targets, user, req)
	require.NotEmpty(t, violations)
	assert.Equal(t, SeverityHard, Classify(violations))
}

func TestValidateKetoGrainBan(t *testing.T) {
	v := NewPlanValidator(nil)
	user := testUser()
	req := &model.PlanRequest{UserID: user.ID, Duration: 1, MealsPerDay: 1, IsKeto: true}
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(user, 1, true)

	plan := &model.MealPlan{Days: []model.Day{{
		Day: 1,
		Meals: []model.Meal{{
			MealType:    "lunch",
			Name:        "Paneer Bowl",
			Ingredients: []model.Ingredient{{Item: "brown rice"}},
			Macros:      targets.PerMealGrams,
			Calories: 4*targets.PerMealGrams.Protein +
				4*targets.PerMealGrams.Carbs +
				9*targets.PerMealGrams.Fats,
		}},
	}}}

	violations := v.Validate(plan, targets, user, req)
	assert.Equal(t, SeverityHard, Classify(violations))
}

func TestValidateMacroToleranceClassification(t *testing.T) {
	// 7% over target is soft; 15% over is hard.
	v := checkMacro("protein", 53.5, 50, 1.5, 1, 1)
	require.Len(t, v, 1)
	assert.Equal(t, SeveritySoft, v[0].Severity)

	v = checkMacro("protein", 57.5, 50, 1.5, 1, 1)
	require.Len(t, v, 1)
	assert.Equal(t, SeverityHard, v[0].Severity)

	assert.Empty(t, checkMacro("protein", 51, 50, 1.5, 1, 1))
}

func TestValidateNetCarbsWithFiber(t *testing.T) {
	v := NewPlanValidator(nil)
	user := testUser()
	req := &model.PlanRequest{UserID: user.ID, Duration: 1, MealsPerDay: 1, IsKeto: true}
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(user, 1, true)

	// Gross carbs exceed the target but net carbs land on it.
	meal := model.Meal{
		MealType:    "lunch",
		Name:        "Salad",
		Ingredients: []model.Ingredient{{Item: "spinach"}},
		Macros: model.MacroSet{
			Protein: targets.PerMealGrams.Protein,
			Carbs:   targets.PerMealGrams.Carbs + 10,
			Fats:    targets.PerMealGrams.Fats,
		},
		Fiber: 10,
	}
	meal.Calories = 4*meal.Macros.Protein + 4*meal.Macros.Carbs + 9*meal.Macros.Fats

	plan := &model.MealPlan{Days: []model.Day{{Day: 1, Meals: []model.Meal{meal}}}}
	violations := v.Validate(plan, targets, user, req)

	for _, viol := range violations {
		assert.NotContains(t, viol.Message, "carbs", "net carbs should satisfy the ceiling: %s", viol.Message)
	}
}

func TestValidateDailyCarbBandIsAbsolute(t *testing.T) {
	v := NewPlanValidator(nil)
	user := testUser()
	req := &model.PlanRequest{UserID: user.ID, Duration: 1, MealsPerDay: 3}
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(user, 3, false)

	// Each meal drifts +1.6g carbs, inside its own per-meal band, but the
	// day lands 4.8g over the ±2g daily band.
	day := model.Day{Day: 1}
	for i := 0; i < 3; i++ {
		meal := model.Meal{
			MealType:    "lunch",
			Name:        fmt.Sprintf("Meal %d", i+1),
			Ingredients: []model.Ingredient{{Item: "lentils"}},
			Macros: model.MacroSet{
				Protein: targets.PerMealGrams.Protein,
				Carbs:   targets.PerMealGrams.Carbs + 1.6,
				Fats:    targets.PerMealGrams.Fats,
			},
		}
		meal.Calories = 4*meal.Macros.Protein + 4*meal.Macros.Carbs + 9*meal.Macros.Fats
		day.Meals = append(day.Meals, meal)
	}
	plan := &model.MealPlan{Days: []model.Day{day}}

	violations := v.Validate(plan, targets, user, req)

	require.Len(t, violations, 1)
	assert.Equal(t, SeveritySoft, violations[0].Severity)
	assert.Contains(t, violations[0].Message, "daily carbs")

	// A wider configured band accepts the same plan.
	loose := NewMacroPlanner(MacroPlannerConfig{DailyCarbTol: 10}).Derive(user, 3, false)
	assert.Empty(t, v.Validate(plan, loose, user, req))
}

func TestRepairMealOneRound(t *testing.T) {
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(testUser(), 3, false)
	fixed := model.Meal{
		MealType: "lunch",
		Name:     "Fixed Meal",
		Macros:   targets.PerMealGrams,
	}
	b, _ := json.Marshal(fixed)
	llm := &fakeLLM{responses: []string{string(b)}}
	v := NewPlanValidator(llm)

	out, err := v.RepairMeal(context.Background(),
		model.Meal{MealType: "lunch", Name: "Broken"},
		[]Violation{{Severity: SeveritySoft, Day: 1, Meal: 1, Message: "protein off"}},
		targets)

	require.NoError(t, err)
	assert.Equal(t, "Fixed Meal", out.Name)
	assert.Equal(t, 1, llm.callCount())
}

func TestFallbackPlanFillsSlotsByMealType(t *testing.T) {
	docs := []model.ScoredDoc{
		scored("Poha", "Maharashtra", 0.9),
		scored("Dal Chawal", "Punjab", 0.8),
		scored("Khichdi", "All States", 0.7),
	}
	docs[0].Metadata.MealType = "breakfast"
	docs[1].Metadata.MealType = "lunch"
	docs[2].Metadata.MealType = "dinner"
	for i := range docs {
		docs[i].Metadata.Protein = 15
		docs[i].Metadata.Carbs = 40
		docs[i].Metadata.Fats = 10
		docs[i].Metadata.Calories = 310
	}
	docs[0].Metadata.Ingredients = "flattened rice, peanuts, onion"

	req := &model.PlanRequest{UserID: "u1", Duration: 2, MealsPerDay: 3}
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(testUser(), 3, false)

	plan := FallbackPlan(docs, req, targets)

	require.Len(t, plan.Days, 2)
	for _, day := range plan.Days {
		require.Len(t, day.Meals, 3)
		assert.Equal(t, "breakfast", day.Meals[0].MealType)
		assert.Equal(t, "lunch", day.Meals[1].MealType)
		assert.Equal(t, "dinner", day.Meals[2].MealType)
		assert.Equal(t, "Poha", day.Meals[0].Name)

		// Template ingredient lists carry through; templates without one
		// fall back to the dish name.
		require.NotEmpty(t, day.Meals[0].Ingredients)
		assert.Equal(t, "flattened rice", day.Meals[0].Ingredients[0].Item)
		assert.Equal(t, []model.Ingredient{{Item: "Dal Chawal"}}, day.Meals[1].Ingredients)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "", Classify(nil))
	assert.Equal(t, SeveritySoft, Classify([]Violation{{Severity: SeveritySoft}}))
	assert.Equal(t, SeverityHard, Classify([]Violation{
		{Severity: SeveritySoft}, {Severity: SeverityHard},
	}))
	assert.Equal(t, SeverityHard, Classify([]Violation{
		{Severity: SeveritySoft}, {Severity: SeveritySoft}, {Severity: SeveritySoft},
	}))
}
