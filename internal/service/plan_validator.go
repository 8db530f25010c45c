package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	apperrors "github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/errors"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/logger"
	"go.uber.org/zap"
)

// Violation severity classes.
const (
	SeveritySoft = "soft"
	SeverityHard = "hard"
)

// Violation is one validation finding. Day and Meal are 1-based; 0 means the
// finding applies to the whole plan.
type Violation struct {
	Severity string
	Day      int
	Meal     int
	Message  string
}

// Daily reconciliation bands in grams, used when the targets carry none.
const (
	dailyCarbBand = 2.0
	dailyPFBand   = 5.0
)

// calorieArithmeticTol allows rounding slack on 4p+4c+9f.
const calorieArithmeticTol = 2.0

// PlanValidator parses and validates LLM output against the derived targets
// and diet rules. Parsing failures get one bounded repair pass and one
// regeneration before surfacing ParseError.
type PlanValidator struct {
	llm LLMClient
}

func NewPlanValidator(llm LLMClient) *PlanValidator {
	return &PlanValidator{llm: llm}
}

// Parse turns raw model output into a MealPlan. Recovery order: direct
// unmarshal, largest balanced JSON object, then a single terse "fix this
// JSON" regeneration.
func (v *PlanValidator) Parse(ctx context.Context, raw string) (*model.MealPlan, error) {
	if plan, err := unmarshalPlan(raw); err == nil {
		return plan, nil
	}

	if extracted := extractJSON(raw); extracted != "" {
		if plan, err := unmarshalPlan(extracted); err == nil {
			return plan, nil
		}
	}

	if v.llm != nil {
		logger.Warn("plan output unparseable, requesting JSON fix")
		prompt := "The following is meant to be a JSON object with a top-level \"days\" array. " +
			"Fix any syntax errors and respond with the corrected JSON only, no commentary:\n\n" + raw
		completion, err := v.llm.Generate(ctx, prompt, GenerateOptions{Temperature: 0, MaxTokens: 4000})
		if err == nil {
			fixed := completion.Text
			if plan, err := unmarshalPlan(fixed); err == nil {
				return plan, nil
			}
			if extracted := extractJSON(fixed); extracted != "" {
				if plan, err := unmarshalPlan(extracted); err == nil {
					return plan, nil
				}
			}
		}
	}

	return nil, apperrors.New(apperrors.ErrParse, "model output is not a valid meal plan")
}

func unmarshalPlan(s string) (*model.MealPlan, error) {
	var plan model.MealPlan
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &plan); err != nil {
		return nil, err
	}
	if len(plan.Days) == 0 {
		return nil, fmt.Errorf("no days in plan")
	}
	return &plan, nil
}

// extractJSON returns the largest balanced {...} substring, respecting string
// literals and escapes.
func extractJSON(s string) string {
	best := ""
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				if inString {
					escaped = true
				}
			case '"':
				inString = !inString
			case '{':
				if !inString {
					depth++
				}
			case '}':
				if !inString {
					depth--
					if depth == 0 {
						if candidate := s[start : i+1]; len(candidate) > len(best) {
							best = candidate
						}
						i = len(s)
					}
				}
			}
		}
	}
	return best
}

// Validate checks plan structure, macro tolerances and diet bans. Returns the
// list of findings; an empty list means the plan is acceptable as-is.
func (v *PlanValidator) Validate(plan *model.MealPlan, targets model.MacroTargets, user *model.User, req *model.PlanRequest) []Violation {
	var violations []Violation

	if len(plan.Days) != req.Duration {
		violations = append(violations, Violation{
			Severity: SeverityHard,
			Message:  fmt.Sprintf("expected %d days, got %d", req.Duration, len(plan.Days)),
		})
		return violations
	}

	forbidden := ForbiddenItems(user, req)
	dietType := strings.ToLower(user.DietType)

	for di, day := range plan.Days {
		if len(day.Meals) != targets.MealsPerDay {
			violations = append(violations, Violation{
				Severity: SeverityHard,
				Day:      di + 1,
				Message:  fmt.Sprintf("expected %d meals, got %d", targets.MealsPerDay, len(day.Meals)),
			})
			continue
		}

		var dayTotal model.MacroSet
		for mi, meal := range day.Meals {
			violations = append(violations, v.checkMeal(meal, di+1, mi+1, targets, dietType, req.IsKeto, forbidden)...)
			dayTotal.Protein += meal.Macros.Protein
			dayTotal.Carbs += countableCarbs(meal, req.IsKeto)
			dayTotal.Fats += meal.Macros.Fats
		}

		violations = append(violations, v.checkDailyBands(dayTotal, targets, di+1)...)
	}

	return violations
}

// countableCarbs applies the net-carb rule: keto counts carbs minus fiber
// when the model reported fiber.
func countableCarbs(meal model.Meal, isKeto bool) float64 {
	if isKeto && meal.Fiber > 0 {
		return math.Max(0, meal.Macros.Carbs-meal.Fiber)
	}
	return meal.Macros.Carbs
}

func (v *PlanValidator) checkMeal(meal model.Meal, day, idx int, targets model.MacroTargets, dietType string, isKeto bool, forbidden []string) []Violation {
	var out []Violation

	mealName := strings.ToLower(meal.Name)
	for _, item := range forbidden {
		if strings.Contains(mealName, item) {
			out = append(out, Violation{
				Severity: SeverityHard, Day: day, Meal: idx,
				Message: fmt.Sprintf("meal %q contains forbidden item %q", meal.Name, item),
			})
		}
	}

	var banned []string
	if isKeto {
		banned = append(banned, ketoGrainBan...)
	}
	switch dietType {
	case model.DietVegan:
		banned = append(banned, veganBan...)
	case model.DietJain:
		banned = append(banned, nonVegBan...)
		banned = append(banned, "egg")
		banned = append(banned, jainBan...)
	case model.DietVegetarian:
		banned = append(banned, nonVegBan...)
		banned = append(banned, "egg")
	case model.DietEggetarian:
		banned = append(banned, nonVegBan...)
	}
	for _, ing := range meal.Ingredients {
		item := strings.ToLower(ing.Item)
		for _, b := range banned {
			if containsToken(item, b) {
				out = append(out, Violation{
					Severity: SeverityHard, Day: day, Meal: idx,
					Message: fmt.Sprintf("ingredient %q violates diet rules (%s)", ing.Item, b),
				})
			}
		}
	}

	carbs := countableCarbs(meal, isKeto)

	out = append(out, checkMacro("protein", meal.Macros.Protein, targets.PerMealGrams.Protein, targets.PerMealTol.Protein, day, idx)...)
	out = append(out, checkMacro("carbs", carbs, targets.PerMealGrams.Carbs, targets.PerMealTol.Carbs, day, idx)...)
	out = append(out, checkMacro("fats", meal.Macros.Fats, targets.PerMealGrams.Fats, targets.PerMealTol.Fats, day, idx)...)

	expected := 4*meal.Macros.Protein + 4*meal.Macros.Carbs + 9*meal.Macros.Fats
	if meal.Calories > 0 && math.Abs(meal.Calories-expected) > calorieArithmeticTol {
		out = append(out, Violation{
			Severity: SeveritySoft, Day: day, Meal: idx,
			Message: fmt.Sprintf("calories %.0f disagree with macros (expected %.0f)", meal.Calories, expected),
		})
	}

	return out
}

// checkMacro classifies a tolerance miss: within 10% past the band is soft
// and repairable, beyond that is hard.
func checkMacro(name string, actual, target, tol float64, day, idx int) []Violation {
	if target <= 0 {
		return nil
	}
	diff := math.Abs(actual - target)
	if diff <= tol {
		return nil
	}
	severity := SeveritySoft
	if diff > target*0.10 {
		severity = SeverityHard
	}
	return []Violation{{
		Severity: severity, Day: day, Meal: idx,
		Message: fmt.Sprintf("%s %.1fg outside target %.1fg (±%.1fg)", name, actual, target, tol),
	}}
}

// checkDailyBands reconciles the day's totals against the daily targets.
// The bands are the configured absolute grams; per-meal tolerance does not
// widen them, so meals that each sit inside their own band can still owe a
// repairable correction at the day level.
func (v *PlanValidator) checkDailyBands(total model.MacroSet, targets model.MacroTargets, day int) []Violation {
	carbBand := targets.DailyTol.Carbs
	if carbBand <= 0 {
		carbBand = dailyCarbBand
	}
	proteinBand := targets.DailyTol.Protein
	if proteinBand <= 0 {
		proteinBand = dailyPFBand
	}
	fatBand := targets.DailyTol.Fats
	if fatBand <= 0 {
		fatBand = dailyPFBand
	}

	var out []Violation
	if math.Abs(total.Carbs-targets.DailyGrams.Carbs) > carbBand {
		out = append(out, Violation{
			Severity: SeveritySoft, Day: day,
			Message: fmt.Sprintf("daily carbs %.1fg off target %.1fg (±%.1fg)", total.Carbs, targets.DailyGrams.Carbs, carbBand),
		})
	}
	if math.Abs(total.Protein-targets.DailyGrams.Protein) > proteinBand {
		out = append(out, Violation{
			Severity: SeveritySoft, Day: day,
			Message: fmt.Sprintf("daily protein %.1fg off target %.1fg (±%.1fg)", total.Protein, targets.DailyGrams.Protein, proteinBand),
		})
	}
	if math.Abs(total.Fats-targets.DailyGrams.Fats) > fatBand {
		out = append(out, Violation{
			Severity: SeveritySoft, Day: day,
			Message: fmt.Sprintf("daily fats %.1fg off target %.1fg (±%.1fg)", total.Fats, targets.DailyGrams.Fats, fatBand),
		})
	}
	return out
}

// Classify reduces a violation list to its overall severity. A soft plan has
// at most two soft findings and no hard ones.
func Classify(violations []Violation) string {
	if len(violations) == 0 {
		return ""
	}
	soft := 0
	for _, v := range violations {
		if v.Severity == SeverityHard {
			return SeverityHard
		}
		soft++
	}
	if soft <= 2 {
		return SeveritySoft
	}
	return SeverityHard
}

// RepairMeal asks the model to revise a single offending meal. One round
// only; the caller decides whether to accept.
func (v *PlanValidator) RepairMeal(ctx context.Context, meal model.Meal, findings []Violation, targets model.MacroTargets) (*model.Meal, error) {
	if v.llm == nil {
		return nil, apperrors.New(apperrors.ErrLLMService, "no LLM available for repair")
	}

	mealJSON, err := json.Marshal(meal)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrParse, "failed to serialize meal for repair")
	}

	var problems []string
	for _, f := range findings {
		problems = append(problems, "- "+f.Message)
	}

	prompt := fmt.Sprintf(
		"Revise this meal to fix the listed problems. Keep the same mealType and overall character.\n"+
			"Targets per meal: protein %.0fg, carbs %.0fg, fats %.0fg.\n\nMeal:\n%s\n\nProblems:\n%s\n\n"+
			"Respond with the corrected meal as JSON only.",
		targets.PerMealGrams.Protein, targets.PerMealGrams.Carbs, targets.PerMealGrams.Fats,
		string(mealJSON), strings.Join(problems, "\n"))

	completion, err := v.llm.Generate(ctx, prompt, GenerateOptions{Temperature: 0.3, MaxTokens: 1000})
	if err != nil {
		return nil, err
	}

	raw := completion.Text
	if extracted := extractJSON(raw); extracted != "" {
		raw = extracted
	}
	var fixed model.Meal
	if err := json.Unmarshal([]byte(raw), &fixed); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrParse, "repair output unparseable")
	}
	if fixed.MealType == "" {
		fixed.MealType = meal.MealType
	}
	return &fixed, nil
}

// mealSlotOrder assigns meal types to slots for fallback assembly.
var mealSlotOrder = []string{
	model.MealTypeBreakfast,
	model.MealTypeLunch,
	model.MealTypeDinner,
	model.MealTypeSnack,
}

// FallbackPlan assembles a deterministic plan directly from the re-ranked
// templates, filling each day's slots by meal type. Used when generation or
// validation fails hard.
func FallbackPlan(docs []model.ScoredDoc, req *model.PlanRequest, targets model.MacroTargets) *model.MealPlan {
	byType := make(map[string][]model.ScoredDoc)
	for _, doc := range docs {
		t := strings.ToLower(doc.Metadata.MealType)
		byType[t] = append(byType[t], doc)
	}

	slots := make([]string, targets.MealsPerDay)
	for i := range slots {
		slots[i] = mealSlotOrder[i%len(mealSlotOrder)]
	}

	used := make(map[string]int)
	pick := func(mealType string) model.Meal {
		pool := byType[mealType]
		if len(pool) == 0 {
			pool = docs
		}
		if len(pool) == 0 {
			return model.Meal{
				MealType: mealType,
				Name:     "Simple balanced plate",
				Macros:   targets.PerMealGrams,
			}
		}
		doc := pool[used[mealType]%len(pool)]
		used[mealType]++
		m := doc.Metadata
		return model.Meal{
			MealType:    mealType,
			Name:        m.MealName,
			Ingredients: fallbackIngredients(m),
			Macros: model.MacroSet{
				Protein: m.Protein,
				Carbs:   m.Carbs,
				Fats:    m.Fats,
			},
			Fiber:    m.Fiber,
			Calories: m.Calories,
			GI:       m.GI,
			PrepTime: m.PrepTime,
		}
	}

	plan := &model.MealPlan{Days: make([]model.Day, req.Duration)}
	for d := 0; d < req.Duration; d++ {
		day := model.Day{Day: d + 1, Meals: make([]model.Meal, len(slots))}
		for i, slot := range slots {
			day.Meals[i] = pick(slot)
		}
		plan.Days[d] = day
	}

	logger.Info("assembled fallback plan from templates",
		zap.Int("days", req.Duration),
		zap.Int("meals_per_day", targets.MealsPerDay),
		zap.Int("templates", len(docs)),
	)
	return plan
}

// fallbackIngredients splits the template's comma-separated ingredient list
// into meal items. Templates without one fall back to the dish name so the
// meal still carries a scannable cue.
func fallbackIngredients(m model.Metadata) []model.Ingredient {
	var out []model.Ingredient
	for _, part := range strings.Split(m.Ingredients, ",") {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, model.Ingredient{Item: item})
		}
	}
	if len(out) == 0 && m.MealName != "" {
		out = []model.Ingredient{{Item: m.MealName}}
	}
	return out
}

// containsToken matches token as a whole word inside item, so "corn" does
// not flag "cornflour-free" style names by accident.
func containsToken(item, token string) bool {
	idx := strings.Index(item, token)
	for idx >= 0 {
		before := idx == 0 || !isLetter(item[idx-1])
		afterIdx := idx + len(token)
		after := afterIdx >= len(item) || !isLetter(item[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(item[idx+1:], token)
		if next < 0 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
