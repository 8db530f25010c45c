package model

import "time"

// MacroSet holds macro grams for a meal or a day.
type MacroSet struct {
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fats    float64 `json:"fats"`
}

// Ingredient is a single item in a meal. Quantity and Unit may be empty when
// the model returned a bare string.
type Ingredient struct {
	Item     string `json:"item"`
	Quantity string `json:"quantity,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

// Meal is one meal slot in a day.
type Meal struct {
	MealType    string       `json:"mealType"`
	Name        string       `json:"name"`
	Ingredients []Ingredient `json:"ingredients"`
	Macros      MacroSet     `json:"macros"`
	Fiber       float64      `json:"fiber,omitempty"`
	Calories    float64      `json:"calories"`
	GI          string       `json:"gi,omitempty"`
	PrepTime    string       `json:"prepTime,omitempty"`
	Tip         string       `json:"tip,omitempty"`
}

// Day is an ordered sequence of meals.
type Day struct {
	Day   int    `json:"day"`
	Meals []Meal `json:"meals"`
}

// MealPlan is the validated output of a generation request. Plans are
// ephemeral inside the engine; persistence belongs to the caller.
type MealPlan struct {
	Days []Day `json:"days"`
}

// MacroTargets is the deterministic arithmetic output of the macro planner
// for one request.
type MacroTargets struct {
	BMR           float64  `json:"bmr"`
	TDEE          float64  `json:"tdee"`
	BMI           float64  `json:"bmi"`
	DailyCalories float64  `json:"dailyCalories"`
	DailyGrams    MacroSet `json:"dailyGrams"`
	PerMealGrams  MacroSet `json:"perMealGrams"`
	// PerMealTol is the ±tolerance in grams for each per-meal macro.
	PerMealTol MacroSet `json:"perMealTol"`
	// DailyTol is the ±reconciliation band in grams for each day's totals.
	DailyTol MacroSet `json:"dailyTol"`
	// KetoCarbAllowance is the per-meal net-carb ceiling when keto.
	KetoCarbAllowance float64 `json:"ketoCarbAllowance,omitempty"`
	MealsPerDay       int     `json:"mealsPerDay"`
	IsKeto            bool    `json:"isKeto"`
}

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"durationMs"`
}

// GenerateResult is the plan plus per-request retrieval and timing metadata.
type GenerateResult struct {
	RequestID      string        `json:"requestId"`
	Plan           *MealPlan     `json:"plan"`
	Targets        MacroTargets  `json:"targets"`
	UsedFallback   bool          `json:"usedFallback"`
	RetrievedDocs  int           `json:"retrievedDocs"`
	FilteredDocs   int           `json:"filteredDocs"`
	DedupedDocs    int           `json:"dedupedDocs"`
	PromptDocs     int           `json:"promptDocs"`
	QueryVariants  []string      `json:"queryVariants"`
	RerankTopDelta float64       `json:"rerankTopDelta"`
	Timings        []StageTiming `json:"timings"`
	TokensUsed     int           `json:"tokensUsed"`
}
