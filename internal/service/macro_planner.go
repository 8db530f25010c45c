package service

import (
	"math"

	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
)

// Activity multipliers applied to BMR.
var activityMultipliers = map[string]float64{
	model.ActivitySedentary: 1.2,
	model.ActivityLight:     1.375,
	model.ActivityModerate:  1.465,
	model.ActivityVery:      1.55,
}

// Age midpoints for the onboarding range bins.
var ageMidpoints = map[string]float64{
	"18-24": 21,
	"25-29": 27,
	"30-34": 32,
	"35-39": 37,
	"40-45": 42,
	"56+":   60,
}

const defaultAge = 30

// MacroDistribution is a calorie split in percent; values sum to 100.
type MacroDistribution struct {
	CarbsPct   float64
	ProteinPct float64
	FatPct     float64
}

// KetoDistribution and BalancedDistribution are the two supported splits.
// Balanced is PCOS-optimized: higher protein, moderated carbs.
var (
	KetoDistribution     = MacroDistribution{CarbsPct: 7, ProteinPct: 30, FatPct: 63}
	BalancedDistribution = MacroDistribution{CarbsPct: 35, ProteinPct: 35, FatPct: 30}
)

// MacroPlannerConfig holds the validation tolerance bands.
type MacroPlannerConfig struct {
	TolerancePct float64 // per-meal, percent of target
	DailyCarbTol float64 // grams
	DailyPFTol   float64 // grams
}

// MacroPlanner derives calorie and macro targets deterministically from the
// user profile. Derived values are always recomputed, never trusted from the
// caller.
type MacroPlanner struct {
	cfg MacroPlannerConfig
}

func NewMacroPlanner(cfg MacroPlannerConfig) *MacroPlanner {
	if cfg.TolerancePct <= 0 {
		cfg.TolerancePct = 3
	}
	if cfg.DailyCarbTol <= 0 {
		cfg.DailyCarbTol = 2
	}
	if cfg.DailyPFTol <= 0 {
		cfg.DailyPFTol = 5
	}
	return &MacroPlanner{cfg: cfg}
}

// Config returns the tolerance bands in use.
func (p *MacroPlanner) Config() MacroPlannerConfig {
	return p.cfg
}

// AgeFromRange returns the midpoint for a range bin, defaulting to 30.
func AgeFromRange(ageRange string) float64 {
	if age, ok := ageMidpoints[ageRange]; ok {
		return age
	}
	return defaultAge
}

// BMR computes the Mifflin-St Jeor basal metabolic rate (female form):
// 10·weight + 6.25·height − 5·age − 161.
func (p *MacroPlanner) BMR(weightKG, heightCM, age float64) float64 {
	return 10*weightKG + 6.25*heightCM - 5*age - 161
}

// TDEE multiplies BMR by the activity factor and rounds.
func (p *MacroPlanner) TDEE(bmr float64, activityLevel string) float64 {
	mult, ok := activityMultipliers[activityLevel]
	if !ok {
		mult = activityMultipliers[model.ActivitySedentary]
	}
	return math.Round(bmr * mult)
}

// DailyCalories applies the ±500 kcal goal adjustment to TDEE.
func (p *MacroPlanner) DailyCalories(tdee float64, weightGoal string) float64 {
	switch weightGoal {
	case model.GoalLose:
		return tdee - 500
	case model.GoalGain:
		return tdee + 500
	default:
		return tdee
	}
}

// BMI is weight over height squared, rounded to one decimal.
func (p *MacroPlanner) BMI(weightKG, heightCM float64) float64 {
	if heightCM <= 0 {
		return 0
	}
	heightM := heightCM / 100
	return math.Round(weightKG/(heightM*heightM)*10) / 10
}

// Derive computes the full macro target set for one request. The daily
// calorie number is identical for keto and balanced; only the distribution
// differs.
func (p *MacroPlanner) Derive(user *model.User, mealsPerDay int, isKeto bool) model.MacroTargets {
	if mealsPerDay <= 0 {
		mealsPerDay = 3
	}

	age := AgeFromRange(user.AgeRange)
	bmr := p.BMR(user.WeightKG, user.HeightCM, age)
	tdee := p.TDEE(bmr, user.ActivityLevel)
	daily := p.DailyCalories(tdee, user.WeightGoal)

	dist := BalancedDistribution
	if isKeto {
		dist = KetoDistribution
	}

	dailyGrams := model.MacroSet{
		Carbs:   math.Round(daily * dist.CarbsPct / 100 / 4),
		Protein: math.Round(daily * dist.ProteinPct / 100 / 4),
		Fats:    math.Round(daily * dist.FatPct / 100 / 9),
	}

	meals := float64(mealsPerDay)
	perMeal := model.MacroSet{
		Carbs:   math.Round(dailyGrams.Carbs / meals),
		Protein: math.Round(dailyGrams.Protein / meals),
		Fats:    math.Round(dailyGrams.Fats / meals),
	}

	tolFrac := p.cfg.TolerancePct / 100
	perMealTol := model.MacroSet{
		Carbs:   perMeal.Carbs * tolFrac,
		Protein: perMeal.Protein * tolFrac,
		Fats:    perMeal.Fats * tolFrac,
	}

	targets := model.MacroTargets{
		BMR:           bmr,
		TDEE:          tdee,
		BMI:           p.BMI(user.WeightKG, user.HeightCM),
		DailyCalories: daily,
		DailyGrams:    dailyGrams,
		PerMealGrams:  perMeal,
		PerMealTol:    perMealTol,
		DailyTol: model.MacroSet{
			Carbs:   p.cfg.DailyCarbTol,
			Protein: p.cfg.DailyPFTol,
			Fats:    p.cfg.DailyPFTol,
		},
		MealsPerDay: mealsPerDay,
		IsKeto:      isKeto,
	}
	if isKeto {
		targets.KetoCarbAllowance = perMeal.Carbs
	}
	return targets
}
