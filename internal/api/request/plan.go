package request

import (
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
)

// GeneratePlanRequest is the POST body for plan generation.
type GeneratePlanRequest struct {
	UserID       string             `json:"user_id" binding:"required"`
	MealsPerDay  int                `json:"meals_per_day" binding:"omitempty,oneof=2 3 4"`
	Duration     int                `json:"duration" binding:"required,oneof=3 5 7"`
	Budget       float64            `json:"budget" binding:"omitempty,min=0"`
	BudgetLevel  string             `json:"budget_level" binding:"omitempty,oneof=low medium high"`
	IsKeto       bool               `json:"is_keto"`
	Restrictions []string           `json:"restrictions"`
	Query        string             `json:"query" binding:"omitempty,max=500"`
	MealType     string             `json:"meal_type" binding:"omitempty,oneof=breakfast lunch dinner snack"`
	Labs         map[string]float64 `json:"labs"`
}

// ToModel converts the binding struct to the engine request.
func (r *GeneratePlanRequest) ToModel() *model.PlanRequest {
	return &model.PlanRequest{
		UserID:       r.UserID,
		MealsPerDay:  r.MealsPerDay,
		Duration:     r.Duration,
		Budget:       r.Budget,
		BudgetLevel:  r.BudgetLevel,
		IsKeto:       r.IsKeto,
		Restrictions: model.StringList(r.Restrictions),
		Query:        r.Query,
		MealType:     r.MealType,
		Labs:         model.LabValues(r.Labs),
	}
}

// IngestRequest triggers a template ingestion run.
type IngestRequest struct {
	Dir string `json:"dir" binding:"required"`
}
