package model

import "time"

// Subscription plan values.
const (
	PlanFree    = "free"
	PlanPro     = "pro"
	PlanMax     = "max"
	PlanExpired = "expired"
)

// Subscription status values.
const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
	StatusExpired  = "expired"
)

// Activity level values.
const (
	ActivitySedentary = "sedentary"
	ActivityLight     = "light"
	ActivityModerate  = "moderate"
	ActivityVery      = "very"
)

// Weight goal values.
const (
	GoalMaintain = "maintain"
	GoalLose     = "lose"
	GoalGain     = "gain"
)

// User holds the onboarding profile and quota counters. The engine reads the
// profile and mutates only the meal counters.
type User struct {
	ID             string     `gorm:"primaryKey;size:64" json:"id"`
	AgeRange       string     `gorm:"size:16" json:"age_range"`
	HeightCM       float64    `json:"height_cm"`
	WeightKG       float64    `json:"weight_kg"`
	TargetWeightKG float64    `json:"target_weight_kg"`
	ActivityLevel  string     `gorm:"size:16" json:"activity_level"`
	WeightGoal     string     `gorm:"size:16" json:"weight_goal"`
	DietType       string     `gorm:"size:24" json:"diet_type"`
	Regions        StringList `gorm:"type:json" json:"regions"`
	CuisineStates  StringList `gorm:"type:json" json:"cuisine_states"`
	Allergies      StringList `gorm:"type:json" json:"allergies"`
	Symptoms       StringList `gorm:"type:json" json:"symptoms"`
	Goals          StringList `gorm:"type:json" json:"goals"`

	Plan                string     `gorm:"size:16;default:free" json:"plan"`
	SubscriptionStatus  string     `gorm:"size:16;default:active" json:"subscription_status"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date"`
	TotalMealPlans      int        `json:"total_meal_plans"`
	WeeklyMealPlans     int        `json:"weekly_meal_plans"`
	LastResetDate       *time.Time `json:"last_reset_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// LabValues carries optional medical lab markers attached to a request.
type LabValues map[string]float64

// PlanRequest is the engine's input for one generate-plan call.
type PlanRequest struct {
	UserID       string     `json:"user_id"`
	MealsPerDay  int        `json:"meals_per_day"`
	Duration     int        `json:"duration"`
	Budget       float64    `json:"budget"`
	BudgetLevel  string     `json:"budget_level,omitempty"`
	IsKeto       bool       `json:"is_keto"`
	Restrictions StringList `json:"restrictions"`
	Query        string     `json:"query,omitempty"`
	MealType     string     `json:"meal_type,omitempty"`
	Labs         LabValues  `json:"labs,omitempty"`
}
