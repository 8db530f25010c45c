package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/errors"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/metrics"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/repository"
)

type planFixture struct {
	svc   *PlanService
	repo  *repository.MemoryUserRepository
	llm   *fakeLLM
	embed *fakeEmbedClient
	index *fakeIndex
}

func templateDoc(name, state, mealType string, score float64) model.ScoredDoc {
	doc := scored(name, state, score)
	doc.Metadata.DietType = model.DietVegetarian
	doc.Metadata.MealType = mealType
	doc.Metadata.Protein = 20
	doc.Metadata.Carbs = 45
	doc.Metadata.Fats = 12
	doc.Metadata.Calories = 368
	doc.Metadata.GI = "Low"
	doc.Content = name + "\nIngredients: lentils, vegetables"
	return doc
}

func newPlanFixture(t *testing.T, user *model.User) *planFixture {
	t.Helper()

	repo := repository.NewMemoryUserRepository()
	repo.Seed(user)

	llm := &fakeLLM{}
	embed := &fakeEmbedClient{}
	index := &fakeIndex{results: []model.ScoredDoc{
		templateDoc("Poha", "Maharashtra", "breakfast", 0.9),
		templateDoc("Dal Chawal", "Punjab", "lunch", 0.85),
		templateDoc("Palak Paneer", "Punjab", "dinner", 0.8),
		templateDoc("Khichdi", "All States", "dinner", 0.75),
	}}

	svc := NewPlanService(
		NewQuotaService(repo, NopLocker{}, QuotaConfig{FreeTotalLimit: 1, TestUserID: "test-user"}),
		NewMacroPlanner(MacroPlannerConfig{}),
		NewQueryExpander(nil, QueryExpanderConfig{MaxVariations: 3}),
		NewEmbedder(embed, EmbedderConfig{}),
		index,
		NewMetadataFilter(),
		NewDeduplicator(),
		NewReRanker(),
		NewPromptBuilder(),
		llm,
		NewPlanValidator(llm),
		metrics.NewRegistry(),
		PlanServiceConfig{TopK: 10, MaxDocs: 10},
	)

	return &planFixture{svc: svc, repo: repo, llm: llm, embed: embed, index: index}
}

func TestGeneratePlanHappyPath(t *testing.T) {
	user := testUser()
	f := newPlanFixture(t, user)

	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(user, 3, false)
	f.llm.responses = []string{validPlanJSON(3, 3, targets)}

	req := &model.PlanRequest{UserID: user.ID, Duration: 3, MealsPerDay: 3}
	result, err := f.svc.GeneratePlan(context.Background(), req)

	require.NoError(t, err)
	require.NotNil(t, result.Plan)
	assert.Len(t, result.Plan.Days, 3)
	assert.False(t, result.UsedFallback)
	assert.NotEmpty(t, result.RequestID)
	assert.Equal(t, targets, result.Targets)
	assert.Positive(t, result.RetrievedDocs)
	assert.Positive(t, result.PromptDocs)
	assert.Equal(t, 100, result.TokensUsed)
	assert.NotEmpty(t, result.QueryVariants)
	assert.Equal(t, 1, f.llm.callCount())

	stored, _ := f.repo.GetByID(context.Background(), user.ID)
	assert.Equal(t, 1, stored.TotalMealPlans, "quota increments once per success")
}

func TestGeneratePlanMalformedOutputFallsBack(t *testing.T) {
	user := testUser()
	f := newPlanFixture(t, user)
	f.llm.responses = []string{"I am sorry, I cannot produce JSON today."}

	req := &model.PlanRequest{UserID: user.ID, Duration: 3, MealsPerDay: 3}
	result, err := f.svc.GeneratePlan(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, result.UsedFallback)
	require.Len(t, result.Plan.Days, 3)
	for _, day := range result.Plan.Days {
		assert.Len(t, day.Meals, 3)
	}
	// One generation call plus one fix-JSON attempt before giving up.
	assert.Equal(t, 2, f.llm.callCount())

	stored, _ := f.repo.GetByID(context.Background(), user.ID)
	assert.Equal(t, 1, stored.TotalMealPlans, "fallback plans still count against quota")
}

func TestGeneratePlanQuotaDeniedShortCircuits(t *testing.T) {
	user := testUser()
	user.Plan = model.PlanFree
	user.TotalMealPlans = 1
	f := newPlanFixture(t, user)

	req := &model.PlanRequest{UserID: user.ID, Duration: 3, MealsPerDay: 3}
	_, err := f.svc.GeneratePlan(context.Background(), req)

	var qe *apperrors.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 0, f.llm.callCount(), "no model call on denial")
	f.index.mu.Lock()
	assert.Equal(t, 0, f.index.searches, "no retrieval on denial")
	f.index.mu.Unlock()
}

func TestGeneratePlanRejectsBadRequests(t *testing.T) {
	f := newPlanFixture(t, testUser())

	tests := []struct {
		name string
		req  *model.PlanRequest
	}{
		{"missing user", &model.PlanRequest{Duration: 3}},
		{"zero duration", &model.PlanRequest{UserID: "u1"}},
		{"unsupported duration", &model.PlanRequest{UserID: "u1", Duration: 4}},
		{"duration too long", &model.PlanRequest{UserID: "u1", Duration: 31}},
		{"single meal", &model.PlanRequest{UserID: "u1", Duration: 3, MealsPerDay: 1}},
		{"too many meals", &model.PlanRequest{UserID: "u1", Duration: 3, MealsPerDay: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.GeneratePlan(context.Background(), tt.req)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
		})
	}
}

func TestGeneratePlanEmbedOutageFails(t *testing.T) {
	user := testUser()
	f := newPlanFixture(t, user)
	f.embed.err = errors.New("embedding backend unreachable")

	req := &model.PlanRequest{UserID: user.ID, Duration: 3, MealsPerDay: 3}
	_, err := f.svc.GeneratePlan(context.Background(), req)

	require.Error(t, err)
	stored, _ := f.repo.GetByID(context.Background(), user.ID)
	assert.Equal(t, 0, stored.TotalMealPlans, "failed requests never consume quota")
}

func TestGeneratePlanHardViolationsFallBack(t *testing.T) {
	user := testUser()
	f := newPlanFixture(t, user)

	// A structurally valid plan with the wrong number of days is a hard
	// violation and cannot be repaired meal by meal.
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(user, 3, false)
	f.llm.responses = []string{validPlanJSON(1, 3, targets)}

	req := &model.PlanRequest{UserID: user.ID, Duration: 5, MealsPerDay: 3}
	result, err := f.svc.GeneratePlan(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, result.UsedFallback)
	assert.Len(t, result.Plan.Days, 5)
}

func TestGeneratePlanStageBudgetsAreSeparate(t *testing.T) {
	user := testUser()
	f := newPlanFixture(t, user)
	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(user, 3, false)
	f.llm.responses = []string{validPlanJSON(3, 3, targets)}

	req := &model.PlanRequest{UserID: user.ID, Duration: 3, MealsPerDay: 3}
	_, err := f.svc.GeneratePlan(context.Background(), req)
	require.NoError(t, err)

	f.embed.mu.Lock()
	embedBudgets := append([]time.Duration(nil), f.embed.budgets...)
	f.embed.mu.Unlock()
	f.index.mu.Lock()
	searchBudgets := append([]time.Duration(nil), f.index.budgets...)
	f.index.mu.Unlock()

	require.NotEmpty(t, embedBudgets)
	require.NotEmpty(t, searchBudgets)
	for _, b := range embedBudgets {
		assert.LessOrEqual(t, b, embedBudget)
	}
	for _, b := range searchBudgets {
		assert.LessOrEqual(t, b, searchBudget,
			"index searches run on their own budget, not a shared retrieval window")
	}
}

func TestGeneratePlanProfileQueryWhenNoExplicitQuery(t *testing.T) {
	user := testUser()
	user.Regions = model.StringList{"Punjab"}
	f := newPlanFixture(t, user)

	targets := NewMacroPlanner(MacroPlannerConfig{}).Derive(user, 3, false)
	f.llm.responses = []string{validPlanJSON(3, 3, targets)}

	req := &model.PlanRequest{UserID: user.ID, Duration: 3, MealsPerDay: 3}
	result, err := f.svc.GeneratePlan(context.Background(), req)

	require.NoError(t, err)
	require.NotEmpty(t, result.QueryVariants)
	assert.Contains(t, result.QueryVariants[0], "Punjab")
	assert.Contains(t, result.QueryVariants[0], "vegetarian")
}
