package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/errors"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/logger"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Per-request stage budgets. Exceeding a budget cancels the stage; when
// partial retrieval results exist the request degrades to the fallback plan
// instead of failing.
const (
	embedBudget   = 15 * time.Second
	searchBudget  = 10 * time.Second
	llmBudget     = 60 * time.Second
	overallBudget = 90 * time.Second
)

// PlanServiceConfig bounds retrieval for the orchestrator.
type PlanServiceConfig struct {
	TopK     int
	MinScore float64
	MaxDocs  int
	FanOut   int
}

// PlanService orchestrates one generatePlan call end to end: quota, macro
// derivation, retrieval, re-ranking, prompt assembly, generation, validation
// and the repair/fallback ladder.
type PlanService struct {
	quota     *QuotaService
	macros    *MacroPlanner
	expander  *QueryExpander
	embedder  *Embedder
	index     VectorIndex
	filter    *MetadataFilter
	dedup     *Deduplicator
	reranker  *ReRanker
	prompts   *PromptBuilder
	llm       LLMClient
	validator *PlanValidator
	metrics   *metrics.Registry
	cfg       PlanServiceConfig
}

func NewPlanService(
	quota *QuotaService,
	macros *MacroPlanner,
	expander *QueryExpander,
	embedder *Embedder,
	index VectorIndex,
	filter *MetadataFilter,
	dedup *Deduplicator,
	reranker *ReRanker,
	prompts *PromptBuilder,
	llm LLMClient,
	validator *PlanValidator,
	registry *metrics.Registry,
	cfg PlanServiceConfig,
) *PlanService {
	if cfg.TopK <= 0 {
		cfg.TopK = 25
	}
	if cfg.MaxDocs <= 0 {
		cfg.MaxDocs = 20
	}
	if cfg.FanOut <= 0 || cfg.FanOut > 4 {
		cfg.FanOut = 4
	}
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	return &PlanService{
		quota:     quota,
		macros:    macros,
		expander:  expander,
		embedder:  embedder,
		index:     index,
		filter:    filter,
		dedup:     dedup,
		reranker:  reranker,
		prompts:   prompts,
		llm:       llm,
		validator: validator,
		metrics:   registry,
		cfg:       cfg,
	}
}

// GeneratePlan runs the full pipeline for one request. Quota is incremented
// exactly once, after a validated plan exists, including fallback plans.
func (s *PlanService) GeneratePlan(ctx context.Context, req *model.PlanRequest) (*model.GenerateResult, error) {
	if err := validateRequest(req); err != nil {
		s.metrics.Inc("generate.rejected")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, overallBudget)
	defer cancel()

	requestID := uuid.NewString()
	result := &model.GenerateResult{RequestID: requestID}
	started := time.Now()

	log := logger.Logger.With(
		zap.String("request_id", requestID),
		zap.String("user_id", req.UserID),
	)

	user, err := s.quota.Check(ctx, req.UserID)
	if err != nil {
		s.metrics.Inc("generate.quota_denied")
		return nil, err
	}

	targets := s.macros.Derive(user, req.MealsPerDay, req.IsKeto)
	result.Targets = targets

	// Retrieval. A failure here with zero documents is fatal; with partial
	// results the pipeline continues and can still fall back.
	docs, variants, err := s.retrieve(ctx, user, req, result)
	result.QueryVariants = variants
	if err != nil && len(docs) == 0 {
		s.metrics.Inc("generate.retrieval_failed")
		return nil, err
	}

	ranked := s.rankAndTrim(docs, user, req, targets, result)
	if len(ranked) == 0 {
		s.metrics.Inc("generate.no_candidates")
		return nil, apperrors.New(apperrors.ErrGenerationFailed, "no meal templates matched the request")
	}

	plan, usedFallback, tokens, err := s.generateAndValidate(ctx, user, req, targets, ranked, result, log)
	if err != nil {
		s.metrics.Inc("generate.failed")
		return nil, err
	}
	result.Plan = plan
	result.UsedFallback = usedFallback
	result.TokensUsed = tokens

	if err := s.quota.Increment(ctx, user); err != nil {
		// The plan is already valid; losing it over a counter write would
		// punish the user for an infrastructure fault.
		log.Error("quota increment failed after successful generation", zap.Error(err))
		s.metrics.Inc("quota.increment_failed")
	}

	total := time.Since(started)
	result.Timings = append(result.Timings, model.StageTiming{Stage: "total", Duration: total})
	s.metrics.Observe("generate.total", total)
	s.metrics.Inc("generate.ok")
	if usedFallback {
		s.metrics.Inc("generate.fallback")
	}

	log.Info("meal plan generated",
		zap.Int("days", len(plan.Days)),
		zap.Bool("fallback", usedFallback),
		zap.Int("retrieved", result.RetrievedDocs),
		zap.Int("prompt_docs", result.PromptDocs),
		zap.Duration("duration", total),
	)
	return result, nil
}

func validateRequest(req *model.PlanRequest) error {
	if req == nil || strings.TrimSpace(req.UserID) == "" {
		return apperrors.New(apperrors.ErrInvalidParam, "user id is required")
	}
	switch req.Duration {
	case 3, 5, 7:
	default:
		return apperrors.New(apperrors.ErrInvalidParam, "duration must be 3, 5 or 7 days")
	}
	// Zero meals per day means the default of three.
	switch req.MealsPerDay {
	case 0, 2, 3, 4:
	default:
		return apperrors.New(apperrors.ErrInvalidParam, "meals per day must be 2, 3 or 4")
	}
	return nil
}

// retrieve expands the base query and fans out embed+search per variant with
// bounded parallelism. Returns whatever was retrieved plus the first error;
// the caller decides whether partial results suffice.
func (s *PlanService) retrieve(ctx context.Context, user *model.User, req *model.PlanRequest, result *model.GenerateResult) ([]model.ScoredDoc, []string, error) {
	stageStart := time.Now()

	baseQuery := buildBaseQuery(user, req)
	variants := s.expander.Expand(ctx, baseQuery)

	var mu sync.Mutex
	var all []model.ScoredDoc

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FanOut)
	for _, variant := range variants {
		variant := variant
		g.Go(func() error {
			// Each stage carries its own budget so a slow embedding call
			// cannot starve the index search.
			embedCtx, cancelEmbed := context.WithTimeout(gctx, embedBudget)
			vec, err := s.embedder.EmbedOne(embedCtx, variant)
			cancelEmbed()
			if err != nil {
				return err
			}
			searchCtx, cancelSearch := context.WithTimeout(gctx, searchBudget)
			docs, err := s.index.SimilaritySearch(searchCtx, vec, s.cfg.TopK)
			cancelSearch()
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, docs...)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	// Union by document id, keeping the best score per id.
	byID := make(map[string]int, len(all))
	union := make([]model.ScoredDoc, 0, len(all))
	for _, doc := range all {
		if prev, ok := byID[doc.ID]; ok {
			if doc.SemanticScore > union[prev].SemanticScore {
				union[prev] = doc
			}
			continue
		}
		byID[doc.ID] = len(union)
		union = append(union, doc)
	}

	duration := time.Since(stageStart)
	result.RetrievedDocs = len(union)
	result.Timings = append(result.Timings, model.StageTiming{Stage: "retrieve", Duration: duration})
	s.metrics.Observe("generate.retrieve", duration)

	if err != nil {
		if ctx.Err() != nil {
			err = apperrors.Wrap(err, apperrors.ErrCancelled, "retrieval cancelled")
		}
		return union, variants, err
	}
	return union, variants, nil
}

// buildBaseQuery composes the retrieval query from the explicit query text or
// the profile when none was given.
func buildBaseQuery(user *model.User, req *model.PlanRequest) string {
	if q := strings.TrimSpace(req.Query); q != "" {
		return q
	}

	var parts []string
	if len(user.Regions) > 0 {
		parts = append(parts, strings.Join(user.Regions, " "))
	} else if len(user.CuisineStates) > 0 {
		parts = append(parts, strings.Join(user.CuisineStates, " "))
	}
	if user.DietType != "" {
		parts = append(parts, user.DietType)
	}
	if req.IsKeto {
		parts = append(parts, "keto low carb")
	}
	if req.MealType != "" {
		parts = append(parts, req.MealType)
	}
	parts = append(parts, "meals")
	return strings.Join(parts, " ")
}

// rankAndTrim filters, dedupes, re-ranks and caps the candidate set.
func (s *PlanService) rankAndTrim(docs []model.ScoredDoc, user *model.User, req *model.PlanRequest, targets model.MacroTargets, result *model.GenerateResult) []model.ScoredDoc {
	stageStart := time.Now()

	filtered := s.filter.Apply(docs, FilterFromPreferences(user, req))
	result.FilteredDocs = len(filtered)

	deduped := s.dedup.Apply(filtered)
	result.DedupedDocs = len(deduped)

	// Score floor applies after dedup so a weak generic duplicate cannot
	// shadow a strong regional one.
	if s.cfg.MinScore > 0 {
		kept := deduped[:0]
		for _, doc := range deduped {
			if doc.SemanticScore >= s.cfg.MinScore {
				kept = append(kept, doc)
			}
		}
		deduped = kept
	}

	rc := RankContext{
		ProteinTarget: targets.PerMealGrams.Protein,
		ProteinUpper:  targets.PerMealGrams.Protein * 1.5,
		CarbTarget:    targets.PerMealGrams.Carbs,
		KetoMaxCarbs:  targets.KetoCarbAllowance,
		Budget:        req.Budget,
		IsKeto:        req.IsKeto,
	}
	ranked := s.reranker.Rank(deduped, req.Query, rc)

	if len(ranked) > s.cfg.MaxDocs {
		ranked = ranked[:s.cfg.MaxDocs]
	}
	if len(ranked) > 0 {
		result.RerankTopDelta = ranked[0].RerankScore - ranked[0].SemanticScore
	}

	duration := time.Since(stageStart)
	result.Timings = append(result.Timings, model.StageTiming{Stage: "rank", Duration: duration})
	s.metrics.Observe("generate.rank", duration)
	return ranked
}

// generateAndValidate walks the generation ladder: LLM plan, targeted repair
// for soft violations, template fallback for hard ones.
func (s *PlanService) generateAndValidate(ctx context.Context, user *model.User, req *model.PlanRequest, targets model.MacroTargets, ranked []model.ScoredDoc, result *model.GenerateResult, log *zap.Logger) (*model.MealPlan, bool, int, error) {
	stageStart := time.Now()
	defer func() {
		s.metrics.Observe("generate.llm", time.Since(stageStart))
	}()

	prompt, promptDocs := s.prompts.Build(user, req, targets, ranked)
	result.PromptDocs = promptDocs

	llmCtx, cancel := context.WithTimeout(ctx, llmBudget)
	defer cancel()

	completion, err := s.llm.Generate(llmCtx, prompt, GenerateOptions{})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCancelled) && ctx.Err() != nil {
			return nil, false, 0, err
		}
		log.Warn("LLM generation failed, assembling fallback plan", zap.Error(err))
		return s.fallback(ranked, req, targets)
	}

	tokens := completion.TotalTokens
	plan, err := s.validator.Parse(llmCtx, completion.Text)
	if err != nil {
		log.Warn("plan output unparseable after repair, assembling fallback plan",
			zap.Int("prompt_docs", promptDocs))
		fbPlan, usedFallback, _, fbErr := s.fallback(ranked, req, targets)
		return fbPlan, usedFallback, tokens, fbErr
	}

	violations := s.validator.Validate(plan, targets, user, req)
	switch Classify(violations) {
	case "":
		return plan, false, tokens, nil

	case SeveritySoft:
		repaired, ok := s.repairSoft(llmCtx, plan, violations, targets, log)
		if ok {
			if leftover := s.validator.Validate(repaired, targets, user, req); Classify(leftover) != SeverityHard {
				return repaired, false, tokens, nil
			}
		}
		// Accept the original soft plan rather than punt a usable result.
		return plan, false, tokens, nil

	default:
		log.Warn("plan failed hard validation, assembling fallback plan",
			zap.Int("violations", len(violations)),
			zap.String("first", violations[0].Message))
		fbPlan, usedFallback, _, fbErr := s.fallback(ranked, req, targets)
		return fbPlan, usedFallback, tokens, fbErr
	}
}

// repairSoft sends the single worst offending meal back for one revision.
func (s *PlanService) repairSoft(ctx context.Context, plan *model.MealPlan, violations []Violation, targets model.MacroTargets, log *zap.Logger) (*model.MealPlan, bool) {
	target := violations[0]
	if target.Day == 0 || target.Meal == 0 {
		return nil, false
	}

	var mealFindings []Violation
	for _, v := range violations {
		if v.Day == target.Day && v.Meal == target.Meal {
			mealFindings = append(mealFindings, v)
		}
	}

	day := target.Day - 1
	idx := target.Meal - 1
	if day >= len(plan.Days) || idx >= len(plan.Days[day].Meals) {
		return nil, false
	}

	fixed, err := s.validator.RepairMeal(ctx, plan.Days[day].Meals[idx], mealFindings, targets)
	if err != nil {
		log.Warn("meal repair failed", zap.Error(err))
		return nil, false
	}

	repaired := *plan
	repaired.Days = make([]model.Day, len(plan.Days))
	copy(repaired.Days, plan.Days)
	meals := make([]model.Meal, len(plan.Days[day].Meals))
	copy(meals, plan.Days[day].Meals)
	meals[idx] = *fixed
	repaired.Days[day].Meals = meals

	s.metrics.Inc("generate.repaired")
	return &repaired, true
}

func (s *PlanService) fallback(ranked []model.ScoredDoc, req *model.PlanRequest, targets model.MacroTargets) (*model.MealPlan, bool, int, error) {
	if len(ranked) == 0 {
		return nil, false, 0, apperrors.ErrGenerationGaveUp
	}
	plan := FallbackPlan(ranked, req, targets)
	if len(plan.Days) != req.Duration {
		return nil, false, 0, apperrors.ErrGenerationGaveUp
	}
	return plan, true, 0, nil
}

// Metrics exposes the registry for the stats endpoint.
func (s *PlanService) Metrics() *metrics.Registry {
	return s.metrics
}

// PipelineStats aggregates component statistics for diagnostics.
func (s *PlanService) PipelineStats() map[string]interface{} {
	return map[string]interface{}{
		"embedderCache": s.embedder.CacheStats(),
		"expanderCache": s.expander.CacheStats(),
		"filter":        s.filter.Stats(),
		"dedup":         s.dedup.Stats(),
		"generate": map[string]interface{}{
			"ok":       s.metrics.Counter("generate.ok"),
			"failed":   s.metrics.Counter("generate.failed"),
			"fallback": s.metrics.Counter("generate.fallback"),
			"total":    s.metrics.Snapshot("generate.total"),
		},
	}
}
