package service

import (
	"context"
	"time"

	apperrors "github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/errors"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/logger"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/repository"
	"go.uber.org/zap"
)

// QuotaConfig holds the per-plan limits and the reset clock settings.
type QuotaConfig struct {
	FreeTotalLimit int
	ProWeeklyLimit int
	MaxWeeklyLimit int
	TestUserID     string
	Timezone       string
}

// UserLocker serializes quota mutation per user. Implemented on redis in
// production; tests substitute a no-op.
type UserLocker interface {
	Acquire(ctx context.Context, userID string) error
	Release(ctx context.Context, userID string) error
}

// NopLocker satisfies UserLocker without coordination.
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string) error { return nil }
func (NopLocker) Release(context.Context, string) error { return nil }

// QuotaService enforces per-plan generation limits with a Monday-midnight
// weekly reset. Counters are incremented only after a validated plan is
// produced; checks never mutate the counters themselves.
type QuotaService struct {
	repo   repository.UserRepository
	locker UserLocker
	cfg    QuotaConfig
	loc    *time.Location
	now    func() time.Time
}

func NewQuotaService(repo repository.UserRepository, locker UserLocker, cfg QuotaConfig) *QuotaService {
	if cfg.FreeTotalLimit <= 0 {
		cfg.FreeTotalLimit = 1
	}
	if cfg.ProWeeklyLimit <= 0 {
		cfg.ProWeeklyLimit = 3
	}
	if cfg.MaxWeeklyLimit <= 0 {
		cfg.MaxWeeklyLimit = 3
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Kolkata"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("invalid quota timezone, falling back to UTC", zap.String("timezone", cfg.Timezone))
		loc = time.UTC
	}
	if locker == nil {
		locker = NopLocker{}
	}
	return &QuotaService{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		loc:    loc,
		now:    time.Now,
	}
}

// Check loads the user, applies subscription downgrade and weekly reset, and
// returns a QuotaError on denial. The returned user reflects any reset or
// downgrade that was persisted.
func (s *QuotaService) Check(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabase, "failed to load user")
	}
	if user == nil {
		return nil, apperrors.ErrUserMissing
	}

	if s.cfg.TestUserID != "" && user.ID == s.cfg.TestUserID {
		return user, nil
	}

	now := s.now().In(s.loc)

	// Canceled subscriptions past their paid period fall back to free rules.
	if (user.Plan == model.PlanPro || user.Plan == model.PlanMax) &&
		user.SubscriptionStatus == model.StatusCanceled &&
		user.SubscriptionEndDate != nil && now.After(*user.SubscriptionEndDate) {
		user.Plan = model.PlanExpired
		if err := s.repo.Update(ctx, user); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabase, "failed to downgrade expired subscription")
		}
		logger.Info("subscription expired, downgraded to free rules", zap.String("user_id", user.ID))
	}

	switch user.Plan {
	case model.PlanPro, model.PlanMax:
		if err := s.maybeResetWeekly(ctx, user, now); err != nil {
			return nil, err
		}
		limit := s.cfg.ProWeeklyLimit
		if user.Plan == model.PlanMax {
			limit = s.cfg.MaxWeeklyLimit
		}
		if user.WeeklyMealPlans >= limit {
			return nil, apperrors.NewQuotaExceeded(user.Plan, user.WeeklyMealPlans, limit, "weekly limit reached")
		}
	default:
		// free and expired share the lifetime limit
		if user.TotalMealPlans >= s.cfg.FreeTotalLimit {
			reason := "free plan limit reached"
			if user.Plan == model.PlanExpired {
				reason = "subscription ended"
			}
			return nil, apperrors.NewQuotaExceeded(user.Plan, user.TotalMealPlans, s.cfg.FreeTotalLimit, reason)
		}
	}

	return user, nil
}

// maybeResetWeekly zeroes the weekly counter when the stored reset date
// precedes the current week's Monday midnight. Idempotent across concurrent
// callers: the boundary is deterministic and the repository write is a plain
// overwrite.
func (s *QuotaService) maybeResetWeekly(ctx context.Context, user *model.User, now time.Time) error {
	monday := LastMonday(now)
	if user.LastResetDate != nil && !user.LastResetDate.Before(monday) {
		return nil
	}
	if err := s.repo.ResetWeeklyCounter(ctx, user.ID, monday); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabase, "failed to reset weekly counter")
	}
	user.WeeklyMealPlans = 0
	t := monday
	user.LastResetDate = &t
	logger.Debug("weekly quota reset", zap.String("user_id", user.ID), zap.Time("boundary", monday))
	return nil
}

// Increment records one successful generation under the per-user lock.
// Called exactly once per validated plan, including fallback plans.
func (s *QuotaService) Increment(ctx context.Context, user *model.User) error {
	if s.cfg.TestUserID != "" && user.ID == s.cfg.TestUserID {
		return nil
	}

	if err := s.locker.Acquire(ctx, user.ID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabase, "failed to lock quota record")
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), user.ID); err != nil {
			logger.Error("failed to release quota lock", zap.String("user_id", user.ID), zap.Error(err))
		}
	}()

	weekly := user.Plan == model.PlanPro || user.Plan == model.PlanMax
	if err := s.repo.IncrementMealCounter(ctx, user.ID, weekly); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabase, "failed to increment meal counter")
	}
	return nil
}

// LastMonday returns Monday 00:00 of the week containing t, in t's location.
func LastMonday(t time.Time) time.Time {
	daysBack := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -daysBack)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
}
