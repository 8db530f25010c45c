package repository

import (
	"context"
	"errors"
	"time"

	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
	"gorm.io/gorm"
)

// UserRepository defines the persistence boundary the engine reads user
// profiles and quota state through.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	// IncrementMealCounter bumps the total counter and, when weekly is
	// true, the weekly counter as well.
	IncrementMealCounter(ctx context.Context, id string, weekly bool) error
	// ResetWeeklyCounter zeroes the weekly counter and stamps the reset
	// date. Idempotent for identical boundary inputs.
	ResetWeeklyCounter(ctx context.Context, id string, resetDate time.Time) error
}

// userRepository implements UserRepository on gorm
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user's record
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return err
	}
	return nil
}

// IncrementMealCounter bumps the meal plan counters in one statement
func (r *userRepository) IncrementMealCounter(ctx context.Context, id string, weekly bool) error {
	updates := map[string]interface{}{
		"total_meal_plans": gorm.Expr("total_meal_plans + 1"),
	}
	if weekly {
		updates["weekly_meal_plans"] = gorm.Expr("weekly_meal_plans + 1")
	}
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ResetWeeklyCounter zeroes the weekly counter and records the boundary
func (r *userRepository) ResetWeeklyCounter(ctx context.Context, id string, resetDate time.Time) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"weekly_meal_plans": 0,
			"last_reset_date":   resetDate,
		}).Error
}
