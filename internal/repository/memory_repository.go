package repository

import (
	"context"
	"sync"
	"time"

	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
)

// MemoryUserRepository is an in-memory UserRepository used by tests and
// local development without a database.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*model.User)}
}

// Seed inserts or replaces a user record.
func (r *MemoryUserRepository) Seed(user *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *MemoryUserRepository) IncrementMealCounter(_ context.Context, id string, weekly bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil
	}
	user.TotalMealPlans++
	if weekly {
		user.WeeklyMealPlans++
	}
	return nil
}

func (r *MemoryUserRepository) ResetWeeklyCounter(_ context.Context, id string, resetDate time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil
	}
	user.WeeklyMealPlans = 0
	t := resetDate
	user.LastResetDate = &t
	return nil
}
