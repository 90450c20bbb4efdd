package memory

import (
	"context"
	"sync"
	"time"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/pkg/errors"
)

type UserRepository struct {
	mu    sync.Mutex
	users map[string]entity.User
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]entity.User)}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return &user, nil
}

func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.users[user.ID]
	stored.ID = user.ID
	if user.DisplayName != "" {
		stored.DisplayName = user.DisplayName
	}
	if user.Email != "" {
		stored.Email = user.Email
	}
	if user.Phone != "" {
		stored.Phone = user.Phone
	}
	if user.Role != "" {
		stored.Role = user.Role
	}
	if user.Location.Address != "" || user.Location.Region != "" {
		stored.Location = user.Location
	}
	stored.UpdatedAt = time.Now()
	r.users[user.ID] = stored
	return nil
}
