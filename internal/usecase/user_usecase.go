package usecase

import (
	"context"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/internal/session"
	"sakanect/pkg/errors"
)

type UserUseCase struct {
	userRepo repository.UserRepository
}

func NewUserUseCase(userRepo repository.UserRepository) *UserUseCase {
	return &UserUseCase{
		userRepo: userRepo,
	}
}

type UpdateProfileInput struct {
	DisplayName string           `json:"display_name" validate:"omitempty,max=80"`
	Email       string           `json:"email" validate:"omitempty,email"`
	Phone       string           `json:"phone" validate:"omitempty,max=20"`
	Role        string           `json:"role" validate:"omitempty,oneof=farmer buyer"`
	Location    *entity.Location `json:"location"`
}

// GetProfile returns the caller's profile, creating an empty one on first
// use. Accounts themselves live with the identity provider.
func (uc *UserUseCase) GetProfile(ctx context.Context, sess session.Session) (*entity.User, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	user, err := uc.userRepo.GetByID(ctx, sess.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, errors.CodeNotFound) {
		return nil, err
	}

	user = &entity.User{ID: sess.UserID, Role: "buyer"}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (uc *UserUseCase) UpdateProfile(ctx context.Context, sess session.Session, input UpdateProfileInput) (*entity.User, error) {
	user, err := uc.GetProfile(ctx, sess)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != "" {
		user.DisplayName = input.DisplayName
	}
	if input.Email != "" {
		user.Email = input.Email
	}
	if input.Phone != "" {
		user.Phone = input.Phone
	}
	if input.Role != "" {
		user.Role = input.Role
	}
	if input.Location != nil {
		user.Location = *input.Location
	}

	if err := uc.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
