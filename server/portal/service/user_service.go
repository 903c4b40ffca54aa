package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"pyrus_portal/server/portal/domain"
	"pyrus_portal/server/portal/repository"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type userRepository interface {
	Create(ctx context.Context, user domain.User) (string, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

type UserService struct {
	users userRepository
}

func NewUserService(users userRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) CreateUser(ctx context.Context, user domain.User, password string) (string, error) {
	if user.Role == "" {
		user.Role = domain.UserRoleClient
	}
	if password == "" {
		return "", errors.New("password is required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	user.PasswordHash = string(hashed)
	return s.users.Create(ctx, user)
}

func (s *UserService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	user.PasswordHash = ""
	return user, nil
}
