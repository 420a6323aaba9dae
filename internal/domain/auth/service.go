package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	jwtsvc "resourcehub/internal/pkg/jwt"
	"resourcehub/internal/pkg/ratelimit"
)

// Service handles login and account creation. Login attempts are throttled
// through an injected counter store keyed by client address, so the policy
// survives a swap to a shared store in multi-instance deployments.
type Service struct {
	repo     Repository
	jwt      *jwtsvc.Service
	attempts ratelimit.Store
}

func NewService(repo Repository, jwt *jwtsvc.Service, attempts ratelimit.Store) *Service {
	return &Service{repo: repo, jwt: jwt, attempts: attempts}
}

// Login verifies credentials and mints an access token. clientAddr keys the
// attempt counter; a successful login resets it.
func (s *Service) Login(ctx context.Context, username, password, clientAddr string) (string, *User, error) {
	if !s.attempts.Allow(clientAddr) {
		return "", nil, ErrTooManyAttempts
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	s.attempts.Reset(clientAddr)
	return token, user, nil
}

// Register creates a new account. Only admins reach this path; the handler
// gates it with the role middleware.
func (s *Service) Register(ctx context.Context, username, password, name string, role UserRole) (*User, error) {
	if role != RoleAdmin && role != RoleTeacher {
		return nil, ErrInvalidRole
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameAlreadyTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		Name:         name,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}
