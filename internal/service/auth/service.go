// Package auth implements registration and login for the triage API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"schoolmail/internal/ports"
	"schoolmail/pkg/util"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type Service struct {
	users     ports.UserStore
	jwtSecret string
	logger    *zap.Logger
}

func NewService(users ports.UserStore, jwtSecret string, logger *zap.Logger) *Service {
	return &Service{users: users, jwtSecret: jwtSecret, logger: logger}
}

// Register creates a user and returns its id. Emails are case-insensitive.
func (s *Service) Register(ctx context.Context, email, password string) (int, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return 0, errors.New("email and password are required")
	}

	if existing, err := s.users.FindByEmail(ctx, email); err != nil {
		return 0, fmt.Errorf("failed to look up user: %w", err)
	} else if existing != nil {
		return 0, ErrEmailTaken
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := s.users.Create(ctx, email, hash)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Int("user_id", id))
	return id, nil
}

// Login verifies the credentials and issues a JWT.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !util.CheckPassword(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user.ID, s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
