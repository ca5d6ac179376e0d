// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth validates operator credentials and provisions operators.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/newsletter/internal/models"
	"codeberg.org/oliverandrich/newsletter/internal/repository"
	"codeberg.org/oliverandrich/newsletter/internal/secret"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUsername    = errors.New("username is required")
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

type Service struct {
	repo              *repository.Repository
	passwordValidator *PasswordValidator
	cost              int
}

func NewService(repo *repository.Repository) *Service {
	return &Service{
		repo:              repo,
		passwordValidator: DefaultPasswordValidator(),
		cost:              bcrypt.DefaultCost,
	}
}

// WithCost overrides the bcrypt cost, mainly for tests.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// Credentials is a login attempt. The password never leaves the secret
// wrapper outside of the hash comparison.
type Credentials struct {
	Username string
	Password secret.String
}

// ValidateCredentials returns the operator matching the credentials.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) ValidateCredentials(ctx context.Context, creds Credentials) (*models.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(creds.Password.Reveal()))
			slog.Warn("login_failed", "username", creds.Username, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password.Reveal())); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			slog.Warn("login_failed", "username", creds.Username, "reason", "invalid_password")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	slog.Info("login_success", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// CreateUser provisions an operator after checking the password policy.
func (s *Service) CreateUser(ctx context.Context, username string, password secret.String) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	validation := s.passwordValidator.Validate(password.Reveal(), username)
	if !validation.Valid {
		return nil, &PasswordValidationError{Errors: validation.Errors}
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password.Reveal()), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, username, string(passwordHash))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user_created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// ChangePassword replaces the password of an existing operator.
func (s *Service) ChangePassword(ctx context.Context, username string, password secret.String) error {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	validation := s.passwordValidator.Validate(password.Reveal(), user.Username)
	if !validation.Valid {
		return &PasswordValidationError{Errors: validation.Errors}
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password.Reveal()), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdateUserPassword(ctx, user.ID, string(passwordHash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}
