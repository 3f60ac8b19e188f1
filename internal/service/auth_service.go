package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mailsorter/internal/logger"
	"mailsorter/internal/model"
	"mailsorter/internal/repository"
)

type authService struct {
	userRepo     repository.UserRepository
	accountRepo  repository.MailAccountRepository
	categoryRepo repository.CategoryRepository
	defaults     []model.CategorySuggestion
	logger       *logger.Logger
}

func NewAuthService(repos repository.Repositories, defaults []model.CategorySuggestion, logger *logger.Logger) AuthService {
	return &authService{
		userRepo:     repos.Users,
		accountRepo:  repos.Accounts,
		categoryRepo: repos.Categories,
		defaults:     defaults,
		logger:       logger,
	}
}

func (s *authService) Login(ctx context.Context, profile LoginProfile) (*model.User, error) {
	email := strings.TrimSpace(profile.Email)
	if email == "" {
		return nil, errors.New("login profile has no email")
	}

	user, err := s.findOrCreateUser(ctx, email, profile.Name)
	if err != nil {
		return nil, err
	}

	account := model.NewMailAccount(user.ID, email, profile.AccessToken, profile.RefreshToken, profile.TokenExpiry)
	if _, err := s.accountRepo.Upsert(ctx, account); err != nil {
		s.logger.Error("Failed to store mail account:", email, err)
		return nil, fmt.Errorf("failed to store mail account: %w", err)
	}
	s.logger.Info("User logged in:", user.ID)
	return user, nil
}

func (s *authService) findOrCreateUser(ctx context.Context, email, name string) (*model.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil {
		if name != "" && name != existing.Name {
			existing.Name = name
			existing.UpdatedAt = time.Now()
			if err := s.userRepo.Update(ctx, existing); err != nil {
				s.logger.Error("Failed to update user:", err)
				return nil, err
			}
		}
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user := model.NewUser(email, name)
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a concurrent first login.
			return s.userRepo.FindByEmail(ctx, email)
		}
		s.logger.Error("Failed to create user:", err)
		return nil, err
	}
	s.logger.Info("Created new user:", user.ID)
	s.seedCategories(ctx, user.ID)
	return user, nil
}

func (s *authService) seedCategories(ctx context.Context, userID string) {
	for _, c := range s.defaults {
		category := model.NewCategory(userID, c.Name, c.Description)
		if err := s.categoryRepo.Create(ctx, category); err != nil {
			s.logger.Error("Failed to create default category:", c.Name, err)
		}
	}
}

func (s *authService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}
