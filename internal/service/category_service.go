package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mailsorter/internal/logger"
	"mailsorter/internal/model"
	"mailsorter/internal/repository"
)

type categoryService struct {
	categoryRepo repository.CategoryRepository
	emailRepo    repository.EmailRepository
	aiClient     AIClient
	logger       *logger.Logger
}

func NewCategoryService(categoryRepo repository.CategoryRepository, emailRepo repository.EmailRepository, aiClient AIClient, logger *logger.Logger) CategoryService {
	return &categoryService{
		categoryRepo: categoryRepo,
		emailRepo:    emailRepo,
		aiClient:     aiClient,
		logger:       logger,
	}
}

func (s *categoryService) CreateCategory(ctx context.Context, userID, name, description string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidCategory
	}

	category := model.NewCategory(userID, name, strings.TrimSpace(description))
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		s.logger.Error("Failed to create category:", err)
		return nil, err
	}
	s.logger.Info("Created category:", category.ID)
	return category, nil
}

// GetCategory returns the category only when userID owns it.
func (s *categoryService) GetCategory(ctx context.Context, userID, categoryID string) (*model.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if category.UserID != userID {
		return nil, ErrForbidden
	}
	return category, nil
}

func (s *categoryService) ListCategories(ctx context.Context, userID string) ([]*model.CategoryWithCount, error) {
	categories, err := s.categoryRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	counts, err := s.emailRepo.CountByCategory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count emails: %w", err)
	}

	result := make([]*model.CategoryWithCount, 0, len(categories))
	for _, c := range categories {
		result = append(result, &model.CategoryWithCount{Category: c, EmailCount: counts[c.ID]})
	}
	return result, nil
}

func (s *categoryService) UpdateCategory(ctx context.Context, userID, categoryID, name, description string) (*model.Category, error) {
	category, err := s.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		category.Name = name
	}
	if description = strings.TrimSpace(description); description != "" {
		category.Description = description
	}
	category.UpdatedAt = time.Now()

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		s.logger.Error("Failed to update category:", err)
		return nil, err
	}
	s.logger.Info("Updated category:", category.ID)
	return category, nil
}

// DeleteCategory removes the category and leaves its emails uncategorized.
func (s *categoryService) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	category, err := s.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return err
	}

	// Delete first so a classification landing in between can no longer pick the category.
	if err := s.categoryRepo.Delete(ctx, category.ID); err != nil {
		s.logger.Error("Failed to delete category:", err)
		return err
	}
	cleared, err := s.emailRepo.ClearCategory(ctx, userID, category.ID)
	if err != nil {
		return fmt.Errorf("failed to clear category from emails: %w", err)
	}
	s.logger.Info("Deleted category:", category.ID, "uncategorized emails:", cleared)
	return nil
}

func (s *categoryService) SuggestCategory(ctx context.Context, userID string) (*model.CategorySuggestion, error) {
	existing, err := s.categoryRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	suggestion, err := s.aiClient.SuggestCategory(ctx, existing)
	if err != nil {
		s.logger.Warn("Category suggestion failed for user:", userID, err)
		return nil, err
	}
	return suggestion, nil
}
