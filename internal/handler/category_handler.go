package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"mailsorter/internal/logger"
	"mailsorter/internal/service"
)

type CategoryHandler struct {
	categoryService service.CategoryService
	users           UserResolver
	logger          *logger.Logger
}

func NewCategoryHandler(categoryService service.CategoryService, users UserResolver, logger *logger.Logger) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
		users:           users,
		logger:          logger,
	}
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateCategory creates a new category
func (h *CategoryHandler) CreateCategory(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return badRequest(c, "Name is required")
	}

	category, err := h.categoryService.CreateCategory(c.Request().Context(), user.ID, req.Name, req.Description)
	if err != nil {
		h.logger.Error("Failed to create category:", err)
		return serviceError(c, err, "Failed to create category")
	}
	return c.JSON(http.StatusCreated, category)
}

// GetCategory retrieves a category by ID
func (h *CategoryHandler) GetCategory(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	category, err := h.categoryService.GetCategory(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return serviceError(c, err, "Failed to get category")
	}
	return c.JSON(http.StatusOK, category)
}

// GetCategories lists the user's categories with their email counts.
func (h *CategoryHandler) GetCategories(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	categories, err := h.categoryService.ListCategories(c.Request().Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to get categories:", err)
		return serviceError(c, err, "Failed to get categories")
	}
	return c.JSON(http.StatusOK, categories)
}

// UpdateCategory updates an existing category
func (h *CategoryHandler) UpdateCategory(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	category, err := h.categoryService.UpdateCategory(c.Request().Context(), user.ID, c.Param("id"), req.Name, req.Description)
	if err != nil {
		return serviceError(c, err, "Failed to update category")
	}
	return c.JSON(http.StatusOK, category)
}

// DeleteCategory deletes a category. Its emails stay, uncategorized.
func (h *CategoryHandler) DeleteCategory(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	if err := h.categoryService.DeleteCategory(c.Request().Context(), user.ID, c.Param("id")); err != nil {
		return serviceError(c, err, "Failed to delete category")
	}
	return c.NoContent(http.StatusNoContent)
}

// SuggestCategory asks the AI for a category that does not overlap the existing ones.
func (h *CategoryHandler) SuggestCategory(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	suggestion, err := h.categoryService.SuggestCategory(c.Request().Context(), user.ID)
	if err != nil {
		return serviceError(c, err, "Failed to suggest category")
	}
	return c.JSON(http.StatusOK, suggestion)
}
