package model

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewCategory(userID, name, description string) *Category {
	now := time.Now()
	return &Category{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CategoryWithCount is a category plus the number of emails filed under it.
type CategoryWithCount struct {
	*Category
	EmailCount int `json:"email_count"`
}

// CategorySuggestion is a proposed category that has not been stored yet.
type CategorySuggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
