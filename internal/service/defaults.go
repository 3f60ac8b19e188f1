package service

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"mailsorter/internal/model"
)

//go:embed default_categories.json
var defaultCategoriesJSON []byte

// LoadDefaultCategories reads the categories seeded for new users. An empty path uses the built-in set.
func LoadDefaultCategories(path string) ([]model.CategorySuggestion, error) {
	data := defaultCategoriesJSON
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read default categories: %w", err)
		}
	}

	var categories []model.CategorySuggestion
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, fmt.Errorf("failed to parse default categories: %w", err)
	}

	valid := categories[:0]
	for _, c := range categories {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		valid = append(valid, c)
	}
	return valid, nil
}
