package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"mailsorter/internal/logger"
	"mailsorter/internal/mailparse"
	"mailsorter/internal/model"
	"mailsorter/internal/service"
)

const (
	maxPromptContent     = 5000
	maxScriptPageHTML    = 30000
	maxCategoryNameRunes = 20

	summaryErrorPlaceholder = "Error generating summary"
	summaryEmptyPlaceholder = "No summary available"
	noCategoryAnswer        = "NONE"
)

var ErrInvalidSuggestion = errors.New("invalid category suggestion")

// Assistant builds the prompts for every AI-backed feature and validates the answers.
type Assistant struct {
	completer Completer
	logger    *logger.Logger
}

func NewAssistant(completer Completer, logger *logger.Logger) *Assistant {
	return &Assistant{completer: completer, logger: logger}
}

var _ service.AIClient = (*Assistant)(nil)

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// SummarizeEmail never fails; errors and empty answers become placeholders.
func (a *Assistant) SummarizeEmail(ctx context.Context, subject, body string) string {
	content := truncate(mailparse.ExtractText(body), maxPromptContent)

	prompt := fmt.Sprintf(`Summarize the following email in 1-2 short sentences. Focus on what the sender wants or announces.

Subject: %s

Content:
%s

Respond with the summary only.`, subject, content)

	summary, err := a.completer.Complete(ctx, prompt, CompletionOptions{MaxTokens: 150, Temperature: 0.3})
	if err != nil {
		a.logger.Error("Failed to summarize email:", err)
		return summaryErrorPlaceholder
	}
	if summary == "" {
		return summaryEmptyPlaceholder
	}
	return summary
}

// ClassifyEmail returns the id of the matching category or "" when none fits.
// Unrecognized answers and model failures also yield "".
func (a *Assistant) ClassifyEmail(ctx context.Context, subject, body string, categories []*model.Category) string {
	if len(categories) == 0 {
		return ""
	}
	content := truncate(mailparse.ExtractText(body), maxPromptContent)

	var list strings.Builder
	for _, cat := range categories {
		fmt.Fprintf(&list, "%s | %s | %s\n", cat.ID, cat.Name, cat.Description)
	}

	prompt := fmt.Sprintf(`Classify the email below into exactly one of these categories.
Each line is: id | name | description

%s
Subject: %s

Content:
%s

Respond with only the id of the best category. If none fits, respond with %s.`,
		list.String(), subject, content, noCategoryAnswer)

	answer, err := a.completer.Complete(ctx, prompt, CompletionOptions{MaxTokens: 50, Temperature: 0.3})
	if err != nil {
		a.logger.Error("Failed to classify email:", err)
		return ""
	}
	return matchCategoryID(answer, categories)
}

// matchCategoryID accepts only an exact, case-insensitive id from categories.
func matchCategoryID(answer string, categories []*model.Category) string {
	answer = strings.Trim(strings.TrimSpace(answer), "`\"'.")
	if answer == "" || strings.EqualFold(answer, noCategoryAnswer) {
		return ""
	}
	for _, cat := range categories {
		if strings.EqualFold(cat.ID, answer) {
			return cat.ID
		}
	}
	return ""
}

// SuggestCategory proposes a category that does not overlap with existing.
func (a *Assistant) SuggestCategory(ctx context.Context, existing []*model.Category) (*model.CategorySuggestion, error) {
	var list strings.Builder
	for _, cat := range existing {
		fmt.Fprintf(&list, "- %s: %s\n", cat.Name, cat.Description)
	}
	if len(existing) == 0 {
		list.WriteString("(none yet)\n")
	}

	prompt := fmt.Sprintf(`You are organizing emails for a user. These are the categories they already have:

%s
Suggest a completely new category name and description (no overlap with the above).
The name must be shorter than %d characters.
Respond only in this pure JSON format without any other characters:
{
  "name": "New Category Name",
  "description": "What this category includes"
}`, list.String(), maxCategoryNameRunes)

	answer, err := a.completer.Complete(ctx, prompt, CompletionOptions{MaxTokens: 200, Temperature: 0.7})
	if err != nil {
		return nil, fmt.Errorf("failed to suggest category: %w", err)
	}
	return parseSuggestion(answer)
}

func parseSuggestion(answer string) (*model.CategorySuggestion, error) {
	var suggestion model.CategorySuggestion
	decoder := json.NewDecoder(strings.NewReader(stripCodeFences(answer)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&suggestion); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuggestion, err)
	}
	suggestion.Name = strings.TrimSpace(suggestion.Name)
	suggestion.Description = strings.TrimSpace(suggestion.Description)
	if suggestion.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidSuggestion)
	}
	if utf8.RuneCountInString(suggestion.Name) >= maxCategoryNameRunes {
		return nil, fmt.Errorf("%w: name %q is too long", ErrInvalidSuggestion, suggestion.Name)
	}
	return &suggestion, nil
}

// GenerateUnsubscribeScript asks for JavaScript that completes the unsubscribe flow on the page.
func (a *Assistant) GenerateUnsubscribeScript(ctx context.Context, req service.UnsubscribeScriptRequest) (string, error) {
	prompt := fmt.Sprintf(`You are controlling a headless browser to unsubscribe the address %s from a mailing list.
Current URL: %s
Attempt: %d

Page HTML:
%s

Write JavaScript that runs in this page and completes the unsubscribe flow: fill any email field with %s,
tick or untick the options needed to stop all emails, and finish with the click or form submission that confirms it.
The script may use await. Throw an Error if the page offers no way to unsubscribe.
Respond with only the JavaScript code, no explanations.`,
		req.AccountEmail, req.PageURL, req.Attempt, truncate(req.PageHTML, maxScriptPageHTML), req.AccountEmail)

	answer, err := a.completer.Complete(ctx, prompt, CompletionOptions{MaxTokens: 1000, Temperature: 0.2})
	if err != nil {
		return "", fmt.Errorf("failed to generate unsubscribe script: %w", err)
	}
	script := stripCodeFences(answer)
	if script == "" {
		return "", fmt.Errorf("empty unsubscribe script")
	}
	return script, nil
}

// stripCodeFences removes a surrounding ``` or ```lang fence.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
