package ai

import (
	"context"
	"sync"

	"mailsorter/internal/model"
	"mailsorter/internal/service"
)

// MockCompleter is a Completer for tests. It records every prompt it receives.
type MockCompleter struct {
	CompleteFunc func(ctx context.Context, prompt string, opts CompletionOptions) (string, error)

	mu      sync.Mutex
	prompts []string
}

func NewMockCompleter(answer string) *MockCompleter {
	return &MockCompleter{
		CompleteFunc: func(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
			return answer, nil
		},
	}
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, opts)
	}
	return "", nil
}

func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *MockCompleter) Calls() int {
	return len(m.Prompts())
}

// MockAIClient is a service.AIClient for tests.
type MockAIClient struct {
	SummarizeEmailFunc            func(ctx context.Context, subject, body string) string
	ClassifyEmailFunc             func(ctx context.Context, subject, body string, categories []*model.Category) string
	SuggestCategoryFunc           func(ctx context.Context, existing []*model.Category) (*model.CategorySuggestion, error)
	GenerateUnsubscribeScriptFunc func(ctx context.Context, req service.UnsubscribeScriptRequest) (string, error)
}

func NewMockAIClient() *MockAIClient {
	return &MockAIClient{}
}

func (m *MockAIClient) SummarizeEmail(ctx context.Context, subject, body string) string {
	if m.SummarizeEmailFunc != nil {
		return m.SummarizeEmailFunc(ctx, subject, body)
	}
	return "Summary: " + subject
}

func (m *MockAIClient) ClassifyEmail(ctx context.Context, subject, body string, categories []*model.Category) string {
	if m.ClassifyEmailFunc != nil {
		return m.ClassifyEmailFunc(ctx, subject, body, categories)
	}
	return ""
}

func (m *MockAIClient) SuggestCategory(ctx context.Context, existing []*model.Category) (*model.CategorySuggestion, error) {
	if m.SuggestCategoryFunc != nil {
		return m.SuggestCategoryFunc(ctx, existing)
	}
	return &model.CategorySuggestion{Name: "Newsletters", Description: "Periodic newsletters"}, nil
}

func (m *MockAIClient) GenerateUnsubscribeScript(ctx context.Context, req service.UnsubscribeScriptRequest) (string, error) {
	if m.GenerateUnsubscribeScriptFunc != nil {
		return m.GenerateUnsubscribeScriptFunc(ctx, req)
	}
	return `document.querySelector("button").click()`, nil
}
