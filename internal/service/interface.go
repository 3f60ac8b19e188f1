package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"mailsorter/internal/mailparse"
	"mailsorter/internal/model"
)

var (
	ErrForbidden         = errors.New("resource belongs to another user")
	ErrNoEligibleEmails  = errors.New("no emails eligible for unsubscribe")
	ErrAccountNotLinked  = errors.New("no linked account for address")
	ErrInvalidCategory   = errors.New("category name is required")
	ErrAlreadyInProgress = errors.New("unsubscribe already in progress")
)

type LoginProfile struct {
	Email        string
	Name         string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
}

type AuthService interface {
	// Login creates or refreshes the user and the mailbox account behind profile.
	Login(ctx context.Context, profile LoginProfile) (*model.User, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

type CategoryService interface {
	CreateCategory(ctx context.Context, userID, name, description string) (*model.Category, error)
	GetCategory(ctx context.Context, userID, categoryID string) (*model.Category, error)
	ListCategories(ctx context.Context, userID string) ([]*model.CategoryWithCount, error)
	UpdateCategory(ctx context.Context, userID, categoryID, name, description string) (*model.Category, error)
	DeleteCategory(ctx context.Context, userID, categoryID string) error
	SuggestCategory(ctx context.Context, userID string) (*model.CategorySuggestion, error)
}

type EmailService interface {
	ListEmails(ctx context.Context, userID, categoryID string) ([]*model.Email, error)
	GetEmail(ctx context.Context, userID, emailID string) (*model.Email, error)
	ArchiveEmails(ctx context.Context, userID string, emailIDs []string) (int, error)
	DeleteEmails(ctx context.Context, userID string, emailIDs []string) (int, error)
}

// SyncReport counts what one SyncUser call did.
type SyncReport struct {
	Accounts        int `json:"accounts"`
	SkippedAccounts int `json:"skipped_accounts"`
	Listed          int `json:"listed"`
	Ingested        int `json:"ingested"`
	Duplicates      int `json:"duplicates"`
	Failed          int `json:"failed"`
	Archived        int `json:"archived"`
}

type SyncService interface {
	SyncUser(ctx context.Context, userID string) (SyncReport, error)
	// TriggerSync schedules SyncUser in the background and returns immediately.
	TriggerSync(userID string) bool
	ClassifyEmail(ctx context.Context, emailID string) error
	// HandlePush resolves a provider push notification to its user and triggers a sync.
	HandlePush(ctx context.Context, accountEmail string, historyID uint64) (string, error)
}

type UnsubscribeService interface {
	// UnsubscribeEmails dispatches one agent per eligible email and returns the ids accepted.
	UnsubscribeEmails(ctx context.Context, userID string, emailIDs []string) ([]string, error)
}

// MailboxClient is the provider API used by the sync loop.
type MailboxClient interface {
	ListUnread(ctx context.Context, token *oauth2.Token, max int64) ([]string, error)
	GetMessage(ctx context.Context, token *oauth2.Token, messageID string) (*mailparse.Message, error)
	Archive(ctx context.Context, token *oauth2.Token, messageID string) error
}

// TokenProvider returns a live access token for account, refreshing it when needed.
type TokenProvider interface {
	Token(ctx context.Context, account *model.MailAccount) (*oauth2.Token, error)
}

// UnsubscribeScriptRequest is what the agent observed on the page.
type UnsubscribeScriptRequest struct {
	AccountEmail string
	PageURL      string
	PageHTML     string
	Attempt      int
}

// AIClient interface for interacting with AI services
type AIClient interface {
	SummarizeEmail(ctx context.Context, subject, body string) string
	ClassifyEmail(ctx context.Context, subject, body string, categories []*model.Category) string
	SuggestCategory(ctx context.Context, existing []*model.Category) (*model.CategorySuggestion, error)
	GenerateUnsubscribeScript(ctx context.Context, req UnsubscribeScriptRequest) (string, error)
}

// Notifier pushes an event to every live connection of a user.
type Notifier interface {
	Notify(userID, event string, payload interface{})
}

type TaskRunner interface {
	Submit(name string, fn func(ctx context.Context) error) bool
}

type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
