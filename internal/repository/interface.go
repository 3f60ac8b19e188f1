package repository

import (
	"context"
	"errors"

	"mailsorter/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindAll(ctx context.Context) ([]*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string) error
}

// MailAccountRepository defines the interface for linked mailbox operations
type MailAccountRepository interface {
	// Upsert inserts the account or, when its email is already linked, refreshes the stored
	// credentials. An empty refresh token keeps the stored one.
	Upsert(ctx context.Context, account *model.MailAccount) (*model.MailAccount, error)
	FindByID(ctx context.Context, id string) (*model.MailAccount, error)
	FindByEmail(ctx context.Context, email string) (*model.MailAccount, error)
	FindByUserID(ctx context.Context, userID string) ([]*model.MailAccount, error)
	UpdateToken(ctx context.Context, account *model.MailAccount) error
	Delete(ctx context.Context, id string) error
}

// CategoryRepository defines the interface for category data operations
type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	FindByID(ctx context.Context, id string) (*model.Category, error)
	FindByUserID(ctx context.Context, userID string) ([]*model.Category, error)
	Update(ctx context.Context, category *model.Category) error
	Delete(ctx context.Context, id string) error
}

// EmailRepository defines the interface for email data operations
type EmailRepository interface {
	// Create returns ErrDuplicate when (user, message id) is already stored.
	Create(ctx context.Context, email *model.Email) error
	FindByID(ctx context.Context, id string) (*model.Email, error)
	FindByUserID(ctx context.Context, userID string) ([]*model.Email, error)
	FindByCategoryID(ctx context.Context, userID, categoryID string) ([]*model.Email, error)
	FindByMessageID(ctx context.Context, userID, messageID string) (*model.Email, error)
	CountByCategory(ctx context.Context, userID string) (map[string]int, error)
	MarkArchived(ctx context.Context, id string) error
	ApplyClassification(ctx context.Context, id, summary, categoryID string) error
	SetUnsubscribeStatus(ctx context.Context, id string, status model.UnsubscribeStatus) error
	// ClearCategory uncategorizes every email of the user filed under categoryID.
	ClearCategory(ctx context.Context, userID, categoryID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// Repositories groups the stores the services are built on.
type Repositories struct {
	Users      UserRepository
	Accounts   MailAccountRepository
	Categories CategoryRepository
	Emails     EmailRepository
}
