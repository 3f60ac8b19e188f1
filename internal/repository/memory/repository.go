package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"mailsorter/internal/model"
	"mailsorter/internal/repository"
)

// NewRepositories returns in-memory stores for every entity.
func NewRepositories() repository.Repositories {
	categories := NewInMemoryCategoryRepository()
	emails := NewInMemoryEmailRepository()
	emails.categories = categories
	return repository.Repositories{
		Users:      NewInMemoryUserRepository(),
		Accounts:   NewInMemoryMailAccountRepository(),
		Categories: categories,
		Emails:     emails,
	}
}

type InMemoryUserRepository struct {
	users map[string]*model.User
	mutex sync.RWMutex
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users: make(map[string]*model.User),
	}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *model.User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *InMemoryUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *InMemoryUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *InMemoryUserRepository) FindAll(ctx context.Context) ([]*model.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	users := make([]*model.User, 0, len(r.users))
	for _, user := range r.users {
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (r *InMemoryUserRepository) Update(ctx context.Context, user *model.User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.users[user.ID]; !exists {
		return repository.ErrNotFound
	}
	copied := *user
	copied.UpdatedAt = time.Now()
	r.users[user.ID] = &copied
	return nil
}

func (r *InMemoryUserRepository) Delete(ctx context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.users, id)
	return nil
}

// Mail account repository implementation
type InMemoryMailAccountRepository struct {
	accounts map[string]*model.MailAccount
	mutex    sync.RWMutex
}

func NewInMemoryMailAccountRepository() *InMemoryMailAccountRepository {
	return &InMemoryMailAccountRepository{
		accounts: make(map[string]*model.MailAccount),
	}
}

func (r *InMemoryMailAccountRepository) Upsert(ctx context.Context, account *model.MailAccount) (*model.MailAccount, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.accounts {
		if !strings.EqualFold(existing.Email, account.Email) {
			continue
		}
		existing.UserID = account.UserID
		existing.AccessToken = account.AccessToken
		if account.RefreshToken != "" {
			existing.RefreshToken = account.RefreshToken
		}
		existing.TokenExpiry = account.TokenExpiry
		existing.UpdatedAt = time.Now()
		copied := *existing
		return &copied, nil
	}

	stored := *account
	r.accounts[account.ID] = &stored
	copied := stored
	return &copied, nil
}

func (r *InMemoryMailAccountRepository) FindByID(ctx context.Context, id string) (*model.MailAccount, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *InMemoryMailAccountRepository) FindByEmail(ctx context.Context, email string) (*model.MailAccount, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, account := range r.accounts {
		if strings.EqualFold(account.Email, email) {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *InMemoryMailAccountRepository) FindByUserID(ctx context.Context, userID string) ([]*model.MailAccount, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*model.MailAccount
	for _, account := range r.accounts {
		if account.UserID == userID {
			copied := *account
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *InMemoryMailAccountRepository) UpdateToken(ctx context.Context, account *model.MailAccount) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	existing, exists := r.accounts[account.ID]
	if !exists {
		return repository.ErrNotFound
	}
	existing.AccessToken = account.AccessToken
	if account.RefreshToken != "" {
		existing.RefreshToken = account.RefreshToken
	}
	existing.TokenExpiry = account.TokenExpiry
	existing.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryMailAccountRepository) Delete(ctx context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.accounts, id)
	return nil
}

// Category repository implementation
type InMemoryCategoryRepository struct {
	categories map[string]*model.Category
	mutex      sync.RWMutex
}

func NewInMemoryCategoryRepository() *InMemoryCategoryRepository {
	return &InMemoryCategoryRepository{
		categories: make(map[string]*model.Category),
	}
}

func (r *InMemoryCategoryRepository) owns(userID, id string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	category, exists := r.categories[id]
	return exists && category.UserID == userID
}

func (r *InMemoryCategoryRepository) Create(ctx context.Context, category *model.Category) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	copied := *category
	r.categories[category.ID] = &copied
	return nil
}

func (r *InMemoryCategoryRepository) FindByID(ctx context.Context, id string) (*model.Category, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	category, exists := r.categories[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	copied := *category
	return &copied, nil
}

func (r *InMemoryCategoryRepository) FindByUserID(ctx context.Context, userID string) ([]*model.Category, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*model.Category
	for _, category := range r.categories {
		if category.UserID == userID {
			copied := *category
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Name < result[j].Name
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *InMemoryCategoryRepository) Update(ctx context.Context, category *model.Category) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	existing, exists := r.categories[category.ID]
	if !exists {
		return repository.ErrNotFound
	}
	existing.Name = category.Name
	existing.Description = category.Description
	existing.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryCategoryRepository) Delete(ctx context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.categories, id)
	return nil
}

// Email repository implementation
type InMemoryEmailRepository struct {
	emails map[string]*model.Email
	mutex  sync.RWMutex

	// categories, when set, is checked before an email is filed under a category
	categories *InMemoryCategoryRepository
}

func NewInMemoryEmailRepository() *InMemoryEmailRepository {
	return &InMemoryEmailRepository{
		emails: make(map[string]*model.Email),
	}
}

func copyEmail(email *model.Email) *model.Email {
	copied := *email
	if email.CategoryID != nil {
		id := *email.CategoryID
		copied.CategoryID = &id
	}
	return &copied
}

func (r *InMemoryEmailRepository) Create(ctx context.Context, email *model.Email) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.emails {
		if existing.UserID == email.UserID && existing.MessageID == email.MessageID {
			return repository.ErrDuplicate
		}
	}
	r.emails[email.ID] = copyEmail(email)
	return nil
}

func (r *InMemoryEmailRepository) FindByID(ctx context.Context, id string) (*model.Email, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	email, exists := r.emails[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	return copyEmail(email), nil
}

func (r *InMemoryEmailRepository) filter(match func(*model.Email) bool) []*model.Email {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*model.Email
	for _, email := range r.emails {
		if match(email) {
			result = append(result, copyEmail(email))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ReceivedAt.After(result[j].ReceivedAt) })
	return result
}

func (r *InMemoryEmailRepository) FindByUserID(ctx context.Context, userID string) ([]*model.Email, error) {
	return r.filter(func(e *model.Email) bool { return e.UserID == userID }), nil
}

func (r *InMemoryEmailRepository) FindByCategoryID(ctx context.Context, userID, categoryID string) ([]*model.Email, error) {
	return r.filter(func(e *model.Email) bool {
		return e.UserID == userID && e.Category() == categoryID
	}), nil
}

func (r *InMemoryEmailRepository) FindByMessageID(ctx context.Context, userID, messageID string) (*model.Email, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, email := range r.emails {
		if email.UserID == userID && email.MessageID == messageID {
			return copyEmail(email), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *InMemoryEmailRepository) CountByCategory(ctx context.Context, userID string) (map[string]int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	counts := make(map[string]int)
	for _, email := range r.emails {
		if email.UserID == userID && email.CategoryID != nil {
			counts[*email.CategoryID]++
		}
	}
	return counts, nil
}

// update applies fn to the stored email under the write lock.
func (r *InMemoryEmailRepository) update(id string, fn func(*model.Email)) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	email, exists := r.emails[id]
	if !exists {
		return repository.ErrNotFound
	}
	fn(email)
	email.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryEmailRepository) MarkArchived(ctx context.Context, id string) error {
	return r.update(id, func(e *model.Email) { e.Archived = true })
}

func (r *InMemoryEmailRepository) ApplyClassification(ctx context.Context, id, summary, categoryID string) error {
	return r.update(id, func(e *model.Email) {
		if categoryID != "" && r.categories != nil && !r.categories.owns(e.UserID, categoryID) {
			categoryID = ""
		}
		e.Summary = summary
		e.SetCategory(categoryID)
		e.Processed = true
	})
}

func (r *InMemoryEmailRepository) SetUnsubscribeStatus(ctx context.Context, id string, status model.UnsubscribeStatus) error {
	return r.update(id, func(e *model.Email) { e.UnsubscribeStatus = status })
}

func (r *InMemoryEmailRepository) ClearCategory(ctx context.Context, userID, categoryID string) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cleared := 0
	for _, email := range r.emails {
		if email.UserID == userID && email.Category() == categoryID {
			email.CategoryID = nil
			email.UpdatedAt = time.Now()
			cleared++
		}
	}
	return cleared, nil
}

func (r *InMemoryEmailRepository) Delete(ctx context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.emails[id]; !exists {
		return repository.ErrNotFound
	}
	delete(r.emails, id)
	return nil
}
