package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsorter/internal/model"
	"mailsorter/internal/repository"
)

func TestEmailCreateRejectsDuplicateMessage(t *testing.T) {
	repo := NewInMemoryEmailRepository()
	ctx := context.Background()

	first := model.NewEmail("user-1", "acc-1", "msg-1", time.Now())
	require.NoError(t, repo.Create(ctx, first))

	again := model.NewEmail("user-1", "acc-1", "msg-1", time.Now())
	assert.ErrorIs(t, repo.Create(ctx, again), repository.ErrDuplicate)

	// Same message id for a different user is a different email
	other := model.NewEmail("user-2", "acc-2", "msg-1", time.Now())
	assert.NoError(t, repo.Create(ctx, other))
}

func TestEmailCreateConcurrentDuplicates(t *testing.T) {
	repo := NewInMemoryEmailRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Create(ctx, model.NewEmail("user-1", "acc-1", "msg-1", time.Now()))
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
		} else {
			assert.ErrorIs(t, err, repository.ErrDuplicate)
		}
	}
	assert.Equal(t, 1, created)
}

func TestEmailTargetedUpdatesDoNotClobber(t *testing.T) {
	repo := NewInMemoryEmailRepository()
	ctx := context.Background()

	email := model.NewEmail("user-1", "acc-1", "msg-1", time.Now())
	require.NoError(t, repo.Create(ctx, email))

	// Classification and archive land in either order without losing each other
	require.NoError(t, repo.MarkArchived(ctx, email.ID))
	require.NoError(t, repo.ApplyClassification(ctx, email.ID, "A summary", "cat-1"))

	stored, err := repo.FindByID(ctx, email.ID)
	require.NoError(t, err)
	assert.True(t, stored.Archived)
	assert.True(t, stored.Processed)
	assert.Equal(t, "A summary", stored.Summary)
	assert.Equal(t, "cat-1", stored.Category())
}

func TestEmailApplyClassificationWithoutCategory(t *testing.T) {
	repo := NewInMemoryEmailRepository()
	ctx := context.Background()

	email := model.NewEmail("user-1", "acc-1", "msg-1", time.Now())
	require.NoError(t, repo.Create(ctx, email))
	require.NoError(t, repo.ApplyClassification(ctx, email.ID, "summary", ""))

	stored, err := repo.FindByID(ctx, email.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CategoryID)
	assert.True(t, stored.Processed)
}

func TestEmailApplyClassificationDropsMissingCategory(t *testing.T) {
	repos := NewRepositories()
	ctx := context.Background()

	kept := model.NewCategory("user-1", "Work", "")
	foreign := model.NewCategory("user-2", "Work", "")
	require.NoError(t, repos.Categories.Create(ctx, kept))
	require.NoError(t, repos.Categories.Create(ctx, foreign))

	filed := model.NewEmail("user-1", "acc-1", "msg-1", time.Now())
	gone := model.NewEmail("user-1", "acc-1", "msg-2", time.Now())
	other := model.NewEmail("user-1", "acc-1", "msg-3", time.Now())
	for _, e := range []*model.Email{filed, gone, other} {
		require.NoError(t, repos.Emails.Create(ctx, e))
	}

	require.NoError(t, repos.Emails.ApplyClassification(ctx, filed.ID, "s", kept.ID))
	require.NoError(t, repos.Emails.ApplyClassification(ctx, gone.ID, "s", "deleted-category"))
	require.NoError(t, repos.Emails.ApplyClassification(ctx, other.ID, "s", foreign.ID))

	stored, err := repos.Emails.FindByID(ctx, filed.ID)
	require.NoError(t, err)
	assert.Equal(t, kept.ID, stored.Category())

	for _, id := range []string{gone.ID, other.ID} {
		stored, err := repos.Emails.FindByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, stored.Processed)
		assert.Nil(t, stored.CategoryID)
	}
}

func TestEmailReturnsCopies(t *testing.T) {
	repo := NewInMemoryEmailRepository()
	ctx := context.Background()

	email := model.NewEmail("user-1", "acc-1", "msg-1", time.Now())
	require.NoError(t, repo.Create(ctx, email))

	found, err := repo.FindByID(ctx, email.ID)
	require.NoError(t, err)
	found.Subject = "mutated"

	again, err := repo.FindByID(ctx, email.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Subject)
}

func TestEmailCategoryQueries(t *testing.T) {
	repo := NewInMemoryEmailRepository()
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 3; i++ {
		email := model.NewEmail("user-1", "acc-1", fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Minute))
		email.SetCategory("cat-1")
		require.NoError(t, repo.Create(ctx, email))
	}
	other := model.NewEmail("user-1", "acc-1", "msg-other", base)
	other.SetCategory("cat-2")
	require.NoError(t, repo.Create(ctx, other))
	foreign := model.NewEmail("user-2", "acc-2", "msg-foreign", base)
	foreign.SetCategory("cat-1")
	require.NoError(t, repo.Create(ctx, foreign))

	emails, err := repo.FindByCategoryID(ctx, "user-1", "cat-1")
	require.NoError(t, err)
	require.Len(t, emails, 3)
	assert.Equal(t, "msg-2", emails[0].MessageID, "newest first")

	counts, err := repo.CountByCategory(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cat-1": 3, "cat-2": 1}, counts)

	cleared, err := repo.ClearCategory(ctx, "user-1", "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 3, cleared)

	counts, err = repo.CountByCategory(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cat-2": 1}, counts)

	// The other user's email is untouched
	stored, err := repo.FindByID(ctx, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, "cat-1", stored.Category())
}

func TestMailAccountUpsertKeepsRefreshToken(t *testing.T) {
	repo := NewInMemoryMailAccountRepository()
	ctx := context.Background()

	account := model.NewMailAccount("user-1", "me@example.com", "access-1", "refresh-1", time.Now())
	stored, err := repo.Upsert(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, account.ID, stored.ID)

	relinked := model.NewMailAccount("user-1", "ME@example.com", "access-2", "", time.Now())
	stored, err = repo.Upsert(ctx, relinked)
	require.NoError(t, err)
	assert.Equal(t, account.ID, stored.ID, "existing row is reused")
	assert.Equal(t, "access-2", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)

	accounts, err := repo.FindByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestMailAccountUpdateToken(t *testing.T) {
	repo := NewInMemoryMailAccountRepository()
	ctx := context.Background()

	account := model.NewMailAccount("user-1", "me@example.com", "access-1", "refresh-1", time.Now())
	_, err := repo.Upsert(ctx, account)
	require.NoError(t, err)

	expiry := time.Now().Add(time.Hour)
	account.AccessToken = "access-2"
	account.RefreshToken = "refresh-2"
	account.TokenExpiry = expiry
	require.NoError(t, repo.UpdateToken(ctx, account))

	stored, err := repo.FindByEmail(ctx, "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "access-2", stored.AccessToken)
	assert.Equal(t, "refresh-2", stored.RefreshToken)
	assert.True(t, stored.TokenExpiry.Equal(expiry))

	missing := model.NewMailAccount("user-1", "x@example.com", "a", "r", time.Now())
	assert.ErrorIs(t, repo.UpdateToken(ctx, missing), repository.ErrNotFound)
}

func TestUserCRUD(t *testing.T) {
	repo := NewInMemoryUserRepository()
	ctx := context.Background()

	user := model.NewUser("test@example.com", "Test User")
	require.NoError(t, repo.Create(ctx, user))
	assert.ErrorIs(t, repo.Create(ctx, model.NewUser("TEST@example.com", "Dup")), repository.ErrDuplicate)

	found, err := repo.FindByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	found.Name = "Renamed"
	require.NoError(t, repo.Update(ctx, found))

	byID, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", byID.Name)

	require.NoError(t, repo.Delete(ctx, user.ID))
	_, err = repo.FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCategoryScopedByUser(t *testing.T) {
	repo := NewInMemoryCategoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, model.NewCategory("user-1", "Work", "Work mail")))
	require.NoError(t, repo.Create(ctx, model.NewCategory("user-2", "Travel", "Trips")))

	categories, err := repo.FindByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Work", categories[0].Name)

	categories[0].Description = "Updated"
	require.NoError(t, repo.Update(ctx, categories[0]))
	stored, err := repo.FindByID(ctx, categories[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", stored.Description)

	assert.ErrorIs(t, repo.Update(ctx, model.NewCategory("user-1", "Ghost", "")), repository.ErrNotFound)
}
