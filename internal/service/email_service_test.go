package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"mailsorter/internal/repository"
	"mailsorter/internal/service"
)

func newEmailService(f *fixture) service.EmailService {
	return service.NewEmailService(f.repos.Emails, f.repos.Accounts, f.mailbox, f.tokens, f.logger)
}

func TestListAndGetEmails(t *testing.T) {
	f := newFixture(t)
	user, account := f.user(t, "me@example.com")
	other, otherAccount := f.user(t, "other@example.com")
	work := f.category(t, user.ID, "Work", "")
	filed := f.storedEmail(t, user.ID, account.ID, "m1")
	f.storedEmail(t, user.ID, account.ID, "m2")
	foreign := f.storedEmail(t, other.ID, otherAccount.ID, "m3")
	require.NoError(t, f.repos.Emails.ApplyClassification(context.Background(), filed.ID, "s", work.ID))
	emails := newEmailService(f)
	ctx := context.Background()

	all, err := emails.ListEmails(ctx, user.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	inWork, err := emails.ListEmails(ctx, user.ID, work.ID)
	require.NoError(t, err)
	require.Len(t, inWork, 1)
	assert.Equal(t, filed.ID, inWork[0].ID)

	got, err := emails.GetEmail(ctx, user.ID, filed.ID)
	require.NoError(t, err)
	assert.Equal(t, "m1", got.MessageID)

	_, err = emails.GetEmail(ctx, user.ID, foreign.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestArchiveEmailsProviderFirst(t *testing.T) {
	// Setup
	f := newFixture(t)
	user, account := f.user(t, "me@example.com")
	good := f.storedEmail(t, user.ID, account.ID, "good")
	bad := f.storedEmail(t, user.ID, account.ID, "bad")
	f.mailbox.ArchiveFunc = func(ctx context.Context, token *oauth2.Token, id string) error {
		if id == "bad" {
			return errors.New("quota exceeded")
		}
		return nil
	}

	// Execute
	archived, err := newEmailService(f).ArchiveEmails(context.Background(), user.ID, []string{good.ID, bad.ID, "missing"})

	// Verify
	require.NoError(t, err)
	assert.Equal(t, 1, archived)
	stored, err := f.repos.Emails.FindByID(context.Background(), good.ID)
	require.NoError(t, err)
	assert.True(t, stored.Archived)
	stored, err = f.repos.Emails.FindByID(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.False(t, stored.Archived)
}

func TestDeleteEmailsOnlyOwned(t *testing.T) {
	f := newFixture(t)
	user, account := f.user(t, "me@example.com")
	other, otherAccount := f.user(t, "other@example.com")
	mine := f.storedEmail(t, user.ID, account.ID, "m1")
	theirs := f.storedEmail(t, other.ID, otherAccount.ID, "m2")

	deleted, err := newEmailService(f).DeleteEmails(context.Background(), user.ID, []string{mine.ID, theirs.ID, "missing"})

	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	_, err = f.repos.Emails.FindByID(context.Background(), mine.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.repos.Emails.FindByID(context.Background(), theirs.ID)
	assert.NoError(t, err)
	assert.Empty(t, f.mailbox.Archived(), "deleting never touches the provider")
}
