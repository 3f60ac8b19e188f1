package service_test

import (
	"context"
	"encoding/base64"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mailsorter/internal/ai"
	"mailsorter/internal/gmail"
	"mailsorter/internal/lock"
	"mailsorter/internal/logger"
	"mailsorter/internal/mailparse"
	"mailsorter/internal/model"
	"mailsorter/internal/repository"
	"mailsorter/internal/repository/memory"
	"mailsorter/internal/service"
	"mailsorter/internal/tasks"
)

type notification struct {
	UserID  string
	Event   string
	Payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *recordingNotifier) Notify(userID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{UserID: userID, Event: event, Payload: payload})
}

func (n *recordingNotifier) Count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.events {
		if e.Event == event {
			count++
		}
	}
	return count
}

func (n *recordingNotifier) Last(event string) (notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].Event == event {
			return n.events[i], true
		}
	}
	return notification{}, false
}

type fixture struct {
	repos    repository.Repositories
	mailbox  *gmail.MockGmailClient
	tokens   *gmail.MockTokenProvider
	ai       *ai.MockAIClient
	runner   *tasks.Runner
	notifier *recordingNotifier
	logger   *logger.Logger
	sync     service.SyncService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repos:    memory.NewRepositories(),
		mailbox:  gmail.NewMockGmailClient(),
		tokens:   &gmail.MockTokenProvider{},
		ai:       ai.NewMockAIClient(),
		notifier: &recordingNotifier{},
		logger:   logger.NewWithWriter(io.Discard),
	}
	f.runner = tasks.NewRunner(4, 10*time.Second, f.logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.runner.Shutdown(ctx)
	})
	f.sync = service.NewSyncService(f.repos, f.mailbox, f.tokens, f.ai, f.runner, lock.NewKeyedMutex(), f.notifier, 50, f.logger)
	return f
}

func (f *fixture) user(t *testing.T, email string) (*model.User, *model.MailAccount) {
	t.Helper()
	ctx := context.Background()
	user := model.NewUser(email, "Test User")
	require.NoError(t, f.repos.Users.Create(ctx, user))
	account, err := f.repos.Accounts.Upsert(ctx, model.NewMailAccount(user.ID, email, "access", "refresh", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	return user, account
}

func (f *fixture) category(t *testing.T, userID, name, description string) *model.Category {
	t.Helper()
	category := model.NewCategory(userID, name, description)
	require.NoError(t, f.repos.Categories.Create(context.Background(), category))
	return category
}

func (f *fixture) storedEmail(t *testing.T, userID, accountID, messageID string) *model.Email {
	t.Helper()
	email := model.NewEmail(userID, accountID, messageID, time.Now())
	email.Subject = "Subject " + messageID
	require.NoError(t, f.repos.Emails.Create(context.Background(), email))
	return email
}

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

// rawMessage builds a provider message with an html body.
func rawMessage(id, subject, from, html string) *mailparse.Message {
	return &mailparse.Message{
		ID:           id,
		ThreadID:     "thread-" + id,
		Snippet:      "snippet " + id,
		InternalDate: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
		Payload: &mailparse.Part{
			MimeType: "multipart/alternative",
			Headers: []mailparse.Header{
				{Name: "Subject", Value: subject},
				{Name: "From", Value: from},
			},
			Parts: []*mailparse.Part{
				{MimeType: "text/plain", Data: encode("plain " + subject)},
				{MimeType: "text/html", Data: encode(html)},
			},
		},
	}
}
