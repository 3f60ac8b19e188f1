package gmail

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"mailsorter/internal/mailparse"
	"mailsorter/internal/model"
)

// MockGmailClient is a mock implementation of service.MailboxClient for testing
type MockGmailClient struct {
	ListUnreadFunc func(ctx context.Context, token *oauth2.Token, max int64) ([]string, error)
	GetMessageFunc func(ctx context.Context, token *oauth2.Token, messageID string) (*mailparse.Message, error)
	ArchiveFunc    func(ctx context.Context, token *oauth2.Token, messageID string) error

	mu       sync.Mutex
	fetched  []string
	archived []string
}

func NewMockGmailClient() *MockGmailClient {
	return &MockGmailClient{}
}

func (m *MockGmailClient) ListUnread(ctx context.Context, token *oauth2.Token, max int64) ([]string, error) {
	if m.ListUnreadFunc != nil {
		return m.ListUnreadFunc(ctx, token, max)
	}
	return nil, nil
}

func (m *MockGmailClient) GetMessage(ctx context.Context, token *oauth2.Token, messageID string) (*mailparse.Message, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, messageID)
	m.mu.Unlock()

	if m.GetMessageFunc != nil {
		return m.GetMessageFunc(ctx, token, messageID)
	}
	return &mailparse.Message{ID: messageID, Payload: &mailparse.Part{MimeType: "text/plain"}}, nil
}

func (m *MockGmailClient) Archive(ctx context.Context, token *oauth2.Token, messageID string) error {
	if m.ArchiveFunc != nil {
		if err := m.ArchiveFunc(ctx, token, messageID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.archived = append(m.archived, messageID)
	m.mu.Unlock()
	return nil
}

func (m *MockGmailClient) Fetched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetched...)
}

func (m *MockGmailClient) Archived() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.archived...)
}

// MockTokenProvider returns a static token unless TokenFunc is set.
type MockTokenProvider struct {
	TokenFunc func(ctx context.Context, account *model.MailAccount) (*oauth2.Token, error)
}

func (m *MockTokenProvider) Token(ctx context.Context, account *model.MailAccount) (*oauth2.Token, error) {
	if m.TokenFunc != nil {
		return m.TokenFunc(ctx, account)
	}
	return &oauth2.Token{AccessToken: "token-" + account.Email, TokenType: "Bearer"}, nil
}
