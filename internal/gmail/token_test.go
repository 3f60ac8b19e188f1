package gmail

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"mailsorter/internal/logger"
	"mailsorter/internal/model"
	"mailsorter/internal/repository/memory"
)

func newTokenServer(t *testing.T, body string, calls *int32, delay time.Duration) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

func TestTokenUsesStoredTokenWhileValid(t *testing.T) {
	var calls int32
	server := newTokenServer(t, `{}`, &calls, 0)
	refresher := NewTokenRefresher(testConfig(server.URL), memory.NewInMemoryMailAccountRepository(), logger.New())

	account := model.NewMailAccount("user-1", "me@example.com", "access", "refresh", time.Now().Add(time.Hour))
	token, err := refresher.Token(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "access", token.AccessToken)
	assert.Equal(t, int32(0), calls)
}

func TestTokenRefreshesAndPersistsRotation(t *testing.T) {
	var calls int32
	server := newTokenServer(t, `{"access_token":"new-access","refresh_token":"new-refresh","token_type":"Bearer","expires_in":3600}`, &calls, 0)
	accounts := memory.NewInMemoryMailAccountRepository()
	refresher := NewTokenRefresher(testConfig(server.URL), accounts, logger.New())

	account, err := accounts.Upsert(context.Background(), model.NewMailAccount("user-1", "me@example.com", "old", "refresh", time.Now().Add(-time.Minute)))
	require.NoError(t, err)

	token, err := refresher.Token(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "new-access", token.AccessToken)

	stored, err := accounts.FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-access", stored.AccessToken)
	assert.Equal(t, "new-refresh", stored.RefreshToken)
	assert.True(t, stored.TokenExpiry.After(time.Now()))
}

func TestTokenRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	var calls int32
	server := newTokenServer(t, `{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`, &calls, 0)
	accounts := memory.NewInMemoryMailAccountRepository()
	refresher := NewTokenRefresher(testConfig(server.URL), accounts, logger.New())

	// Zero expiry is treated as unknown and refreshed
	account, err := accounts.Upsert(context.Background(), model.NewMailAccount("user-1", "me@example.com", "old", "keep-me", time.Time{}))
	require.NoError(t, err)

	token, err := refresher.Token(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "keep-me", token.RefreshToken)
	assert.Equal(t, int32(1), calls)
}

func TestTokenWithoutRefreshToken(t *testing.T) {
	refresher := NewTokenRefresher(testConfig("http://127.0.0.1:0"), memory.NewInMemoryMailAccountRepository(), logger.New())

	account := model.NewMailAccount("user-1", "me@example.com", "", "", time.Time{})
	_, err := refresher.Token(context.Background(), account)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestTokenConcurrentRefreshesCoalesce(t *testing.T) {
	var calls int32
	server := newTokenServer(t, `{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`, &calls, 50*time.Millisecond)
	accounts := memory.NewInMemoryMailAccountRepository()
	refresher := NewTokenRefresher(testConfig(server.URL), accounts, logger.New())

	account, err := accounts.Upsert(context.Background(), model.NewMailAccount("user-1", "me@example.com", "", "refresh", time.Time{}))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := refresher.Token(context.Background(), account)
			if assert.NoError(t, err) {
				assert.Equal(t, "new-access", token.AccessToken)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
