package handler_test

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"mailsorter/internal/ai"
	"mailsorter/internal/browser"
	"mailsorter/internal/gmail"
	"mailsorter/internal/handler"
	"mailsorter/internal/lock"
	"mailsorter/internal/logger"
	"mailsorter/internal/middleware"
	"mailsorter/internal/model"
	"mailsorter/internal/repository"
	"mailsorter/internal/repository/memory"
	"mailsorter/internal/service"
	"mailsorter/internal/sse"
	"mailsorter/internal/tasks"
)

// headerResolver authenticates the user named by the X-User header.
type headerResolver struct {
	users repository.UserRepository
}

func (r *headerResolver) GetCurrentUser(c echo.Context) (*model.User, error) {
	id := c.Request().Header.Get("X-User")
	if id == "" {
		return nil, errors.New("user not authenticated")
	}
	return r.users.FindByID(c.Request().Context(), id)
}

type app struct {
	echo    *echo.Echo
	repos   repository.Repositories
	mailbox *gmail.MockGmailClient
	runner  *tasks.Runner
	sse     *sse.SSEManager
}

func newApp(t *testing.T, pushToken string) *app {
	t.Helper()
	log := logger.NewWithWriter(io.Discard)
	repos := memory.NewRepositories()
	mailbox := gmail.NewMockGmailClient()
	tokens := &gmail.MockTokenProvider{}
	aiClient := ai.NewMockAIClient()
	runner := tasks.NewRunner(4, 10*time.Second, log)
	t.Cleanup(func() { _ = runner.Shutdown(context.Background()) })
	manager := sse.NewSSEManager(log)
	t.Cleanup(manager.Close)

	syncService := service.NewSyncService(repos, mailbox, tokens, aiClient, runner, lock.NewKeyedMutex(), manager, 50, log)
	agent := service.NewUnsubscribeAgent(&browser.MockLauncher{}, aiClient, repos.Emails, service.AgentOptions{MaxIterations: 2}, log)
	resolver := &headerResolver{users: repos.Users}

	categoryHandler := handler.NewCategoryHandler(service.NewCategoryService(repos.Categories, repos.Emails, aiClient, log), resolver, log)
	emailHandler := handler.NewEmailHandler(service.NewEmailService(repos.Emails, repos.Accounts, mailbox, tokens, log), syncService, resolver, manager, log)
	unsubscribeHandler := handler.NewUnsubscribeHandler(service.NewUnsubscribeService(repos.Emails, repos.Accounts, agent, runner, manager, log), resolver, log)
	webhookHandler := handler.NewWebhookHandler(syncService, pushToken, log)

	e := echo.New()
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware(resolver))
	api.POST("/categories", categoryHandler.CreateCategory)
	api.GET("/categories", categoryHandler.GetCategories)
	api.POST("/categories/suggest", categoryHandler.SuggestCategory)
	api.GET("/categories/:id", categoryHandler.GetCategory)
	api.PUT("/categories/:id", categoryHandler.UpdateCategory)
	api.DELETE("/categories/:id", categoryHandler.DeleteCategory)
	api.GET("/emails", emailHandler.GetEmails)
	api.POST("/emails/sync", emailHandler.SyncEmails)
	api.POST("/emails/bulk-action", emailHandler.PerformBulkAction)
	api.GET("/emails/:id", emailHandler.GetEmail)
	api.POST("/emails/:id/classify", emailHandler.ClassifyEmail)
	api.POST("/emails/unsubscribe", unsubscribeHandler.UnsubscribeEmails)
	api.POST("/emails/:id/unsubscribe", unsubscribeHandler.UnsubscribeEmail)
	api.GET("/sse", emailHandler.SSEEmailUpdates)
	e.POST("/webhooks/gmail", webhookHandler.GmailPush)

	return &app{echo: e, repos: repos, mailbox: mailbox, runner: runner, sse: manager}
}

func (a *app) user(t *testing.T, email string) (*model.User, *model.MailAccount) {
	t.Helper()
	ctx := context.Background()
	user := model.NewUser(email, "Test")
	require.NoError(t, a.repos.Users.Create(ctx, user))
	account, err := a.repos.Accounts.Upsert(ctx, model.NewMailAccount(user.ID, email, "a", "r", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	return user, account
}

func (a *app) do(method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set("X-User", userID)
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func TestProtectedRoutesRequireUser(t *testing.T) {
	a := newApp(t, "")
	rec := a.do(http.MethodGet, "/api/categories", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
}

func TestCategoryEndpoints(t *testing.T) {
	// Setup
	a := newApp(t, "")
	user, _ := a.user(t, "me@example.com")
	other, _ := a.user(t, "other@example.com")

	// Create
	rec := a.do(http.MethodPost, "/api/categories", user.ID, `{"name":"Work","description":"Job stuff"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Work", created.Name)

	// Validation
	rec = a.do(http.MethodPost, "/api/categories", user.ID, `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// List with counts
	rec = a.do(http.MethodGet, "/api/categories", user.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, float64(0), listed[0]["email_count"])

	// Another user cannot see it
	rec = a.do(http.MethodGet, "/api/categories/"+created.ID, other.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Update and delete
	rec = a.do(http.MethodPut, "/api/categories/"+created.ID, user.ID, `{"name":"Job"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Job"`)

	rec = a.do(http.MethodDelete, "/api/categories/"+created.ID, user.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodGet, "/api/categories/"+created.ID, user.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Suggest
	rec = a.do(http.MethodPost, "/api/categories/suggest", user.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Newsletters")
}

func TestSyncEndpointReturnsAccepted(t *testing.T) {
	a := newApp(t, "")
	user, _ := a.user(t, "me@example.com")
	a.mailbox.ListUnreadFunc = func(ctx context.Context, token *oauth2.Token, max int64) ([]string, error) {
		return []string{"m1"}, nil
	}

	rec := a.do(http.MethodPost, "/api/emails/sync", user.ID, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	a.runner.Wait()
	rec = a.do(http.MethodGet, "/api/emails", user.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var emails []model.Email
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &emails))
	require.Len(t, emails, 1)
	assert.True(t, emails[0].Archived)
	assert.True(t, emails[0].Processed)

	rec = a.do(http.MethodGet, "/api/emails/"+emails[0].ID, user.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodPost, "/api/emails/"+emails[0].ID+"/classify", user.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBulkAction(t *testing.T) {
	a := newApp(t, "")
	user, account := a.user(t, "me@example.com")
	email := model.NewEmail(user.ID, account.ID, "m1", time.Now())
	require.NoError(t, a.repos.Emails.Create(context.Background(), email))

	rec := a.do(http.MethodPost, "/api/emails/bulk-action", user.ID, `{"action":"archive","email_ids":["`+email.ID+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"action":"archive","affected":1}`, rec.Body.String())
	assert.Equal(t, []string{"m1"}, a.mailbox.Archived())

	rec = a.do(http.MethodPost, "/api/emails/bulk-action", user.ID, `{"action":"explode","email_ids":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/api/emails/bulk-action", user.ID, `{"action":"delete","email_ids":["`+email.ID+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"action":"delete","affected":1}`, rec.Body.String())
}

func TestUnsubscribeEndpoints(t *testing.T) {
	a := newApp(t, "")
	user, account := a.user(t, "me@example.com")
	email := model.NewEmail(user.ID, account.ID, "n1", time.Now())
	email.HasUnsubscribeLink = true
	email.UnsubscribeLink = "https://news.example.com/u"
	require.NoError(t, a.repos.Emails.Create(context.Background(), email))
	plain := model.NewEmail(user.ID, account.ID, "p1", time.Now())
	require.NoError(t, a.repos.Emails.Create(context.Background(), plain))

	rec := a.do(http.MethodPost, "/api/emails/unsubscribe", user.ID, `{"email_ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/api/emails/"+plain.ID+"/unsubscribe", user.ID, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(http.MethodPost, "/api/emails/unsubscribe", user.ID, `{"email_ids":["`+email.ID+`","`+plain.ID+`"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), email.ID)
	assert.NotContains(t, rec.Body.String(), plain.ID)

	a.runner.Wait()
	stored, err := a.repos.Emails.FindByID(context.Background(), email.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnsubscribeSucceeded, stored.UnsubscribeStatus)
}

func pushBody(address string) string {
	data := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"` + address + `","historyId":"77"}`))
	return `{"message":{"data":"` + data + `","messageId":"1"},"subscription":"projects/p/subscriptions/s"}`
}

func TestGmailPushWebhook(t *testing.T) {
	a := newApp(t, "secret")
	user, _ := a.user(t, "me@example.com")
	a.mailbox.ListUnreadFunc = func(ctx context.Context, token *oauth2.Token, max int64) ([]string, error) {
		return []string{"pushed"}, nil
	}

	rec := a.do(http.MethodPost, "/webhooks/gmail?token=wrong", "", pushBody("me@example.com"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/webhooks/gmail?token=secret", "", `{"message":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/webhooks/gmail?token=secret", "", pushBody("stranger@example.com"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPost, "/webhooks/gmail?token=secret", "", pushBody("me@example.com"))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	a.runner.Wait()
	_, err := a.repos.Emails.FindByMessageID(context.Background(), user.ID, "pushed")
	assert.NoError(t, err)
}

func TestSSEStreamsEvents(t *testing.T) {
	// Setup
	a := newApp(t, "")
	user, _ := a.user(t, "me@example.com")
	server := httptest.NewServer(a.echo)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/sse", nil)
	require.NoError(t, err)
	req.Header.Set("X-User", user.ID)

	// Execute
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	reader := bufio.NewReader(res.Body)
	readEvent := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "event:") {
				return strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			}
		}
	}

	// Verify
	assert.Equal(t, "connection", readEvent())
	require.Eventually(t, func() bool { return a.sse.HasUserConnection(user.ID) }, time.Second, 10*time.Millisecond)

	a.sse.Notify(user.ID, model.EventSyncFinished, map[string]int{"ingested": 1})
	assert.Equal(t, model.EventSyncFinished, readEvent())
}
