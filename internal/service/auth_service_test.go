package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsorter/internal/service"
)

func TestLoginCreatesUserAccountAndDefaults(t *testing.T) {
	// Setup
	f := newFixture(t)
	defaults, err := service.LoadDefaultCategories("")
	require.NoError(t, err)
	require.NotEmpty(t, defaults)
	auth := service.NewAuthService(f.repos, defaults, f.logger)
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)

	// Execute
	user, err := auth.Login(context.Background(), service.LoginProfile{
		Email:        "me@example.com",
		Name:         "Me",
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenExpiry:  expiry,
	})

	// Verify
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", user.Email)

	account, err := f.repos.Accounts.FindByEmail(context.Background(), "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, account.UserID)
	assert.Equal(t, "refresh", account.RefreshToken)
	assert.True(t, expiry.Equal(account.TokenExpiry))

	categories, err := f.repos.Categories.FindByUserID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, categories, len(defaults))
}

func TestLoginAgainKeepsUserAndRefreshToken(t *testing.T) {
	// Setup
	f := newFixture(t)
	defaults, err := service.LoadDefaultCategories("")
	require.NoError(t, err)
	auth := service.NewAuthService(f.repos, defaults, f.logger)
	ctx := context.Background()

	first, err := auth.Login(ctx, service.LoginProfile{Email: "me@example.com", Name: "Me", AccessToken: "a1", RefreshToken: "r1"})
	require.NoError(t, err)

	// Execute
	second, err := auth.Login(ctx, service.LoginProfile{Email: "me@example.com", Name: "Me Renamed", AccessToken: "a2"})

	// Verify
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Me Renamed", second.Name)

	account, err := f.repos.Accounts.FindByEmail(ctx, "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a2", account.AccessToken)
	assert.Equal(t, "r1", account.RefreshToken)

	categories, err := f.repos.Categories.FindByUserID(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, categories, len(defaults), "defaults are seeded only once")

	fetched, err := auth.GetUser(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Me Renamed", fetched.Name)
}

func TestLoginRequiresEmail(t *testing.T) {
	f := newFixture(t)
	_, err := service.NewAuthService(f.repos, nil, f.logger).Login(context.Background(), service.LoginProfile{Name: "Nobody"})
	assert.Error(t, err)
}

func TestLoadDefaultCategoriesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"Bills","description":"Invoices"},{"name":"  ","description":"ignored"}]`), 0o600))

	categories, err := service.LoadDefaultCategories(path)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Bills", categories[0].Name)

	_, err = service.LoadDefaultCategories(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
