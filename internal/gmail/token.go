package gmail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
	gmailapi "google.golang.org/api/gmail/v1"

	"mailsorter/internal/logger"
	"mailsorter/internal/model"
	"mailsorter/internal/repository"
	"mailsorter/internal/service"
)

// Scopes requested at login. Modify is needed to archive.
var Scopes = []string{
	"email",
	"profile",
	gmailapi.GmailModifyScope,
}

// expirySkew refreshes tokens that are about to expire.
const expirySkew = time.Minute

var ErrNoRefreshToken = errors.New("account has no refresh token")

// TokenRefresher hands out live access tokens and persists rotated credentials.
// Concurrent calls for the same account share one refresh.
type TokenRefresher struct {
	config   *oauth2.Config
	accounts repository.MailAccountRepository
	group    singleflight.Group
	logger   *logger.Logger
}

var _ service.TokenProvider = (*TokenRefresher)(nil)

func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

func NewTokenRefresher(config *oauth2.Config, accounts repository.MailAccountRepository, logger *logger.Logger) *TokenRefresher {
	return &TokenRefresher{config: config, accounts: accounts, logger: logger}
}

func (r *TokenRefresher) Token(ctx context.Context, account *model.MailAccount) (*oauth2.Token, error) {
	if account.AccessToken != "" && !account.TokenExpiry.IsZero() && time.Until(account.TokenExpiry) > expirySkew {
		return &oauth2.Token{
			AccessToken:  account.AccessToken,
			RefreshToken: account.RefreshToken,
			TokenType:    "Bearer",
			Expiry:       account.TokenExpiry,
		}, nil
	}

	v, err, _ := r.group.Do(account.ID, func() (interface{}, error) {
		return r.refresh(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

func (r *TokenRefresher) refresh(ctx context.Context, account *model.MailAccount) (*oauth2.Token, error) {
	if account.RefreshToken == "" {
		return nil, fmt.Errorf("%s: %w", account.Email, ErrNoRefreshToken)
	}

	fresh, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token for %s: %w", account.Email, err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = account.RefreshToken
	}

	updated := *account
	updated.AccessToken = fresh.AccessToken
	updated.RefreshToken = fresh.RefreshToken
	updated.TokenExpiry = fresh.Expiry
	if err := r.accounts.UpdateToken(ctx, &updated); err != nil {
		r.logger.Warn("Failed to persist refreshed token for", account.Email, err)
	}

	r.logger.Info("Refreshed access token for", account.Email)
	return fresh, nil
}
