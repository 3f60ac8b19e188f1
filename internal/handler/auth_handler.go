package handler

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"

	"mailsorter/internal/config"
	"mailsorter/internal/gmail"
	"mailsorter/internal/logger"
	"mailsorter/internal/model"
	"mailsorter/internal/service"
)

type AuthHandler struct {
	authService service.AuthService
	store       sessions.Store
	logger      *logger.Logger
}

func NewAuthHandler(authService service.AuthService, cfg *config.Config, store sessions.Store, logger *logger.Logger) *AuthHandler {
	gothic.Store = store

	provider := google.New(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.BaseURL+"/auth/google/callback",
		gmail.Scopes...,
	)
	// A refresh token is only issued for offline access with explicit consent.
	provider.SetAccessType("offline")
	provider.SetPrompt("consent")
	goth.UseProviders(provider)

	return &AuthHandler{
		authService: authService,
		store:       store,
		logger:      logger,
	}
}

func withGoogleProvider(c echo.Context) *http.Request {
	req := c.Request()
	q := req.URL.Query()
	q.Set("provider", "google")
	req.URL.RawQuery = q.Encode()
	return req
}

// BeginAuthHandler initiates the OAuth flow
func (h *AuthHandler) BeginAuthHandler(c echo.Context) error {
	if c.Param("provider") != "google" {
		return badRequest(c, "Invalid provider")
	}
	gothic.BeginAuthHandler(c.Response(), withGoogleProvider(c))
	return nil
}

// CallbackHandler handles the OAuth callback
func (h *AuthHandler) CallbackHandler(c echo.Context) error {
	req := withGoogleProvider(c)

	googleUser, err := gothic.CompleteUserAuth(c.Response(), req)
	if err != nil {
		h.logger.Error("Failed to complete user auth:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Authentication failed",
		})
	}

	user, err := h.authService.Login(req.Context(), service.LoginProfile{
		Email:        googleUser.Email,
		Name:         googleUser.Name,
		AccessToken:  googleUser.AccessToken,
		RefreshToken: googleUser.RefreshToken,
		TokenExpiry:  googleUser.ExpiresAt,
	})
	if err != nil {
		h.logger.Error("Failed to log in user:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to process user",
		})
	}

	session, _ := h.store.Get(req, sessionName)
	session.Values["user_id"] = user.ID
	if err := session.Save(req, c.Response()); err != nil {
		h.logger.Error("Failed to save session:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to save session",
		})
	}

	return c.Redirect(http.StatusTemporaryRedirect, "/")
}

// LogoutHandler clears both the provider and the app session.
func (h *AuthHandler) LogoutHandler(c echo.Context) error {
	req := withGoogleProvider(c)
	_ = gothic.Logout(c.Response(), req)

	if session, err := h.store.Get(req, sessionName); err == nil {
		session.Options.MaxAge = -1
		delete(session.Values, "user_id")
		if err := session.Save(req, c.Response()); err != nil {
			h.logger.Warn("Failed to clear session:", err)
		}
	}
	return c.Redirect(http.StatusTemporaryRedirect, "/")
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := currentUser(c, h)
	if err != nil {
		return unauthorized(c)
	}
	return c.JSON(http.StatusOK, user)
}

// GetCurrentUser returns the current authenticated user
func (h *AuthHandler) GetCurrentUser(c echo.Context) (*model.User, error) {
	session, err := h.store.Get(c.Request(), sessionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	userID, ok := session.Values["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("user not authenticated")
	}

	user, err := h.authService.GetUser(c.Request().Context(), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user from database: %w", err)
	}
	return user, nil
}
