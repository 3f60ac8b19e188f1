package model

import (
	"time"

	"github.com/google/uuid"
)

// MailAccount is a mailbox linked to a user. Email is unique across all users.
type MailAccount struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenExpiry  time.Time `json:"token_expiry"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewMailAccount(userID, email, accessToken, refreshToken string, tokenExpiry time.Time) *MailAccount {
	now := time.Now()
	return &MailAccount{
		ID:           uuid.New().String(),
		UserID:       userID,
		Email:        email,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenExpiry:  tokenExpiry,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
