package model

import (
	"time"

	"github.com/google/uuid"
)

// UnsubscribeStatus records the outcome of the last unsubscribe attempt for an email.
type UnsubscribeStatus string

const (
	UnsubscribeNone      UnsubscribeStatus = ""
	UnsubscribePending   UnsubscribeStatus = "pending"
	UnsubscribeSucceeded UnsubscribeStatus = "succeeded"
	UnsubscribeFailed    UnsubscribeStatus = "failed"
	UnsubscribeNoLink    UnsubscribeStatus = "no_link"
)

type Email struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"user_id"`
	AccountID          string            `json:"account_id"`
	MessageID          string            `json:"message_id"`
	ThreadID           string            `json:"thread_id"`
	Subject            string            `json:"subject"`
	SenderName         string            `json:"sender_name"`
	SenderEmail        string            `json:"sender_email"`
	Body               string            `json:"body"`
	Summary            string            `json:"summary"`
	CategoryID         *string           `json:"category_id"`
	ReceivedAt         time.Time         `json:"received_at"`
	Processed          bool              `json:"processed"`
	Archived           bool              `json:"archived"`
	HasUnsubscribeLink bool              `json:"has_unsubscribe_link"`
	UnsubscribeLink    string            `json:"unsubscribe_link,omitempty"`
	UnsubscribeStatus  UnsubscribeStatus `json:"unsubscribe_status,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// NewEmail returns an unprocessed, unarchived email for the given provider message.
func NewEmail(userID, accountID, messageID string, receivedAt time.Time) *Email {
	now := time.Now()
	return &Email{
		ID:         uuid.New().String(),
		UserID:     userID,
		AccountID:  accountID,
		MessageID:  messageID,
		ReceivedAt: receivedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Category returns the category id or "" when the email is uncategorized.
func (e *Email) Category() string {
	if e.CategoryID == nil {
		return ""
	}
	return *e.CategoryID
}

// SetCategory stores id, treating "" as uncategorized.
func (e *Email) SetCategory(id string) {
	if id == "" {
		e.CategoryID = nil
		return
	}
	e.CategoryID = &id
}
