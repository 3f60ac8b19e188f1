package service

import (
	"context"
	"errors"
	"fmt"

	"mailsorter/internal/logger"
	"mailsorter/internal/metrics"
	"mailsorter/internal/model"
	"mailsorter/internal/repository"
)

type emailService struct {
	emailRepo   repository.EmailRepository
	accountRepo repository.MailAccountRepository
	mailbox     MailboxClient
	tokens      TokenProvider
	logger      *logger.Logger
}

func NewEmailService(
	emailRepo repository.EmailRepository,
	accountRepo repository.MailAccountRepository,
	mailbox MailboxClient,
	tokens TokenProvider,
	logger *logger.Logger,
) EmailService {
	return &emailService{
		emailRepo:   emailRepo,
		accountRepo: accountRepo,
		mailbox:     mailbox,
		tokens:      tokens,
		logger:      logger,
	}
}

// ListEmails returns the user's emails, optionally restricted to one category.
func (s *emailService) ListEmails(ctx context.Context, userID, categoryID string) ([]*model.Email, error) {
	if categoryID != "" {
		return s.emailRepo.FindByCategoryID(ctx, userID, categoryID)
	}
	return s.emailRepo.FindByUserID(ctx, userID)
}

func (s *emailService) GetEmail(ctx context.Context, userID, emailID string) (*model.Email, error) {
	email, err := s.emailRepo.FindByID(ctx, emailID)
	if err != nil {
		return nil, err
	}
	if email.UserID != userID {
		return nil, ErrForbidden
	}
	return email, nil
}

// ArchiveEmails archives on the provider first and marks locally only on success.
func (s *emailService) ArchiveEmails(ctx context.Context, userID string, emailIDs []string) (int, error) {
	accounts := make(map[string]*model.MailAccount)
	archived := 0

	for _, id := range emailIDs {
		email, err := s.GetEmail(ctx, userID, id)
		if err != nil {
			s.logger.Warn("Skipping archive for email:", id, err)
			continue
		}
		if email.Archived {
			continue
		}

		account, ok := accounts[email.AccountID]
		if !ok {
			account, err = s.accountRepo.FindByID(ctx, email.AccountID)
			if err != nil {
				s.logger.Error("Failed to load account for email:", id, err)
				continue
			}
			accounts[email.AccountID] = account
		}

		token, err := s.tokens.Token(ctx, account)
		if err != nil {
			s.logger.Error("Failed to get token for account:", account.Email, err)
			continue
		}
		if err := s.mailbox.Archive(ctx, token, email.MessageID); err != nil {
			s.logger.Error("Failed to archive email in Gmail:", id, err)
			metrics.EmailsArchived.WithLabelValues("failed").Inc()
			continue
		}
		if err := s.emailRepo.MarkArchived(ctx, email.ID); err != nil {
			s.logger.Error("Failed to update email archived status:", id, err)
			continue
		}
		metrics.EmailsArchived.WithLabelValues("ok").Inc()
		archived++
	}
	return archived, nil
}

// DeleteEmails removes local copies only; the provider message is untouched.
func (s *emailService) DeleteEmails(ctx context.Context, userID string, emailIDs []string) (int, error) {
	deleted := 0
	for _, id := range emailIDs {
		email, err := s.GetEmail(ctx, userID, id)
		if err != nil {
			if errors.Is(err, ErrForbidden) || errors.Is(err, repository.ErrNotFound) {
				s.logger.Warn("Skipping delete for email:", id, err)
				continue
			}
			return deleted, fmt.Errorf("failed to load email %s: %w", id, err)
		}
		if err := s.emailRepo.Delete(ctx, email.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return deleted, fmt.Errorf("failed to delete email %s: %w", id, err)
		}
		deleted++
	}
	s.logger.Info("Deleted", deleted, "emails for user:", userID)
	return deleted, nil
}
