package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"mailsorter/internal/logger"
	"mailsorter/internal/mailparse"
	"mailsorter/internal/metrics"
	"mailsorter/internal/model"
	"mailsorter/internal/repository"
)

// DefaultMaxFetch is the page size used when listing unread messages.
const DefaultMaxFetch = 50

type syncService struct {
	accountRepo  repository.MailAccountRepository
	categoryRepo repository.CategoryRepository
	emailRepo    repository.EmailRepository
	mailbox      MailboxClient
	tokens       TokenProvider
	aiClient     AIClient
	tasks        TaskRunner
	locker       Locker
	notifier     Notifier
	maxFetch     int64
	logger       *logger.Logger

	// users with a triggered sync that has not started yet
	pending sync.Map
}

func NewSyncService(
	repos repository.Repositories,
	mailbox MailboxClient,
	tokens TokenProvider,
	aiClient AIClient,
	tasks TaskRunner,
	locker Locker,
	notifier Notifier,
	maxFetch int64,
	logger *logger.Logger,
) SyncService {
	if maxFetch <= 0 {
		maxFetch = DefaultMaxFetch
	}
	return &syncService{
		accountRepo:  repos.Accounts,
		categoryRepo: repos.Categories,
		emailRepo:    repos.Emails,
		mailbox:      mailbox,
		tokens:       tokens,
		aiClient:     aiClient,
		tasks:        tasks,
		locker:       locker,
		notifier:     notifier,
		maxFetch:     maxFetch,
		logger:       logger,
	}
}

// SyncUser ingests unread inbox mail for every account of userID.
// sync_finished is emitted exactly once, whatever the outcome.
func (s *syncService) SyncUser(ctx context.Context, userID string) (report SyncReport, err error) {
	start := time.Now()
	defer func() {
		metrics.SyncDuration.Observe(time.Since(start).Seconds())
		s.notifier.Notify(userID, model.EventSyncFinished, report)
	}()

	unlock, err := s.locker.Lock(ctx, "sync:"+userID)
	if err != nil {
		return report, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	defer unlock()

	accounts, err := s.accountRepo.FindByUserID(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("failed to load mail accounts: %w", err)
	}
	if len(accounts) == 0 {
		s.logger.Info("No mail accounts linked for user:", userID)
		return report, nil
	}

	for _, account := range accounts {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		s.syncAccount(ctx, account, &report)
	}

	s.logger.Infof("Sync finished for user %s: ingested=%d duplicates=%d failed=%d archived=%d",
		userID, report.Ingested, report.Duplicates, report.Failed, report.Archived)
	return report, nil
}

func (s *syncService) syncAccount(ctx context.Context, account *model.MailAccount, report *SyncReport) {
	log := s.logger.With("account", account.Email)

	token, err := s.tokens.Token(ctx, account)
	if err != nil {
		log.Error("Failed to refresh credentials, skipping account:", err)
		report.SkippedAccounts++
		return
	}

	ids, err := s.mailbox.ListUnread(ctx, token, s.maxFetch)
	if err != nil {
		log.Error("Failed to list unread messages, skipping account:", err)
		report.SkippedAccounts++
		return
	}
	report.Accounts++
	report.Listed += len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		s.syncMessage(ctx, log, account, token, id, report)
	}
}

func (s *syncService) syncMessage(ctx context.Context, log *logger.Logger, account *model.MailAccount, token *oauth2.Token, messageID string, report *SyncReport) {
	if _, err := s.emailRepo.FindByMessageID(ctx, account.UserID, messageID); err == nil {
		report.Duplicates++
		metrics.EmailsSkipped.WithLabelValues("duplicate").Inc()
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.Error("Failed to check for existing message:", messageID, err)
		report.Failed++
		return
	}

	msg, err := s.mailbox.GetMessage(ctx, token, messageID)
	if err != nil {
		log.Error("Failed to fetch message:", messageID, err)
		report.Failed++
		metrics.EmailsSkipped.WithLabelValues("fetch_failed").Inc()
		return
	}

	email := newEmailFromMessage(account, messageID, msg)
	if err := s.emailRepo.Create(ctx, email); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			report.Duplicates++
			metrics.EmailsSkipped.WithLabelValues("duplicate").Inc()
			return
		}
		log.Error("Failed to save email:", messageID, err)
		report.Failed++
		metrics.EmailsSkipped.WithLabelValues("store_failed").Inc()
		return
	}
	report.Ingested++
	metrics.EmailsIngested.Inc()

	emailID := email.ID
	s.tasks.Submit("classify:"+emailID, func(ctx context.Context) error {
		return s.ClassifyEmail(ctx, emailID)
	})

	if err := s.mailbox.Archive(ctx, token, messageID); err != nil {
		log.Error("Failed to archive message in Gmail:", messageID, err)
		metrics.EmailsArchived.WithLabelValues("failed").Inc()
		return
	}
	metrics.EmailsArchived.WithLabelValues("ok").Inc()
	if err := s.emailRepo.MarkArchived(ctx, emailID); err != nil {
		log.Error("Failed to update email archived status:", emailID, err)
		return
	}
	report.Archived++
}

func newEmailFromMessage(account *model.MailAccount, messageID string, msg *mailparse.Message) *model.Email {
	received := time.Now()
	if msg.InternalDate > 0 {
		received = time.UnixMilli(msg.InternalDate)
	}

	parsed := mailparse.Parse(msg)
	email := model.NewEmail(account.UserID, account.ID, messageID, received)
	email.ThreadID = msg.ThreadID
	email.Subject = parsed.Subject
	email.SenderName = parsed.SenderName
	email.SenderEmail = parsed.SenderEmail
	email.Body = parsed.Body
	email.Summary = msg.Snippet
	email.HasUnsubscribeLink = parsed.HasUnsubscribeLink
	email.UnsubscribeLink = parsed.UnsubscribeLink
	return email
}

// TriggerSync queues SyncUser unless a queued run for the user has not started yet.
func (s *syncService) TriggerSync(userID string) bool {
	if _, queued := s.pending.LoadOrStore(userID, struct{}{}); queued {
		return true
	}
	ok := s.tasks.Submit("sync:"+userID, func(ctx context.Context) error {
		s.pending.Delete(userID)
		_, err := s.SyncUser(ctx, userID)
		return err
	})
	if !ok {
		s.pending.Delete(userID)
	}
	return ok
}

// ClassifyEmail summarizes and categorizes one stored email and marks it processed.
func (s *syncService) ClassifyEmail(ctx context.Context, emailID string) error {
	email, err := s.emailRepo.FindByID(ctx, emailID)
	if err != nil {
		return fmt.Errorf("failed to load email %s: %w", emailID, err)
	}
	categories, err := s.categoryRepo.FindByUserID(ctx, email.UserID)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}

	summary := s.aiClient.SummarizeEmail(ctx, email.Subject, email.Body)
	categoryID := s.aiClient.ClassifyEmail(ctx, email.Subject, email.Body, categories)

	if err := s.emailRepo.ApplyClassification(ctx, email.ID, summary, categoryID); err != nil {
		return fmt.Errorf("failed to store classification: %w", err)
	}

	outcome := "categorized"
	if categoryID == "" {
		outcome = "uncategorized"
	}
	metrics.Classifications.WithLabelValues(outcome).Inc()
	s.logger.Debug("Classified email", email.ID, "as", outcome)
	return nil
}

// HandlePush maps a provider notification to the owning user and schedules a sync.
func (s *syncService) HandlePush(ctx context.Context, accountEmail string, historyID uint64) (string, error) {
	account, err := s.accountRepo.FindByEmail(ctx, accountEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrAccountNotLinked, accountEmail)
		}
		return "", fmt.Errorf("failed to resolve account: %w", err)
	}

	s.notifier.Notify(account.UserID, model.EventNewMessage, map[string]interface{}{
		"account":    account.Email,
		"history_id": historyID,
	})
	s.TriggerSync(account.UserID)
	return account.UserID, nil
}
