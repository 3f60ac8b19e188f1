package service

import (
	"context"
	"sync"
	"sync/atomic"

	"mailsorter/internal/logger"
	"mailsorter/internal/model"
	"mailsorter/internal/repository"
)

type unsubscribeService struct {
	emailRepo   repository.EmailRepository
	accountRepo repository.MailAccountRepository
	agent       *UnsubscribeAgent
	tasks       TaskRunner
	notifier    Notifier
	logger      *logger.Logger

	// email ids with an agent queued or running
	inFlight sync.Map
}

func NewUnsubscribeService(
	emailRepo repository.EmailRepository,
	accountRepo repository.MailAccountRepository,
	agent *UnsubscribeAgent,
	tasks TaskRunner,
	notifier Notifier,
	logger *logger.Logger,
) UnsubscribeService {
	return &unsubscribeService{
		emailRepo:   emailRepo,
		accountRepo: accountRepo,
		agent:       agent,
		tasks:       tasks,
		notifier:    notifier,
		logger:      logger,
	}
}

type unsubscribeBatch struct {
	userID    string
	remaining int32
	mu        sync.Mutex
	results   map[string]model.UnsubscribeStatus
}

func (s *unsubscribeService) UnsubscribeEmails(ctx context.Context, userID string, emailIDs []string) ([]string, error) {
	var (
		eligible   []*model.Email
		inProgress int
	)
	for _, id := range emailIDs {
		email, err := s.emailRepo.FindByID(ctx, id)
		if err != nil {
			s.logger.Warn("Failed to find email for unsubscribe:", id, err)
			continue
		}
		if email.UserID != userID {
			s.logger.Warn("User", userID, "attempted to unsubscribe from email", id, "that doesn't belong to them")
			continue
		}
		if !email.HasUnsubscribeLink {
			continue
		}
		if _, busy := s.inFlight.LoadOrStore(email.ID, struct{}{}); busy {
			inProgress++
			continue
		}
		eligible = append(eligible, email)
	}

	if len(eligible) == 0 {
		if inProgress > 0 {
			return nil, ErrAlreadyInProgress
		}
		return nil, ErrNoEligibleEmails
	}

	batch := &unsubscribeBatch{
		userID:    userID,
		remaining: int32(len(eligible)),
		results:   make(map[string]model.UnsubscribeStatus, len(eligible)),
	}
	accountEmails := make(map[string]string)
	accepted := make([]string, 0, len(eligible))

	for _, email := range eligible {
		accountEmail, ok := accountEmails[email.AccountID]
		if !ok {
			if account, err := s.accountRepo.FindByID(ctx, email.AccountID); err == nil {
				accountEmail = account.Email
			} else {
				s.logger.Warn("Failed to load account for email:", email.ID, err)
			}
			accountEmails[email.AccountID] = accountEmail
		}

		if err := s.emailRepo.SetUnsubscribeStatus(ctx, email.ID, model.UnsubscribePending); err != nil {
			s.logger.Error("Failed to mark unsubscribe pending:", email.ID, err)
		}

		submitted := s.tasks.Submit("unsubscribe:"+email.ID, func(ctx context.Context) error {
			status := s.agent.Unsubscribe(ctx, accountEmail, email)
			s.finish(batch, email.ID, status)
			return nil
		})
		if !submitted {
			if err := s.emailRepo.SetUnsubscribeStatus(ctx, email.ID, model.UnsubscribeNone); err != nil {
				s.logger.Error("Failed to reset unsubscribe status:", email.ID, err)
			}
			s.finish(batch, email.ID, model.UnsubscribeNone)
			continue
		}
		accepted = append(accepted, email.ID)
	}

	s.logger.Info("Dispatched", len(accepted), "unsubscribe agents for user:", userID)
	return accepted, nil
}

// finish records one result and notifies the user once the whole batch is done.
func (s *unsubscribeService) finish(batch *unsubscribeBatch, emailID string, status model.UnsubscribeStatus) {
	s.inFlight.Delete(emailID)

	batch.mu.Lock()
	if status != model.UnsubscribeNone {
		batch.results[emailID] = status
	}
	batch.mu.Unlock()

	if atomic.AddInt32(&batch.remaining, -1) != 0 {
		return
	}

	batch.mu.Lock()
	results := make(map[string]model.UnsubscribeStatus, len(batch.results))
	for id, st := range batch.results {
		results[id] = st
	}
	batch.mu.Unlock()

	s.notifier.Notify(batch.userID, model.EventUnsubscribeFinished, map[string]interface{}{
		"results": results,
	})
}
